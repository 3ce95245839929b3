package vault

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

const (
	SaltLen       = 16
	DerivedKeyLen = 32
	NonceLen      = 24
	Iterations    = 100_000

	saltKey         = "SALT"
	encryptedSuffix = "_ENCRYPTED"

	// CanaryName is the reserved record used to check a password at login.
	CanaryName = "KEYVAULT_CANARY"
)

var (
	ErrStorageUnavailable = errors.New("vault: storage unavailable")
	ErrSecretNotFound     = errors.New("vault: secret not found")
	ErrDecryptionFailed   = errors.New("vault: decryption failed")
	ErrCorruptStore       = errors.New("vault: corrupt file")
	ErrInvalidName        = errors.New("vault: invalid secret name")
	ErrClosed             = errors.New("vault: closed")
	ErrNoRecords          = errors.New("vault: no records to verify against")
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// StorageError records a failed operation on the backing file.
// It matches ErrStorageUnavailable under errors.Is.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("vault: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func storageErr(op, path string, err error) error {
	return &StorageError{Op: op, Path: path, Err: err}
}

// SecretRecord is one `<NAME>_ENCRYPTED=<token>` line of the backing file.
type SecretRecord struct {
	Name  string
	Token string
}

// ValidateName reports whether name can be used as a record key.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	if name == CanaryName {
		return errors.Wrapf(ErrInvalidName, "%q is reserved", name)
	}
	return nil
}
