package vault

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

const canaryPlaintext = "keyvault canary v1"

// Vault holds a password-derived key and gives access to the secrets stored
// in one backing file. The key lives only in memory.
type Vault struct {
	path   string
	scheme Scheme
	logger *slog.Logger

	mu     sync.RWMutex
	cipher *SecretCipher
}

type Option func(*Vault)

// WithScheme selects the token format for new records.
func WithScheme(s Scheme) Option {
	return func(v *Vault) { v.scheme = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// Open derives the vault key from password and the salt stored in path,
// creating the salt on first use. password is wiped before Open returns.
//
// Open cannot tell a wrong password from a right one; call Verify for that.
func Open(password []byte, path string, opts ...Option) (*Vault, error) {
	defer zero(password)

	v := &Vault{
		path:   path,
		scheme: SchemeFernet,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}

	hadSalt, err := HasSalt(path)
	if err != nil {
		return nil, err
	}
	salt, err := GetOrCreateSalt(path)
	if err != nil {
		return nil, err
	}
	if !hadSalt {
		v.logger.Info("created vault salt", slog.String("path", path))
	}

	c, err := NewSecretCipher(DeriveKey(password, salt), v.scheme)
	if err != nil {
		return nil, err
	}
	v.cipher = c
	return v, nil
}

func (v *Vault) Path() string { return v.path }

// Store encrypts plaintext and appends it as the newest record for name.
func (v *Vault) Store(name string, plaintext []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return v.store(name, plaintext)
}

func (v *Vault) store(name string, plaintext []byte) error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.cipher == nil {
		return ErrClosed
	}

	token, err := v.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	if err := AppendRecord(v.path, name, token); err != nil {
		return err
	}
	v.logger.Debug("stored secret", slog.String("name", name), slog.String("scheme", string(v.scheme)))
	return nil
}

// Load decrypts the newest record for name. A failed Load leaves the Vault
// usable.
func (v *Vault) Load(name string) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.cipher == nil {
		return nil, ErrClosed
	}

	token, err := lookupLatest(v.path, name, v.badLine)
	if err != nil {
		return nil, err
	}
	pt, err := v.cipher.Decrypt(token)
	if err != nil {
		v.logger.Debug("decrypt failed", slog.String("name", name))
		return nil, errors.Wrapf(err, "%q", name)
	}
	return pt, nil
}

// Names lists the secrets that have at least one record.
func (v *Vault) Names() ([]string, error) {
	return listNames(v.path, v.badLine)
}

func (v *Vault) badLine(lineNo int, err error) {
	v.logger.Warn("skipping unreadable record line",
		slog.String("path", v.path), slog.Int("line", lineNo), slog.String("error", err.Error()))
}

// Secret returns a handle that decrypts name each time it is resolved.
func (v *Vault) Secret(name string) LazySecret {
	return LazySecret{name: name, vault: v}
}

// Verify checks that the vault key matches the one the stored records were
// written with. It prefers the canary record; vaults without one are checked
// against an existing secret and then given a canary. A vault with no
// records at all has nothing to check against and yields ErrNoRecords.
func (v *Vault) Verify() error {
	pt, err := v.Load(CanaryName)
	switch {
	case err == nil:
		ok := subtle.ConstantTimeCompare(pt, []byte(canaryPlaintext)) == 1
		zero(pt)
		if !ok {
			return errors.Wrap(ErrDecryptionFailed, "canary mismatch")
		}
		return nil
	case !errors.Is(err, ErrSecretNotFound):
		return err
	}

	names, err := v.Names()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return ErrNoRecords
	}
	pt, err = v.Load(names[0])
	if err != nil {
		return err
	}
	zero(pt)
	return v.Initialize()
}

// Initialize writes the canary under the current key. Call it once a new
// password has been chosen; later logins are checked against it.
func (v *Vault) Initialize() error {
	if err := v.store(CanaryName, []byte(canaryPlaintext)); err != nil {
		return err
	}
	v.logger.Info("wrote vault canary", slog.String("path", v.path))
	return nil
}

// Close wipes the key. Every later operation fails with ErrClosed.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cipher != nil {
		v.cipher.wipe()
		v.cipher = nil
	}
}
