package vault

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const saltPrefix = saltKey + "="

// GetOrCreateSalt returns the salt stored in path. When the file holds no
// SALT line yet, a fresh random salt is appended and returned.
func GetOrCreateSalt(path string) ([]byte, error) {
	encoded, found, err := readSaltLine(path)
	if err != nil {
		return nil, err
	}
	if found {
		return decodeSalt(encoded)
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "vault: generate salt")
	}
	line := saltPrefix + base64.RawURLEncoding.EncodeToString(salt)
	if err := appendLine(path, line); err != nil {
		return nil, err
	}
	return salt, nil
}

// HasSalt reports whether path already carries a SALT line. A file that
// does not exist has no salt.
func HasSalt(path string) (bool, error) {
	_, found, err := readSaltLine(path)
	return found, err
}

// readSaltLine returns the value of the first SALT line.
func readSaltLine(path string) (string, bool, error) {
	var (
		value string
		found bool
	)
	err := scanLines(path, func(line string) bool {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, saltPrefix) {
			return true
		}
		value = strings.TrimSpace(strings.TrimPrefix(line, saltPrefix))
		found = true
		return false
	})
	return value, found, err
}

// decodeSalt accepts base64url with or without padding; standard base64 is
// tolerated for files edited by hand.
func decodeSalt(s string) ([]byte, error) {
	s = strings.Trim(s, `"'`)
	if n := len(s) % 4; n != 0 {
		s += strings.Repeat("=", 4-n)
	}
	salt, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		salt, err = base64.StdEncoding.DecodeString(s)
	}
	if err != nil {
		return nil, errors.Wrap(ErrCorruptStore, "salt is not base64")
	}
	if len(salt) != SaltLen {
		return nil, errors.Wrapf(ErrCorruptStore, "salt is %d bytes, want %d", len(salt), SaltLen)
	}
	return salt, nil
}
