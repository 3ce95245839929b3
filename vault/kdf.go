package vault

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey stretches password with PBKDF2-HMAC-SHA256 and returns the key
// base64url-encoded, the form NewSecretCipher expects. The same password and
// salt always yield the same key.
func DeriveKey(password, salt []byte) string {
	raw := pbkdf2.Key(password, salt, Iterations, DerivedKeyLen, sha256.New)
	defer zero(raw)
	return base64.URLEncoding.EncodeToString(raw)
}
