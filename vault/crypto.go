package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Scheme selects the token format used for new records.
type Scheme string

const (
	SchemeFernet            Scheme = "fernet"
	SchemeXChaCha20Poly1305 Scheme = "xchacha20poly1305"
)

const (
	fernetVersion  = 0x80
	xchachaVersion = 0xA1

	// version, timestamp, IV, at least one block, HMAC
	fernetMinLen = 1 + 8 + aes.BlockSize + aes.BlockSize + sha256.Size
)

var xchachaInfo = []byte("keyvault xchacha20poly1305 v1")

// ParseScheme maps a configuration value to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SchemeFernet:
		return SchemeFernet, nil
	case SchemeXChaCha20Poly1305, "xchacha":
		return SchemeXChaCha20Poly1305, nil
	}
	return "", errors.Errorf("vault: unknown cipher scheme %q", s)
}

// SecretCipher turns plaintext into self-describing tokens and back.
// Tokens of every supported format can be decrypted whatever scheme is
// configured for writing.
type SecretCipher struct {
	scheme Scheme
	fernet *fernet.Key
	aead   cipher.AEAD
}

// NewSecretCipher builds a cipher from a key produced by DeriveKey.
func NewSecretCipher(encodedKey string, scheme Scheme) (*SecretCipher, error) {
	if scheme == "" {
		scheme = SchemeFernet
	}
	if scheme != SchemeFernet && scheme != SchemeXChaCha20Poly1305 {
		return nil, errors.Errorf("vault: unknown cipher scheme %q", scheme)
	}

	raw, err := base64.URLEncoding.DecodeString(encodedKey)
	if err != nil || len(raw) != DerivedKeyLen {
		return nil, errors.New("vault: key must be 32 base64url-encoded bytes")
	}
	defer zero(raw)

	fk, err := fernet.DecodeKey(encodedKey)
	if err != nil {
		return nil, errors.Wrap(err, "vault: fernet key")
	}

	sub := make([]byte, chacha20poly1305.KeySize)
	defer zero(sub)
	if _, err := io.ReadFull(hkdf.New(sha256.New, raw, nil, xchachaInfo), sub); err != nil {
		return nil, errors.Wrap(err, "vault: derive subkey")
	}
	aead, err := chacha20poly1305.NewX(sub)
	if err != nil {
		return nil, errors.Wrap(err, "vault: xchacha20poly1305")
	}

	return &SecretCipher{scheme: scheme, fernet: fk, aead: aead}, nil
}

func (c *SecretCipher) Scheme() Scheme { return c.scheme }

// Encrypt seals plaintext under a fresh random nonce.
func (c *SecretCipher) Encrypt(plaintext []byte) (string, error) {
	if c.fernet == nil {
		return "", ErrClosed
	}
	if c.scheme == SchemeFernet {
		tok, err := fernet.EncryptAndSign(plaintext, c.fernet)
		if err != nil {
			return "", errors.Wrap(err, "vault: fernet encrypt")
		}
		return string(tok), nil
	}

	nonce, err := randBytes(NonceLen)
	if err != nil {
		return "", errors.Wrap(err, "vault: generate nonce")
	}
	ad := []byte{xchachaVersion}
	out := make([]byte, 0, 1+NonceLen+len(plaintext)+c.aead.Overhead())
	out = append(out, xchachaVersion)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, plaintext, ad)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt opens a token. Every failure, whatever its cause, is reported as
// ErrDecryptionFailed.
func (c *SecretCipher) Decrypt(token string) ([]byte, error) {
	if c.fernet == nil {
		return nil, ErrClosed
	}
	token = strings.TrimSpace(token)
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 {
		return nil, ErrDecryptionFailed
	}

	switch raw[0] {
	case fernetVersion:
		if len(raw) < fernetMinLen || (len(raw)-fernetMinLen)%aes.BlockSize != 0 {
			return nil, ErrDecryptionFailed
		}
		// A negative TTL disables the token age check.
		msg := fernet.VerifyAndDecrypt([]byte(token), -1, []*fernet.Key{c.fernet})
		if msg == nil {
			return nil, ErrDecryptionFailed
		}
		return msg, nil
	case xchachaVersion:
		if len(raw) < 1+NonceLen+c.aead.Overhead() {
			return nil, ErrDecryptionFailed
		}
		pt, err := c.aead.Open(nil, raw[1:1+NonceLen], raw[1+NonceLen:], raw[:1])
		if err != nil {
			return nil, ErrDecryptionFailed
		}
		if pt == nil {
			pt = []byte{}
		}
		return pt, nil
	}
	return nil, ErrDecryptionFailed
}

// wipe drops the key material. The cipher is unusable afterwards.
func (c *SecretCipher) wipe() {
	if c.fernet != nil {
		*c.fernet = fernet.Key{}
		c.fernet = nil
	}
	c.aead = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Zero wipes b in place.
func Zero(b []byte) {
	zero(b)
}
