package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schemes = []Scheme{SchemeFernet, SchemeXChaCha20Poly1305}

func testKey(t *testing.T, password string) string {
	t.Helper()
	return DeriveKey([]byte(password), []byte("0123456789abcdef"))
}

func testCipher(t *testing.T, password string, scheme Scheme) *SecretCipher {
	t.Helper()
	c, err := NewSecretCipher(testKey(t, password), scheme)
	require.NoError(t, err)
	return c
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1 := DeriveKey([]byte("Sup3rSecret!2024"), salt)
	k2 := DeriveKey([]byte("Sup3rSecret!2024"), salt)
	assert.Equal(t, k1, k2)

	raw, err := base64.URLEncoding.DecodeString(k1)
	require.NoError(t, err)
	assert.Len(t, raw, DerivedKeyLen)

	assert.NotEqual(t, k1, DeriveKey([]byte("Sup3rSecret!2025"), salt))
	assert.NotEqual(t, k1, DeriveKey([]byte("Sup3rSecret!2024"), []byte("fedcba9876543210")))

	empty := DeriveKey(nil, salt)
	_, err = NewSecretCipher(empty, SchemeFernet)
	assert.NoError(t, err)
}

func TestSecretCipher_RoundTrip(t *testing.T) {
	plaintexts := [][]byte{
		[]byte("sk-test-123"),
		{},
		[]byte("exactly sixteen!"),
		[]byte("ünïcødé ✓ with = and # and $HOME"),
		make([]byte, 4096),
	}
	for _, scheme := range schemes {
		t.Run(string(scheme), func(t *testing.T) {
			c := testCipher(t, "Sup3rSecret!2024", scheme)
			for _, pt := range plaintexts {
				tok, err := c.Encrypt(pt)
				require.NoError(t, err)

				got, err := c.Decrypt(tok)
				require.NoError(t, err)
				assert.Equal(t, pt, got)
			}
		})
	}
}

func TestSecretCipher_TokenVersion(t *testing.T) {
	for _, tt := range []struct {
		scheme  Scheme
		version byte
	}{
		{SchemeFernet, fernetVersion},
		{SchemeXChaCha20Poly1305, xchachaVersion},
	} {
		c := testCipher(t, "pw", tt.scheme)
		tok, err := c.Encrypt([]byte("value"))
		require.NoError(t, err)

		raw, err := base64.URLEncoding.DecodeString(tok)
		require.NoError(t, err)
		assert.Equal(t, tt.version, raw[0])
	}
}

func TestSecretCipher_ReadsEveryScheme(t *testing.T) {
	writer := testCipher(t, "pw", SchemeXChaCha20Poly1305)
	reader := testCipher(t, "pw", SchemeFernet)

	tok, err := writer.Encrypt([]byte("cross"))
	require.NoError(t, err)
	got, err := reader.Decrypt(tok)
	require.NoError(t, err)
	assert.Equal(t, []byte("cross"), got)

	tok, err = reader.Encrypt([]byte("back"))
	require.NoError(t, err)
	got, err = writer.Decrypt(tok)
	require.NoError(t, err)
	assert.Equal(t, []byte("back"), got)
}

func TestSecretCipher_WrongKey(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(string(scheme), func(t *testing.T) {
			right := testCipher(t, "Sup3rSecret!2024", scheme)
			wrong := testCipher(t, "Sup3rSecret!2025", scheme)

			tok, err := right.Encrypt([]byte("sk-test-123"))
			require.NoError(t, err)

			got, err := wrong.Decrypt(tok)
			require.ErrorIs(t, err, ErrDecryptionFailed)
			assert.Nil(t, got)
		})
	}
}

func TestSecretCipher_Tampered(t *testing.T) {
	for _, scheme := range schemes {
		t.Run(string(scheme), func(t *testing.T) {
			c := testCipher(t, "pw", scheme)
			tok, err := c.Encrypt([]byte("sk-test-123"))
			require.NoError(t, err)
			raw, err := base64.URLEncoding.DecodeString(tok)
			require.NoError(t, err)

			for _, i := range []int{1, len(raw) / 2, len(raw) - 1} {
				mod := append([]byte(nil), raw...)
				mod[i] ^= 0x01
				_, err := c.Decrypt(base64.URLEncoding.EncodeToString(mod))
				assert.ErrorIs(t, err, ErrDecryptionFailed, "byte %d", i)
			}

			_, err = c.Decrypt(base64.URLEncoding.EncodeToString(raw[:len(raw)-1]))
			assert.ErrorIs(t, err, ErrDecryptionFailed)
		})
	}
}

func TestSecretCipher_Malformed(t *testing.T) {
	c := testCipher(t, "pw", SchemeFernet)
	for _, tok := range []string{
		"",
		"not base64 at all",
		base64.URLEncoding.EncodeToString([]byte{fernetVersion}),
		base64.URLEncoding.EncodeToString([]byte{xchachaVersion, 1, 2, 3}),
		base64.URLEncoding.EncodeToString([]byte{0x01, 2, 3, 4, 5, 6, 7, 8, 9}),
	} {
		_, err := c.Decrypt(tok)
		assert.ErrorIs(t, err, ErrDecryptionFailed, "token %q", tok)
	}
}

func TestSecretCipher_FreshNonces(t *testing.T) {
	for _, scheme := range schemes {
		c := testCipher(t, "pw", scheme)
		seen := make(map[string]bool)
		for i := 0; i < 32; i++ {
			tok, err := c.Encrypt([]byte("same-value"))
			require.NoError(t, err)
			assert.False(t, seen[tok], "repeated token for %s", scheme)
			seen[tok] = true
		}
	}
}

// Token from the published Fernet test vectors; the timestamp is decades old
// and must not be rejected.
func TestSecretCipher_FernetVector(t *testing.T) {
	c, err := NewSecretCipher("cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4=", SchemeFernet)
	require.NoError(t, err)

	got, err := c.Decrypt("gAAAAAAdwJ6wAAECAwQFBgcICQoLDA0ODy021cpGVWKZ_eEwCGM4BLLF_5CV9dOPmrhuVUPgJobwOz7JcbmrR64jVmpU4IwqDA==")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestNewSecretCipher_BadKey(t *testing.T) {
	for _, key := range []string{"", "short", base64.URLEncoding.EncodeToString(make([]byte, 16))} {
		_, err := NewSecretCipher(key, SchemeFernet)
		assert.Error(t, err, "key %q", key)
	}
	_, err := NewSecretCipher(testKey(t, "pw"), Scheme("rot13"))
	assert.Error(t, err)
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Scheme
		wantErr bool
	}{
		{"", SchemeFernet, false},
		{"fernet", SchemeFernet, false},
		{" FERNET ", SchemeFernet, false},
		{"xchacha20poly1305", SchemeXChaCha20Poly1305, false},
		{"xchacha", SchemeXChaCha20Poly1305, false},
		{"aes-ecb", "", true},
	}
	for _, tt := range tests {
		got, err := ParseScheme(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestSecretCipher_Wiped(t *testing.T) {
	c := testCipher(t, "pw", SchemeFernet)
	tok, err := c.Encrypt([]byte("v"))
	require.NoError(t, err)

	c.wipe()
	_, err = c.Encrypt([]byte("v"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Decrypt(tok)
	assert.ErrorIs(t, err, ErrClosed)
}

func FuzzSecretCipher_Decrypt(f *testing.F) {
	key := DeriveKey([]byte("fuzz"), []byte("0123456789abcdef"))
	c, err := NewSecretCipher(key, SchemeXChaCha20Poly1305)
	if err != nil {
		f.Fatal(err)
	}
	for _, scheme := range schemes {
		enc, _ := NewSecretCipher(key, scheme)
		tok, _ := enc.Encrypt([]byte("seed"))
		f.Add(tok)
	}
	f.Add("")
	f.Add("gAAAAA==")

	f.Fuzz(func(t *testing.T, tok string) {
		pt, err := c.Decrypt(tok)
		if err != nil && pt != nil {
			t.Fatalf("plaintext returned alongside error")
		}
	})
}
