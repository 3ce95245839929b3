package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRecord_LookupLatest(t *testing.T) {
	path := testPath(t)

	require.NoError(t, AppendRecord(path, "OPENAI_API_KEY", "tok-1"))
	require.NoError(t, AppendRecord(path, "ANTHROPIC_API_KEY", "tok-a"))
	require.NoError(t, AppendRecord(path, "OPENAI_API_KEY", "tok-2=="))

	got, err := LookupLatest(path, "OPENAI_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "tok-2==", got)

	got, err = LookupLatest(path, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "tok-a", got)

	want := "OPENAI_API_KEY_ENCRYPTED=tok-1\n" +
		"ANTHROPIC_API_KEY_ENCRYPTED=tok-a\n" +
		"OPENAI_API_KEY_ENCRYPTED=tok-2==\n"
	assert.Equal(t, want, readFile(t, path), "earlier records stay in the file")
}

func TestLookupLatest_NotFound(t *testing.T) {
	path := testPath(t)

	_, err := LookupLatest(path, "MISSING")
	require.ErrorIs(t, err, ErrSecretNotFound, "missing file")

	require.NoError(t, AppendRecord(path, "OTHER", "tok"))
	_, err = LookupLatest(path, "MISSING")
	require.ErrorIs(t, err, ErrSecretNotFound)
}

func TestLookupLatest_IgnoresSaltAndForeignLines(t *testing.T) {
	path := testPath(t)
	content := "# comment\nSALT=abc\nPLAIN=value\n\nKEY_ENCRYPTED=tok\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	got, err := LookupLatest(path, "KEY")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)

	_, err = LookupLatest(path, "PLAIN")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestListNames(t *testing.T) {
	path := testPath(t)

	names, err := ListNames(path)
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = GetOrCreateSalt(path)
	require.NoError(t, err)
	for _, name := range []string{"ZETA", "ALPHA", "ZETA", CanaryName, "MID_KEY"} {
		require.NoError(t, AppendRecord(path, name, "tok"))
	}

	names, err = ListNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"ALPHA", "MID_KEY", "ZETA"}, names)
}

func TestAppendRecord_Rejects(t *testing.T) {
	path := testPath(t)

	for _, name := range []string{"", "has space", "1LEADING_DIGIT", "dash-name", "NEW\nLINE"} {
		err := AppendRecord(path, name, "tok")
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}
	assert.Error(t, AppendRecord(path, "KEY", ""))
	assert.Error(t, AppendRecord(path, "KEY", "tok\nINJECTED_ENCRYPTED=x"))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written")
}

func TestAppendRecord_StorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "keys.env")
	err := AppendRecord(path, "KEY", "tok")
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("OPENAI_API_KEY"))
	assert.NoError(t, ValidateName("_private"))
	assert.ErrorIs(t, ValidateName(CanaryName), ErrInvalidName)
	assert.ErrorIs(t, ValidateName("a.b"), ErrInvalidName)
}

func TestReadRecords_SkipsMalformedLines(t *testing.T) {
	path := testPath(t)
	content := "SALT=abc\n" +
		"OPENAI_API_KEY_ENCRYPTED=tok-1\n" +
		"my-key_ENCRYPTED=gAAAAABfoo\n" +
		"OPENAI_API_KEY_ENCRYPTED=tok-2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var bad []int
	got, err := lookupLatest(path, "OPENAI_API_KEY", func(lineNo int, err error) {
		assert.Error(t, err)
		bad = append(bad, lineNo)
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got, "last record still wins")
	assert.Equal(t, []int{3}, bad)

	names, err := ListNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"OPENAI_API_KEY"}, names)

	has, err := HasRecords(path)
	require.NoError(t, err)
	assert.True(t, has)
}
