package secretstore

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundtrip(t *testing.T) {
	s, err := Open(OpenOptions{Path: filepath.Join(t.TempDir(), "secrets")})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetString(CredentialKey("grvt", "api_key"), "abc123"))

	v, found, err := s.GetString(CredentialKey("grvt", "api_key"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc123", v)

	_, found, err = s.GetString(CredentialKey("grvt", "missing"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpenEncrypted(t *testing.T) {
	key, err := ParseEncryptionKey(strings.Repeat("ab", 32))
	require.NoError(t, err)
	require.Len(t, key, 32)

	s, err := Open(OpenOptions{Path: filepath.Join(t.TempDir(), "enc"), EncryptionKey: key})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetString("cred:lighter:account_index", "7"))
	v, found, err := s.GetString("cred:lighter:account_index")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "7", v)
}

func TestCredentialKey(t *testing.T) {
	assert.Equal(t, "cred:grvt:api_key", CredentialKey("GRVT", "API_KEY"))
	assert.Equal(t, "cred:lighter:account_index", CredentialKey("lighter", "account_index"))
}

func TestParseEncryptionKey(t *testing.T) {
	k, err := ParseEncryptionKey("")
	require.NoError(t, err)
	assert.Nil(t, k)

	k, err = ParseEncryptionKey("0x" + strings.Repeat("00", 32))
	require.NoError(t, err)
	assert.Len(t, k, 32)

	_, err = ParseEncryptionKey("zz")
	assert.Error(t, err)
	_, err = ParseEncryptionKey(strings.Repeat("00", 16))
	assert.Error(t, err, "长度必须是 32 字节")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(OpenOptions{})
	assert.Error(t, err)
}
