package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known test vector key (hardhat account #0). Never fund this.
const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct horse battery staple")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptAccepts0xPrefix(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "pw")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got, "stored without the prefix")
}

func TestEncryptRejectsBadInputs(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err, "empty password")

	_, err = EncryptKey("not-hex", "pw")
	assert.Error(t, err, "invalid hex")

	_, err = EncryptKey("abcd", "pw")
	assert.Error(t, err, "wrong key length")
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "right")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err, "GCM authentication must fail")
}

func TestDecryptRejectsMalformedBlob(t *testing.T) {
	_, err := DecryptKey([]byte("{not json"), "pw")
	assert.Error(t, err)

	_, err = DecryptKey([]byte(`{"version":99}`), "pw")
	assert.Error(t, err, "unknown schema version")
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "file-pw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{
		EncryptedKeyPath: path,
		KeyPassword:      "file-pw",
	})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
