package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer("a passphrase that is not 32 bytes")
	require.NoError(t, err)

	blob := "vless://3f1c@vpn.example.com:443?security=tls#Main_monthly"
	sealed, err := s.Encrypt(blob)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "vpn.example.com")

	out, err := s.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, blob, out)

	again, err := s.Encrypt(blob)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per message")
}

func TestSealerReadsLegacyPlaintext(t *testing.T) {
	s, err := NewSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	out, err := s.Decrypt("vless://plain")
	require.NoError(t, err)
	assert.Equal(t, "vless://plain", out)
}

func TestSealerWrongKey(t *testing.T) {
	a, _ := NewSealer("key-a")
	b, _ := NewSealer("key-b")
	sealed, err := a.Encrypt("secret")
	require.NoError(t, err)
	_, err = b.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewFromKey(t *testing.T) {
	s, err := NewFromKey("")
	require.NoError(t, err)
	assert.IsType(t, Plaintext{}, s)

	_, err = s.Decrypt(sealedPrefix + "AAAA")
	assert.Error(t, err)

	_, err = NewSealer("")
	assert.Error(t, err)
}
