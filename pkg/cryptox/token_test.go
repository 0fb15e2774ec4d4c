package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s, err := GenerateSecret(SecretSize256)
		require.NoError(t, err)
		require.Len(t, s, 43)
		require.NotContains(t, seen, s)
		seen[s] = true
	}

	_, err := GenerateSecret(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	a := FingerprintToken("0123456789abcdef0123456789abcdef")
	require.Equal(t, a, FingerprintToken("0123456789abcdef0123456789abcdef"))
	require.NotEqual(t, a, FingerprintToken("1123456789abcdef0123456789abcdef"))
	require.Len(t, a, 11)
}
