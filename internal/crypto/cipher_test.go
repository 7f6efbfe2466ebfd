package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSealer(t *testing.T) *Sealer {
	t.Helper()
	key := make([]byte, KeyLen)
	_, _ = rand.Read(key)
	s, err := NewSealer(key)
	require.NoError(t, err)
	return s
}

func TestNewSealer_KeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 64} {
		_, err := NewSealer(make([]byte, n))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "encryption key must be 32 bytes")
	}
}

func TestSealer_SealOpen(t *testing.T) {
	s := newTestSealer(t)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{name: "short", plaintext: []byte("x")},
		{name: "token", plaintext: []byte("eyJhbGciOiJIUzI1NiJ9.payload.signature")},
		{name: "binary", plaintext: []byte{0, 1, 2, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.plaintext)
			require.NoError(t, err)
			assert.NotContains(t, string(sealed), string(tt.plaintext))

			plain, err := s.Open(sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plain)
		})
	}
}

func TestSealer_RandomNonce(t *testing.T) {
	s := newTestSealer(t)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_Errors(t *testing.T) {
	s := newTestSealer(t)

	_, err := s.Seal(nil)
	assert.Error(t, err)

	sealed, err := s.Seal([]byte("secret"))
	require.NoError(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = s.Open(tampered)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = s.Open(sealed[:4])
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = newTestSealer(t).Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = s.OpenString("%%%")
	assert.ErrorIs(t, err, ErrDecrypt)
}
