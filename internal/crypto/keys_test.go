package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, a, SaltSize)
	assert.NotEqual(t, a, b, "соли должны различаться")
}

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)

	tests := []struct {
		name       string
		passphrase string
		salt       []byte
		wantErr    error
		errMsg     string
	}{
		{name: "valid", passphrase: "correct horse", salt: salt},
		{name: "empty passphrase", passphrase: "", salt: salt, wantErr: ErrEmptyPassphrase},
		{name: "short salt", passphrase: "correct horse", salt: salt[:4], errMsg: "salt must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKey(tt.passphrase, "session", tt.salt)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			default:
				require.NoError(t, err)
				assert.Len(t, key, KeyLen)
			}
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{1}, SaltSize)

	k1, err := DeriveKey("pass", "session", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("pass", "session", salt)
	require.NoError(t, err)
	other, err := DeriveKey("pass", "snapshot", salt)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, other, "разный context даёт разные ключи")
}

func TestNewSealerFromPassphrase(t *testing.T) {
	salt, err := GenerateSaltBase64()
	require.NoError(t, err)

	sealer, err := NewSealerFromPassphrase("pass", "session", salt)
	require.NoError(t, err)
	sealed, err := sealer.SealString("token-abc")
	require.NoError(t, err)

	again, err := NewSealerFromPassphrase("pass", "session", salt)
	require.NoError(t, err)
	plain, err := again.OpenString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "token-abc", plain)

	wrong, err := NewSealerFromPassphrase("other", "session", salt)
	require.NoError(t, err)
	_, err = wrong.OpenString(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)

	_, err = NewSealerFromPassphrase("pass", "session", "not base64!")
	assert.Error(t, err)
}
