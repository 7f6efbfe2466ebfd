package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
		errMsg  string
	}{
		{name: "simple", userID: "alice"},
		{name: "with dash and digits", userID: "user-1"},
		{name: "email like", userID: "ops.team@example"},
		{name: "max length", userID: strings.Repeat("a", MaxIDLen)},
		{name: "empty", userID: "", wantErr: true, errMsg: "user_id is required"},
		{name: "too long", userID: strings.Repeat("a", MaxIDLen+1), wantErr: true, errMsg: "must not exceed"},
		{name: "space", userID: "alice smith", wantErr: true, errMsg: "can only contain"},
		{name: "slash", userID: "a/b", wantErr: true, errMsg: "can only contain"},
		{name: "cyrillic", userID: "алиса", wantErr: true, errMsg: "can only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.userID)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		wantErr   bool
	}{
		{name: "empty means new session", sessionID: ""},
		{name: "uuid", sessionID: "3f1c2a9e-7b1d-4c55-9a0e-1f2b3c4d5e6f"},
		{name: "free form", sessionID: "session-1"},
		{name: "newline", sessionID: "session\n1", wantErr: true},
		{name: "space", sessionID: "session 1", wantErr: true},
		{name: "too long", sessionID: strings.Repeat("s", MaxIDLen+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionID(tt.sessionID)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
