// Package validation проверяет идентификаторы, приходящие от клиентов.
package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// UserIDPattern определяет допустимый формат user_id:
// латинские буквы, цифры и символы _ - . @
var UserIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.@-]+$`)

// MaxIDLen максимальная длина идентификатора
const MaxIDLen = 64

// ErrInvalidID идентификатор не прошёл проверку
var ErrInvalidID = errors.New("invalid identifier")

// ValidateUserID проверяет, что user_id можно использовать как ключ хранилища и метку логов.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidID)
	}
	if len(userID) > MaxIDLen {
		return fmt.Errorf("%w: user_id must not exceed %d characters", ErrInvalidID, MaxIDLen)
	}
	if !UserIDPattern.MatchString(userID) {
		return fmt.Errorf("%w: user_id can only contain letters, numbers and _ - . @", ErrInvalidID)
	}
	return nil
}

// ValidateSessionID проверяет session_id для присоединения; пустой id означает новую сессию.
func ValidateSessionID(sessionID string) error {
	if len(sessionID) > MaxIDLen {
		return fmt.Errorf("%w: session_id must not exceed %d characters", ErrInvalidID, MaxIDLen)
	}
	for _, r := range sessionID {
		if r <= ' ' || r == 0x7f {
			return fmt.Errorf("%w: session_id contains control or space characters", ErrInvalidID)
		}
	}
	return nil
}
