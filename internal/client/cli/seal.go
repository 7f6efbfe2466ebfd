package cli

import (
	"errors"
	"fmt"

	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/internal/crypto"
)

// sessionKeyContext назначение ключа, выводимого из пароля клиента
const sessionKeyContext = "gophsync-session-token"

// ErrPassphraseRequired сохранённый токен зашифрован, а пароль не задан
var ErrPassphraseRequired = errors.New("stored session is encrypted: set client.passphrase or GOPHSYNC_PASSPHRASE")

// sealSession шифрует AccessToken паролем; пустой пароль оставляет токен открытым.
func sealSession(session *storage.Session, passphrase string) error {
	if passphrase == "" {
		return nil
	}
	salt, err := crypto.GenerateSaltBase64()
	if err != nil {
		return err
	}
	sealer, err := crypto.NewSealerFromPassphrase(passphrase, sessionKeyContext, salt)
	if err != nil {
		return err
	}
	sealed, err := sealer.SealString(session.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt session token: %w", err)
	}
	session.AccessToken = sealed
	session.Salt = salt
	return nil
}

// openToken возвращает токен сохранённой сессии, расшифровывая его при необходимости.
func openToken(session *storage.Session, passphrase string) (string, error) {
	if !session.Sealed() {
		return session.AccessToken, nil
	}
	if passphrase == "" {
		return "", ErrPassphraseRequired
	}
	sealer, err := crypto.NewSealerFromPassphrase(passphrase, sessionKeyContext, session.Salt)
	if err != nil {
		return "", err
	}
	token, err := sealer.OpenString(session.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt session token: %w", err)
	}
	return token, nil
}
