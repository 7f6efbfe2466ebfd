package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	clientapi "github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/storage"
	"github.com/iudanet/gophsync/pkg/api"
)

type sessionOptions struct {
	UserID string
	Join   string
}

// sessionView вывод команды session; токен только в json формате
type sessionView struct {
	ExpiresAt   time.Time `json:"expires_at"`
	AccessToken string    `json:"access_token,omitempty"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Expired     bool      `json:"expired,omitempty"`
	Encrypted   bool      `json:"encrypted,omitempty"`
}

func newSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sessionOptions{}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Obtain a session token",
		Long: `Create a new session for the user, or join an existing one with --join.

Clients sharing a session id relay optimistic updates to each other.
The token is stored in the local database and used by other commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.UserID, "user", "u", "", "user id")
	cmd.Flags().StringVar(&opts.Join, "join", "", "join an existing session id")
	_ = cmd.MarkFlagRequired("user")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionStatus(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke",
		Short: "Revoke the session on the server and forget the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionRevoke(cmd, rootOpts)
		},
	})
	return cmd
}

func runSession(cmd *cobra.Command, rootOpts *RootOptions, opts *sessionOptions) error {
	e, err := openEnv(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	resp, err := e.client.CreateSession(ctx, api.CreateSessionRequest{UserID: opts.UserID, SessionID: opts.Join})
	if err != nil {
		return err
	}

	session := &storage.Session{
		ExpiresAt:   time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
		AccessToken: resp.AccessToken,
		SessionID:   resp.SessionID,
		UserID:      resp.UserID,
		ServerURL:   e.client.BaseURL(),
	}
	if e.store != nil {
		stored := *session
		if err := sealSession(&stored, e.cfg.Client.Passphrase); err != nil {
			return err
		}
		if err := e.store.SaveSession(ctx, &stored); err != nil {
			return err
		}
	}

	return e.out.Emit(sessionView{
		ExpiresAt:   session.ExpiresAt,
		AccessToken: session.AccessToken,
		SessionID:   session.SessionID,
		UserID:      session.UserID,
	}, "Session %s for user %s, expires %s", session.SessionID, session.UserID, session.ExpiresAt.Format(time.RFC3339))
}

func runSessionStatus(cmd *cobra.Command, rootOpts *RootOptions) error {
	e, err := openEnv(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.store == nil {
		return ErrNoSession
	}
	session, err := e.store.GetSession(cmd.Context())
	if errors.Is(err, storage.ErrSessionNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}

	view := sessionView{
		ExpiresAt: session.ExpiresAt,
		SessionID: session.SessionID,
		UserID:    session.UserID,
		Expired:   session.Expired(time.Now()),
		Encrypted: session.Sealed(),
	}
	state := "active"
	if view.Expired {
		state = "expired"
	}
	return e.out.Emit(view, "Session %s for user %s on %s: %s until %s",
		session.SessionID, session.UserID, session.ServerURL, state, session.ExpiresAt.Format(time.RFC3339))
}

func runSessionRevoke(cmd *cobra.Command, rootOpts *RootOptions) error {
	e, err := openEnv(cmd, rootOpts)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	err = e.authenticate(ctx)
	if err != nil && !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrPassphraseRequired) {
		return err
	}
	// Истёкшая, отозванная или нерасшифрованная сессия всё равно удаляется локально
	if e.client.Token() != "" {
		if err := e.client.RevokeSession(ctx); err != nil && !errors.Is(err, clientapi.ErrUnauthorized) {
			return err
		}
	}
	if e.store != nil {
		if err := e.store.DeleteSession(ctx); err != nil {
			return err
		}
	}
	return e.out.Emit(map[string]bool{"revoked": true}, "Session revoked")
}
