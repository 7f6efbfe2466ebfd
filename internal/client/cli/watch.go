package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/models"
)

func newWatchCommand(rootOpts *RootOptions) *cobra.Command {
	var pull bool

	cmd := &cobra.Command{
		Use:   "watch [type...]",
		Short: "Print entity changes as they happen",
		Long: `Subscribe to entity types (all known types by default) and print every change:
pushes from the server, optimistic updates and rollbacks relayed by other
instances of the same session. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			types := args
			if len(types) == 0 {
				types = sync.KnownTypes
			}
			for _, t := range types {
				if !models.KnownEntityType(t) {
					return fmt.Errorf("%w: entity type %q", models.ErrUnknownPayload, t)
				}
			}

			a, err := openApp(cmd, rootOpts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, t := range types {
				unsubscribe := a.engine.Subscribe(t, func(key models.EntityKey, value models.Value) {
					if err := a.out.Entity(key, value, a.engine.Cache().Version(key)); err != nil {
						a.logger.Warn("Failed to print update", "entity", key.String(), "error", err)
					}
				})
				defer unsubscribe()
			}

			ctx := cmd.Context()
			if pull {
				if _, err := a.sync.Sync(ctx, types...); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching %v, press Ctrl+C to stop\n", types)

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&pull, "pull", true, "print current state before watching")
	return cmd
}
