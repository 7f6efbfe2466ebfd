package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/sync"
)

func newSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [type...]",
		Short: "Pull current server state into the local cache",
		Long: `Pull all entities of the given types (all known types by default) into the
local cache. Values older than the cached version are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			return runSync(cmd.Context(), a.sync, a.out, args)
		},
	}
}

func runSync(ctx context.Context, svc sync.Service, out *Printer, types []string) error {
	result, err := svc.Sync(ctx, types...)
	if err != nil {
		return err
	}
	return out.Emit(result,
		"Pulled %d entities: %d applied, %d skipped, %d invalid",
		result.PulledEntries, result.AppliedEntries, result.SkippedEntries, result.InvalidEntries)
}
