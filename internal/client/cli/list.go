package cli

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/models"
)

func newListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <type>",
		Short: "List entities of a type",
		Long:  "Pull all entities of the type from the server into the cache and print them.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType := args[0]
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.sync.Sync(cmd.Context(), entityType); err != nil {
				return err
			}

			keys := a.engine.Cache().Keys(entityType)
			slices.SortFunc(keys, func(x, y models.EntityKey) int {
				return strings.Compare(x.ID, y.ID)
			})
			for _, key := range keys {
				entry, ok := a.engine.Entry(key)
				if !ok {
					continue
				}
				if err := a.out.Entity(key, entry.Value, entry.Version); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
