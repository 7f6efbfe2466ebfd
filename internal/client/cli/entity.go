package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/models"
)

func newGetCommand(rootOpts *RootOptions) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "get <type:id>",
		Short: "Show an entity",
		Long: `Fetch an entity from the server and print it.

With --cached the value comes from the local cache snapshot without a request.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := models.ParseEntityKey(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if cached {
				entry, ok := a.engine.Entry(key)
				if !ok {
					return fmt.Errorf("%s is not in the local cache", key)
				}
				return a.out.Entity(key, entry.Value, entry.Version)
			}

			value, err := a.data.Fetch(cmd.Context(), key)
			if err != nil {
				return err
			}
			return a.out.Entity(key, value, a.engine.Cache().Version(key))
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "read from the local cache only")
	return cmd
}

func newSetCommand(rootOpts *RootOptions) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "set <type:id> <json>",
		Short: "Create or replace an entity",
		Long: `Replace the whole value of an entity.

The value is applied to the local cache immediately and rolled back if the
server rejects the request.`,
		Example: `  gophsync set domain:example.com '{"status":"validated","leadScore":0.7}'
  gophsync set proxy:p1 '{"address":"10.0.0.1:8080","healthy":true}' --create`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := models.ParseEntityKey(args[0])
			if err != nil {
				return err
			}
			value, err := models.DecodeValue(key.Type, json.RawMessage(args[1]))
			if err != nil {
				return err
			}

			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			update := a.data.Update
			if create {
				update = a.data.Create
			}
			res, err := update(cmd.Context(), key, value)
			if err != nil {
				return fmt.Errorf("update of %s rolled back: %w", key, err)
			}
			current, _ := a.engine.Get(key)
			return a.out.Entity(key, current, res.Version)
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "track the mutation as a create")
	return cmd
}

func newDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type:id>",
		Short: "Delete an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := models.ParseEntityKey(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, rootOpts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.data.Delete(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("delete of %s rolled back: %w", key, err)
			}
			return a.out.Entity(key, nil, res.Version)
		},
	}
}
