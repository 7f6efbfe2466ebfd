// Package cli команды клиента gophsync.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// BuildInfo версия сборки, задаётся через ldflags
type BuildInfo struct {
	Version   string
	BuildDate string
	GitCommit string
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	ServerURL  string
	DBPath     string
	Token      string
	Format     string // "json" | "text"
	Verbose    bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the gophsync client.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gophsync",
		Short: "GophSync client",
		Long: `Client for the GophSync reference server.

Mutations are applied optimistically to the local cache and confirmed or
rolled back by the server. The cache snapshot and the session token are kept
in a local bolt database between runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	flags.StringVar(&opts.ServerURL, "server", "", "server URL (overrides config)")
	flags.StringVar(&opts.DBPath, "db", "", "path to local database (overrides config)")
	flags.StringVar(&opts.Token, "token", "", "session access token (overrides stored session)")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newSessionCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newSetCommand(opts))
	cmd.AddCommand(newDeleteCommand(opts))
	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newVersionCommand(info))

	return cmd
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "GophSync Client\n")
			fmt.Fprintf(w, "Version:    %s\n", info.Version)
			fmt.Fprintf(w, "Build Date: %s\n", info.BuildDate)
			fmt.Fprintf(w, "Git Commit: %s\n", info.GitCommit)
			return nil
		},
	}
}
