package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Format     string // "text" | "json" | "yaml"
	Verbose    bool
	Metrics    bool

	// openDirectory is replaced in tests.
	openDirectory func(ctx context.Context, config *adldap.ConnectionConfig) (query.Backend, string, io.Closer, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the adquery CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{openDirectory: openDirectory})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adquery",
		Short: "Query Active Directory with compiled LDAP searches",
		Long: `adquery compiles conditions on users, groups, organizational units or any
object class into a single LDAP search, and optionally runs it.

Connection settings are read from a config file and ADQUERY_* environment
variables, e.g. ADQUERY_DOMAIN, ADQUERY_USERNAME and ADQUERY_PASSWORD.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "connection config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVarP(&opts.Format, "format", "o", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log LDAP and query activity to stderr")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print search metrics to stderr after the run")

	cmd.AddCommand(NewFilterCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}
