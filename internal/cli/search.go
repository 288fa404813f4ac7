package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/terraform-plugin-log/tflog"
	"github.com/hashicorp/terraform-plugin-log/tflogtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <set>",
		Short: "Run a query against Active Directory",
		Long: `Compile conditions into a single LDAP search, run it and print the entries.

` + setUsage,
		Example: `  adquery search users -w department:eq:IT --order-by sAMAccountName --take 20
  adquery search computer -a dNSHostName,operatingSystem -w operatingSystem:starts_with:Windows -o yaml`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: namedSets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args[0])
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runSearch(cmd *cobra.Command, opts *QueryOptions, set string) error {
	config, err := LoadConfig(opts.ConfigFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Verbose {
		ctx = tflogtest.RootLogger(ctx, cmd.ErrOrStderr())
	}
	ctx = query.NewLoggingContext(adldap.NewLoggingContext(ctx))

	backend, baseDN, closer, err := opts.openDirectory(ctx, config)
	if err != nil {
		return err
	}
	defer closer.Close()

	var queryOpts []query.Option
	registry := prometheus.NewRegistry()
	if opts.Metrics {
		queryOpts = append(queryOpts, query.WithMetrics(query.NewMetrics(registry)))
	}

	q, err := buildQuery(directory.NewContext(backend, baseDN, queryOpts...), set, opts)
	if err != nil {
		return err
	}
	entries, err := q.ToSlice(ctx)
	if err != nil {
		return err
	}

	tflog.Debug(ctx, "Search complete", map[string]any{"entries": len(entries)})

	out := entryOutputs(entries)
	if err := writeOutput(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) error {
		return writeEntriesText(w, out)
	}); err != nil {
		return err
	}

	if opts.Metrics {
		return writeMetrics(cmd.ErrOrStderr(), registry)
	}
	return nil
}

// openDirectory connects and binds, reading the base DN from the root DSE when
// it is not configured.
func openDirectory(ctx context.Context, config *adldap.ConnectionConfig) (query.Backend, string, io.Closer, error) {
	client, err := adldap.NewClient(ctx, config)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to create LDAP client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		client.Close()
		return nil, "", nil, fmt.Errorf("failed to connect: %w", err)
	}

	baseDN := config.BaseDN
	if baseDN == "" {
		if baseDN, err = client.GetBaseDN(ctx); err != nil {
			client.Close()
			return nil, "", nil, fmt.Errorf("failed to read base DN: %w", err)
		}
	}
	return directory.ClientBackend(client), baseDN, client, nil
}
