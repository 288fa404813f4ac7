package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// FilterResult describes the search a query compiles to.
type FilterResult struct {
	Filter     string   `json:"filter" yaml:"filter"`
	Root       string   `json:"root,omitempty" yaml:"root,omitempty"`
	Scope      string   `json:"scope,omitempty" yaml:"scope,omitempty"`
	Sort       string   `json:"sort,omitempty" yaml:"sort,omitempty"`
	SizeLimit  int      `json:"size_limit,omitempty" yaml:"size_limit,omitempty"`
	Attributes []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Empty      bool     `json:"empty,omitempty" yaml:"empty,omitempty"`
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "filter <set>",
		Short: "Print the LDAP filter a query compiles to",
		Long: `Compile conditions into the LDAP search adquery would send, without
connecting to a directory.

` + setUsage,
		Example:   `  adquery filter users -w department:eq:IT -w mail:present`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: namedSets,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, opts, args[0])
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runFilter(cmd *cobra.Command, opts *QueryOptions, set string) error {
	q, err := buildQuery(directory.NewContext(nil, ""), set, opts)
	if err != nil {
		return err
	}
	compiled, err := q.Compile()
	if err != nil {
		return err
	}

	result := filterResult(compiled)
	return writeOutput(cmd.OutOrStdout(), opts.Format, result, func(w io.Writer) error {
		if result.Empty {
			_, err := fmt.Fprintln(cmd.ErrOrStderr(), "conditions can never match, no search would be sent")
			return err
		}
		_, err := fmt.Fprintln(w, result.Filter)
		return err
	})
}

func filterResult(c *query.Compiled) FilterResult {
	if c.Empty || c.Request == nil {
		return FilterResult{Empty: true}
	}
	out := FilterResult{
		Filter:     c.Filter,
		Root:       c.Request.Root,
		Scope:      c.Request.Scope.String(),
		SizeLimit:  c.Request.SizeLimit,
		Attributes: c.Request.Attributes,
	}
	if s := c.Request.Sort; s != nil {
		out.Sort = s.Attribute
		if s.Descending {
			out.Sort += " desc"
		}
	}
	return out
}
