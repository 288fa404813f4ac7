package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// QueryOptions holds the flags shared by filter and search.
type QueryOptions struct {
	*RootOptions
	Where      []string
	Attributes []string
	Root       string
	Scope      string
	OrderBy    string
	Descending bool
	Skip       int
	Take       int
}

func (o *QueryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.Where, "where", "w", nil, "condition attribute:operator[:value], repeatable")
	cmd.Flags().StringSliceVarP(&o.Attributes, "attributes", "a", nil, "attributes to load for an object class set")
	cmd.Flags().StringVar(&o.Root, "root", "", "search root DN (default base DN)")
	cmd.Flags().StringVar(&o.Scope, "scope", "", "search scope (base|onelevel|subtree)")
	cmd.Flags().StringVar(&o.OrderBy, "order-by", "", "field or attribute the server sorts by")
	cmd.Flags().BoolVar(&o.Descending, "desc", false, "sort descending")
	cmd.Flags().IntVar(&o.Skip, "skip", 0, "results to skip")
	cmd.Flags().IntVar(&o.Take, "take", -1, "maximum results, -1 for all")
}

// Named sets map to the directory model. Any other name is an object class.
var namedSets = []string{"users", "groups", "ous"}

const setUsage = `<set> is one of users, groups or ous, or any object class such as
computer or contact. Conditions are combined with AND; operators are ` +
	"eq, ne, lt, le, gt, ge, approx, starts_with, ends_with, contains,\npresent, absent, bit_and, bit_or and in_chain."

// buildQuery compiles the flags into a query over set returning raw entries.
func buildQuery(dir *directory.Context, set string, o *QueryOptions) (*query.Query[query.Entry], error) {
	var setOpts []query.SetOption
	if o.Root != "" {
		if err := adldap.ValidateDN(o.Root); err != nil {
			return nil, fmt.Errorf("invalid root: %w", err)
		}
		setOpts = append(setOpts, query.Under(o.Root))
	}
	if o.Scope != "" {
		scope, err := query.ParseScope(o.Scope)
		if err != nil {
			return nil, err
		}
		setOpts = append(setOpts, query.InScope(scope))
	}

	conditions := make([]query.Condition, 0, len(o.Where))
	for _, w := range o.Where {
		c, err := query.ParseCondition(w)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}

	switch strings.ToLower(set) {
	case "users":
		return refine(dir.Users(setOpts...), conditions, o)
	case "groups":
		return refine(dir.Groups(setOpts...), conditions, o)
	case "ous":
		return refine(dir.OUs(setOpts...), conditions, o)
	case "":
		return nil, fmt.Errorf("set cannot be empty")
	}
	return refine(dir.Dynamic(set, o.Attributes, setOpts...), conditions, o)
}

func refine[T any](q *query.Query[T], conditions []query.Condition, o *QueryOptions) (*query.Query[query.Entry], error) {
	if len(conditions) > 0 {
		p, err := query.Where(conditions...)
		if err != nil {
			return nil, err
		}
		q = q.Where(p)
	}
	if o.OrderBy != "" {
		key := func(x query.Expr) query.Expr { return x.Field(o.OrderBy) }
		if o.Descending {
			q = q.OrderByDescending(key)
		} else {
			q = q.OrderBy(key)
		}
	}
	if o.Skip > 0 {
		q = q.Skip(o.Skip)
	}
	if o.Take >= 0 {
		q = q.Take(o.Take)
	}
	return query.AsEntries(q), nil
}
