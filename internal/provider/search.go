package provider

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework-validators/boolvalidator"
	"github.com/hashicorp/terraform-plugin-framework-validators/int64validator"
	"github.com/hashicorp/terraform-plugin-framework-validators/stringvalidator"
	"github.com/hashicorp/terraform-plugin-framework/datasource/schema"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/path"
	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"github.com/hashicorp/terraform-plugin-framework/types"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/provider/validators"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// searchArgs are the arguments shared by the list data sources.
type searchArgs struct {
	Container  types.String
	Scope      types.String
	OrderBy    types.String
	Descending types.Bool
	Skip       types.Int64
	Take       types.Int64
}

// searchAttributes returns the schema attributes for searchArgs plus the
// computed ldap_filter and id. sortFields maps order_by values to model
// fields; nil accepts any attribute name.
func searchAttributes(noun string, sortFields map[string]string) map[string]schema.Attribute {
	orderBy := schema.StringAttribute{
		MarkdownDescription: "Attribute to sort the " + noun + " by, server-side.",
		Optional:            true,
	}
	if sortFields != nil {
		names := slices.Sorted(maps.Keys(sortFields))
		orderBy.MarkdownDescription += " One of `" + strings.Join(names, "`, `") + "`."
		orderBy.Validators = []validator.String{stringvalidator.OneOf(names...)}
	}

	return map[string]schema.Attribute{
		"container": schema.StringAttribute{
			MarkdownDescription: "The DN of the container to search within. Defaults to the provider base DN. " +
				"Example: `OU=Users,DC=example,DC=com`",
			Optional: true,
			Validators: []validator.String{
				validators.IsValidDN(),
			},
		},
		"scope": schema.StringAttribute{
			MarkdownDescription: "The search scope to use. Valid values: `base`, `onelevel`, `subtree`. Defaults to `subtree`.",
			Optional:            true,
			Validators: []validator.String{
				validators.CaseInsensitiveOneOf("base", "onelevel", "subtree"),
			},
		},
		"order_by": orderBy,
		"descending": schema.BoolAttribute{
			MarkdownDescription: "Sort in descending order. Requires `order_by`.",
			Optional:            true,
			Validators: []validator.Bool{
				boolvalidator.AlsoRequires(path.MatchRoot("order_by")),
			},
		},
		"skip": schema.Int64Attribute{
			MarkdownDescription: "Number of matching " + noun + " to skip.",
			Optional:            true,
			Validators: []validator.Int64{
				int64validator.AtLeast(0),
			},
		},
		"take": schema.Int64Attribute{
			MarkdownDescription: "Maximum number of " + noun + " to return. `0` returns none without searching.",
			Optional:            true,
			Validators: []validator.Int64{
				int64validator.AtLeast(0),
			},
		},
		"ldap_filter": schema.StringAttribute{
			MarkdownDescription: "The LDAP filter sent to the server. Empty when the arguments can match nothing " +
				"and no search is sent.",
			Computed: true,
		},
		"id": schema.StringAttribute{
			MarkdownDescription: "A computed identifier built from the search root, scope and filter.",
			Computed:            true,
		},
	}
}

// setOptions resolves container and scope. A container outside the base DN
// is allowed, with a warning.
func setOptions(baseDN string, args searchArgs, diags *diag.Diagnostics) []query.SetOption {
	var opts []query.SetOption

	if container := args.Container.ValueString(); container != "" {
		if err := adldap.ValidateDN(container); err != nil {
			diags.AddAttributeError(path.Root("container"), "Invalid Container", err.Error())
			return nil
		}
		if baseDN != "" {
			if beneath, err := adldap.IsBeneath(container, baseDN); err == nil && !beneath {
				diags.AddAttributeWarning(path.Root("container"), "Container Outside Base DN",
					fmt.Sprintf("The container %q is not below the base DN %q.", container, baseDN))
			}
		}
		opts = append(opts, query.Under(container))
	}

	if !args.Scope.IsNull() {
		scope, err := query.ParseScope(args.Scope.ValueString())
		if err != nil {
			diags.AddAttributeError(path.Root("scope"), "Invalid Scope", err.Error())
			return nil
		}
		opts = append(opts, query.InScope(scope))
	}

	return opts
}

// sortField returns the field order_by refers to, or "" when unset.
func sortField(args searchArgs, sortFields map[string]string) (string, error) {
	name := args.OrderBy.ValueString()
	if name == "" {
		return "", nil
	}
	if sortFields == nil {
		return name, nil
	}
	field, ok := sortFields[name]
	if !ok {
		return "", fmt.Errorf("cannot order by %q", name)
	}
	return field, nil
}

// orderAndPage applies order_by, descending, skip and take to q.
func orderAndPage[T any](q *query.Query[T], args searchArgs, field string) *query.Query[T] {
	if field != "" {
		key := func(x query.Expr) query.Expr { return x.Field(field) }
		if args.Descending.ValueBool() {
			q = q.OrderByDescending(key)
		} else {
			q = q.OrderBy(key)
		}
	}
	if !args.Skip.IsNull() {
		q = q.Skip(int(args.Skip.ValueInt64()))
	}
	if !args.Take.IsNull() {
		q = q.Take(int(args.Take.ValueInt64()))
	}
	return q
}

// searchID identifies a search by the request it compiles to.
func searchID(compiled *query.Compiled, baseDN string) string {
	if compiled.Empty || compiled.Request == nil {
		return baseDN + "?empty"
	}
	req := compiled.Request
	return fmt.Sprintf("%s?%s?%s", req.Root, req.Scope, req.Filter)
}

// queryErrorDetail adds the error category to a query error message.
func queryErrorDetail(err error) string {
	if category := query.ErrorCategoryOf(err); category != "" {
		return fmt.Sprintf("%s (%s)", err.Error(), category)
	}
	return err.Error()
}

// parseFilterValue splits a leading "!" from value.
func parseFilterValue(value string) (cleanValue string, negate bool) {
	if strings.HasPrefix(value, "!") {
		return strings.TrimPrefix(value, "!"), true
	}
	return value, false
}

// negatable returns p, or its negation when value starts with "!".
func negatable(value string, build func(v string) query.Predicate) query.Predicate {
	clean, negate := parseFilterValue(value)
	return negateIf(build(clean), negate)
}

func negateIf(p query.Predicate, negate bool) query.Predicate {
	if !negate {
		return p
	}
	return func(x query.Expr) query.Expr { return p(x).Not() }
}
