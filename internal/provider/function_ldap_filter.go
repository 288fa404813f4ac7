package provider

import (
	"context"
	"fmt"

	"github.com/hashicorp/terraform-plugin-framework/function"
	"github.com/hashicorp/terraform-plugin-framework/types"

	"github.com/isometry/terraform-provider-adquery/internal/directory"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

var _ function.Function = &LDAPFilterFunction{}

// LDAPFilterFunction implements the ldap_filter function. It compiles
// conditions without searching.
type LDAPFilterFunction struct{}

// NewLDAPFilterFunction creates a new instance of the ldap_filter function.
func NewLDAPFilterFunction() function.Function {
	return &LDAPFilterFunction{}
}

func (f LDAPFilterFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "ldap_filter"
}

func (f LDAPFilterFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Compile conditions into an LDAP filter",
		MarkdownDescription: "Compiles `attribute:operator[:value]` conditions on entries of an object class into " +
			"the LDAP filter `adquery_entries` would send. Conditions are combined with AND. " +
			"Returns an empty string when the conditions can never match.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "object_class",
				MarkdownDescription: "The objectClass to match, e.g. `user`.",
			},
			function.ListParameter{
				Name:                "conditions",
				ElementType:         types.StringType,
				MarkdownDescription: "Conditions such as `department:eq:IT` or `mail:present`.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f LDAPFilterFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var objectClass string
	var conditions []string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &objectClass, &conditions))
	if resp.Error != nil {
		return
	}

	filter, err := compileConditions(objectClass, conditions)
	if err != nil {
		resp.Error = function.NewFuncError(err.Error())
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, filter))
}

// compileConditions parses each condition and compiles them for objectClass.
func compileConditions(objectClass string, conditions []string) (string, error) {
	if objectClass == "" {
		return "", fmt.Errorf("object_class cannot be empty")
	}

	parsed := make([]query.Condition, 0, len(conditions))
	for i, c := range conditions {
		condition, err := query.ParseCondition(c)
		if err != nil {
			return "", fmt.Errorf("condition %d: %w", i, err)
		}
		parsed = append(parsed, condition)
	}

	q := directory.NewContext(nil, "").Dynamic(objectClass, nil)
	if len(parsed) > 0 {
		p, err := query.Where(parsed...)
		if err != nil {
			return "", err
		}
		q = q.Where(p)
	}
	return q.Filter()
}
