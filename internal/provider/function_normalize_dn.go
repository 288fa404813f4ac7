package provider

import (
	"context"

	"github.com/hashicorp/terraform-plugin-framework/function"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

var _ function.Function = &NormalizeDNFunction{}

// NormalizeDNFunction implements the normalize_dn function.
type NormalizeDNFunction struct{}

// NewNormalizeDNFunction creates a new instance of the normalize_dn function.
func NewNormalizeDNFunction() function.Function {
	return &NormalizeDNFunction{}
}

func (f NormalizeDNFunction) Metadata(_ context.Context, req function.MetadataRequest, resp *function.MetadataResponse) {
	resp.Name = "normalize_dn"
}

func (f NormalizeDNFunction) Definition(_ context.Context, req function.DefinitionRequest, resp *function.DefinitionResponse) {
	resp.Definition = function.Definition{
		Summary: "Normalize a Distinguished Name",
		MarkdownDescription: "Returns the Distinguished Name in the form the provider stores DNs: attribute types " +
			"upper-cased, whitespace around separators removed and special characters escaped. " +
			"Use it to compare DNs from different sources.",
		Parameters: []function.Parameter{
			function.StringParameter{
				Name:                "dn",
				MarkdownDescription: "The Distinguished Name, e.g. `cn=Jane Doe, ou=Staff, dc=example, dc=com`.",
			},
		},
		Return: function.StringReturn{},
	}
}

func (f NormalizeDNFunction) Run(ctx context.Context, req function.RunRequest, resp *function.RunResponse) {
	var dn string

	resp.Error = function.ConcatFuncErrors(resp.Error, req.Arguments.Get(ctx, &dn))
	if resp.Error != nil {
		return
	}

	normalized, err := adldap.NormalizeDN(dn)
	if err != nil {
		resp.Error = function.NewArgumentFuncError(0, err.Error())
		return
	}

	resp.Error = function.ConcatFuncErrors(resp.Error, resp.Result.Set(ctx, normalized))
}
