package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

var _ validator.String = dnValidator{}

// dnValidator checks that a string parses as a distinguished name.
type dnValidator struct {
	// negatable accepts a leading "!" before the DN.
	negatable bool
}

func (v dnValidator) Description(_ context.Context) string {
	if v.negatable {
		return "value must be a valid Distinguished Name (DN), optionally prefixed with !"
	}
	return "value must be a valid Distinguished Name (DN)"
}

func (v dnValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v dnValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	dn := value
	if v.negatable {
		dn = strings.TrimPrefix(dn, "!")
	}

	if err := adldap.ValidateDN(dn); err != nil {
		response.Diagnostics.AddAttributeError(
			request.Path,
			"Invalid Distinguished Name",
			fmt.Sprintf("The value %q is not a valid Distinguished Name format: %s", value, err.Error()),
		)
	}
}

// IsValidDN returns a validator which ensures that any configured
// attribute value is a valid Distinguished Name (DN).
//
// Unknown values and null values are skipped from validation.
func IsValidDN() validator.String {
	return dnValidator{}
}

// IsValidDNWithNegation is IsValidDN for filter values that may be negated
// with a leading "!", such as "!CN=Contractors,OU=Groups,DC=example,DC=com".
func IsValidDNWithNegation() validator.String {
	return dnValidator{negatable: true}
}
