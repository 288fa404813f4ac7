package validators

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/schema/validator"
	"golang.org/x/text/cases"
)

var _ validator.String = caseInsensitiveOneOfValidator{}

var folder = cases.Fold()

// caseInsensitiveOneOfValidator accepts any of validValues under Unicode case
// folding, ignoring surrounding whitespace.
type caseInsensitiveOneOfValidator struct {
	validValues []string
	// negatable accepts a leading "!" before the value.
	negatable bool
}

func (v caseInsensitiveOneOfValidator) Description(_ context.Context) string {
	desc := fmt.Sprintf("value must be one of: %s (case-insensitive)", strings.Join(v.validValues, ", "))
	if v.negatable {
		desc += ", optionally prefixed with !"
	}
	return desc
}

func (v caseInsensitiveOneOfValidator) MarkdownDescription(ctx context.Context) string {
	return v.Description(ctx)
}

func (v caseInsensitiveOneOfValidator) ValidateString(ctx context.Context, request validator.StringRequest, response *validator.StringResponse) {
	if request.ConfigValue.IsNull() || request.ConfigValue.IsUnknown() {
		return
	}

	value := request.ConfigValue.ValueString()
	input := strings.TrimSpace(value)
	if v.negatable {
		input = strings.TrimPrefix(input, "!")
	}
	input = folder.String(input)

	for _, valid := range v.validValues {
		if input == folder.String(valid) {
			return
		}
	}

	response.Diagnostics.AddAttributeError(
		request.Path,
		"Invalid Value",
		fmt.Sprintf(
			"The value %q is not valid. Must be one of: %s (case-insensitive)",
			value,
			strings.Join(v.validValues, ", "),
		),
	)
}

// CaseInsensitiveOneOf returns a validator which ensures that any configured
// attribute value matches one of the provided values, ignoring case differences.
//
// Unknown values and null values are skipped from validation.
func CaseInsensitiveOneOf(values ...string) validator.String {
	return caseInsensitiveOneOfValidator{validValues: values}
}

// NegatableOneOf is CaseInsensitiveOneOf for filter values that may be
// negated with a leading "!".
func NegatableOneOf(values ...string) validator.String {
	return caseInsensitiveOneOfValidator{validValues: values, negatable: true}
}
