package types

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types/basetypes"
	"github.com/hashicorp/terraform-plugin-go/tftypes"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

var (
	_ basetypes.StringTypable                    = DNStringType{}
	_ basetypes.StringValuable                   = DNStringValue{}
	_ basetypes.StringValuableWithSemanticEquals = DNStringValue{}
)

// DNStringType is a string holding a distinguished name. Two values are
// semantically equal when they name the same entry, so a DN given in the
// configuration survives the server's spelling of it.
type DNStringType struct {
	basetypes.StringType
}

func (t DNStringType) String() string {
	return "DNStringType"
}

func (t DNStringType) ValueType(ctx context.Context) attr.Value {
	return DNStringValue{}
}

func (t DNStringType) Equal(o attr.Type) bool {
	other, ok := o.(DNStringType)
	if !ok {
		return false
	}
	return t.StringType.Equal(other.StringType)
}

func (t DNStringType) ValueFromString(ctx context.Context, in basetypes.StringValue) (basetypes.StringValuable, diag.Diagnostics) {
	return DNStringValue{StringValue: in}, nil
}

func (t DNStringType) ValueFromTerraform(ctx context.Context, in tftypes.Value) (attr.Value, error) {
	attrValue, err := t.StringType.ValueFromTerraform(ctx, in)
	if err != nil {
		return nil, err
	}
	stringValue, ok := attrValue.(basetypes.StringValue)
	if !ok {
		return nil, fmt.Errorf("expected basetypes.StringValue, got: %T", attrValue)
	}
	return DNStringValue{StringValue: stringValue}, nil
}

// DNStringValue is the value of a DNStringType.
type DNStringValue struct {
	basetypes.StringValue
}

func (v DNStringValue) Equal(o attr.Value) bool {
	other, ok := o.(DNStringValue)
	if !ok {
		return false
	}
	return v.StringValue.Equal(other.StringValue)
}

func (v DNStringValue) Type(ctx context.Context) attr.Type {
	return DNStringType{}
}

// StringSemanticEquals compares the normalized DNs, ignoring case. Values
// that do not parse are compared as plain strings, ignoring case.
func (v DNStringValue) StringSemanticEquals(ctx context.Context, newValuable basetypes.StringValuable) (bool, diag.Diagnostics) {
	var diags diag.Diagnostics

	newValue, ok := newValuable.(DNStringValue)
	if !ok {
		diags.AddError(
			"Semantic Equality Check Error",
			"An unexpected value type was received while attempting to perform semantic equality checks. "+
				"Please report this issue to the provider developers.\n\n"+
				fmt.Sprintf("Expected DNStringValue, got: %T", newValuable),
		)
		return false, diags
	}

	if v.IsNull() || v.IsUnknown() || newValue.IsNull() || newValue.IsUnknown() {
		return v.Equal(newValue), diags
	}

	return SameDN(v.ValueString(), newValue.ValueString()), diags
}

// SameDN reports whether a and b name the same entry.
func SameDN(a, b string) bool {
	na, errA := adldap.NormalizeDN(a)
	nb, errB := adldap.NormalizeDN(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return strings.EqualFold(na, nb)
}

// DNString returns a known DNStringValue.
func DNString(value string) DNStringValue {
	return DNStringValue{StringValue: basetypes.NewStringValue(value)}
}

func DNStringNull() DNStringValue {
	return DNStringValue{StringValue: basetypes.NewStringNull()}
}

func DNStringUnknown() DNStringValue {
	return DNStringValue{StringValue: basetypes.NewStringUnknown()}
}
