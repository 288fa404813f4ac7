// Package helpers converts query results into Terraform values.
package helpers

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/terraform-plugin-framework/attr"
	"github.com/hashicorp/terraform-plugin-framework/diag"
	"github.com/hashicorp/terraform-plugin-framework/types"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// StringOrNull returns a null string for "".
func StringOrNull(s string) types.String {
	if s == "" {
		return types.StringNull()
	}
	return types.StringValue(s)
}

// GUIDString returns the GUID in canonical form, null for the nil GUID.
func GUIDString(id uuid.UUID) types.String {
	if id == uuid.Nil {
		return types.StringNull()
	}
	return types.StringValue(id.String())
}

// TimeString formats t as RFC 3339 in UTC, null for the zero time.
func TimeString(t time.Time) types.String {
	if t.IsZero() {
		return types.StringNull()
	}
	return types.StringValue(t.UTC().Format(time.RFC3339))
}

// OptionalTimeString is TimeString for attributes that may be absent.
func OptionalTimeString(t *time.Time) types.String {
	if t == nil {
		return types.StringNull()
	}
	return TimeString(*t)
}

// StringList converts values to a list. A nil slice becomes an empty list,
// so that computed attributes are always known.
func StringList(ctx context.Context, values []string) (types.List, diag.Diagnostics) {
	if values == nil {
		values = []string{}
	}
	return types.ListValueFrom(ctx, types.StringType, values)
}

// DNList normalizes each DN before converting the values to a list. DNs that
// do not parse are kept as returned.
func DNList(ctx context.Context, dns []string) (types.List, diag.Diagnostics) {
	normalized := make([]string, len(dns))
	for i, dn := range dns {
		if n, err := adldap.NormalizeDN(dn); err == nil {
			normalized[i] = n
		} else {
			normalized[i] = dn
		}
	}
	return StringList(ctx, normalized)
}

// AttributeMapType is the type of an attribute name to values map.
var AttributeMapType = types.MapType{ElemType: types.ListType{ElemType: types.StringType}}

// AttributeMap converts raw entry attributes to a map of string lists.
func AttributeMap(ctx context.Context, attributes map[string][]string) (types.Map, diag.Diagnostics) {
	var diags diag.Diagnostics
	elements := make(map[string]attr.Value, len(attributes))
	for _, name := range slices.Sorted(maps.Keys(attributes)) {
		list, d := StringList(ctx, attributes[name])
		diags.Append(d...)
		if d.HasError() {
			return types.MapNull(AttributeMapType.ElemType), diags
		}
		elements[name] = list
	}
	m, d := types.MapValue(AttributeMapType.ElemType, elements)
	diags.Append(d...)
	return m, diags
}

// ObjectList builds a list of objects of attrTypes, one per item, using
// convert to produce each object's attributes.
func ObjectList[T any](attrTypes map[string]attr.Type, items []T, convert func(T) (map[string]attr.Value, diag.Diagnostics)) (types.List, diag.Diagnostics) {
	var diags diag.Diagnostics
	objectType := types.ObjectType{AttrTypes: attrTypes}

	elements := make([]attr.Value, 0, len(items))
	for _, item := range items {
		attrs, d := convert(item)
		diags.Append(d...)
		if d.HasError() {
			return types.ListNull(objectType), diags
		}
		obj, d := types.ObjectValue(attrTypes, attrs)
		diags.Append(d...)
		if d.HasError() {
			return types.ListNull(objectType), diags
		}
		elements = append(elements, obj)
	}

	list, d := types.ListValue(objectType, elements)
	diags.Append(d...)
	return list, diags
}
