package query

import (
	"fmt"
	"strings"
)

// Kind is the logical type of an attribute value.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindInt64
	KindFloat
	KindTime     // LDAP generalized time
	KindFileTime // Windows FILETIME ticks, as used by lastLogon and pwdLastSet
	KindBytes
	KindGUID // objectGUID, mixed-endian
	KindSID  // objectSid, rendered S-1-...
	KindDN
	KindAny
)

var kindNames = map[Kind]string{
	KindString:   "string",
	KindBool:     "bool",
	KindInt:      "int",
	KindInt64:    "int64",
	KindFloat:    "float",
	KindTime:     "time",
	KindFileTime: "filetime",
	KindBytes:    "bytes",
	KindGUID:     "guid",
	KindSID:      "sid",
	KindDN:       "dn",
	KindAny:      "any",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ValueType is the projected type of an attribute.
type ValueType struct {
	Kind     Kind
	Multi    bool // all values, as a slice
	Optional bool // a pointer, nil when the attribute is absent
}

func (t ValueType) String() string {
	switch {
	case t.Multi:
		return "[]" + t.Kind.String()
	case t.Optional:
		return "*" + t.Kind.String()
	default:
		return t.Kind.String()
	}
}

// Scalar is a single-valued type.
func Scalar(k Kind) ValueType { return ValueType{Kind: k} }

// List is a multi-valued type.
func List(k Kind) ValueType { return ValueType{Kind: k, Multi: true} }

// Optional is a single-valued type projected as a pointer.
func Optional(k Kind) ValueType { return ValueType{Kind: k, Optional: true} }

// Scope is the depth of a search below its root.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

func (s Scope) String() string {
	switch s {
	case ScopeBase:
		return "base"
	case ScopeOneLevel:
		return "onelevel"
	default:
		return "subtree"
	}
}

// ParseScope accepts base, onelevel (one) and subtree (sub), case-insensitively.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return ScopeBase, nil
	case "onelevel", "one":
		return ScopeOneLevel, nil
	case "subtree", "sub", "":
		return ScopeSubtree, nil
	}
	return ScopeSubtree, fmt.Errorf("invalid scope %q: must be base, onelevel or subtree", s)
}

// DNAttribute is read from the entry DN when the server does not return it.
const DNAttribute = "distinguishedName"

// FieldMapping binds an entity field to a directory attribute, or to a deferred
// collection when Collection is set.
type FieldMapping struct {
	Field      string
	Attribute  string
	Type       ValueType
	Collection *CollectionMapping
}

// Field maps field to attribute.
func Field(field, attribute string, t ValueType) FieldMapping {
	return FieldMapping{Field: field, Attribute: attribute, Type: t}
}

// Mapping describes an entity: the object class selecting its entries and the
// attributes behind each field. Build it once and share it.
type Mapping struct {
	Name        string
	ObjectClass string
	// Filter narrows the object class, e.g. to exclude computers from users.
	Filter Node
	Fields []FieldMapping
}

// NewMapping returns a mapping for objectClass entries.
func NewMapping(name, objectClass string, fields ...FieldMapping) *Mapping {
	return &Mapping{Name: name, ObjectClass: objectClass, Fields: fields}
}

// DynamicMapping maps each attribute to a multi-valued string field of the same
// name, plus the entry DN.
func DynamicMapping(objectClass string, attributes ...string) *Mapping {
	fields := []FieldMapping{Field(DNAttribute, DNAttribute, Scalar(KindDN))}
	for _, a := range attributes {
		if strings.EqualFold(a, DNAttribute) {
			continue
		}
		fields = append(fields, Field(a, a, List(KindString)))
	}
	return NewMapping(objectClass, objectClass, fields...)
}

// Lookup finds the field named name. A name of the form "Get<Field>" also
// matches, so accessor-style names resolve to the same field.
func (m *Mapping) Lookup(name string) (FieldMapping, bool) {
	for _, f := range m.Fields {
		if f.Field == name || "Get"+f.Field == name {
			return f, true
		}
	}
	return FieldMapping{}, false
}

// Attributes lists the attributes to load for the mapping.
func (m *Mapping) Attributes() []string {
	attrs := make([]string, 0, len(m.Fields))
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Collection != nil {
			continue
		}
		key := strings.ToLower(f.Attribute)
		if seen[key] {
			continue
		}
		seen[key] = true
		attrs = append(attrs, f.Attribute)
	}
	return attrs
}

// Validate checks that the mapping can be bound.
func (m *Mapping) Validate() error {
	if m == nil {
		return fmt.Errorf("mapping is nil")
	}
	if m.ObjectClass == "" {
		return fmt.Errorf("mapping %s: object class is required", m.Name)
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if f.Field == "" {
			return fmt.Errorf("mapping %s: field name is required", m.Name)
		}
		if seen[f.Field] {
			return fmt.Errorf("mapping %s: duplicate field %s", m.Name, f.Field)
		}
		seen[f.Field] = true
		if f.Collection == nil && f.Attribute == "" {
			return fmt.Errorf("mapping %s: field %s has no attribute", m.Name, f.Field)
		}
		if f.Collection != nil && f.Collection.Target == nil {
			return fmt.Errorf("mapping %s: collection %s has no target", m.Name, f.Field)
		}
	}
	return nil
}

// projector builds the RecordExpr projecting an entry of m.
func (m *Mapping) projector() *RecordExpr {
	fields := make([]RecordField, 0, len(m.Fields))
	for _, f := range m.Fields {
		var value Node
		if f.Collection != nil {
			value = &CollectionRef{Field: f.Field, Collection: f.Collection}
		} else {
			value = &AttributeRef{Name: f.Attribute, Type: f.Type}
		}
		fields = append(fields, RecordField{Name: f.Field, Value: value})
	}
	return &RecordExpr{Mapping: m, Fields: fields}
}

// Link relates the entries of a collection to the entry containing it.
type Link struct {
	// Attribute on the target entries holding the containing entry's DN.
	Attribute string
	// Rule is the matching rule applied to Attribute, if any.
	Rule MatchingRule
	// Beneath selects the entries under the containing entry instead.
	Beneath bool
	Scope   Scope
}

// Referencing links target entries whose attribute refers to the containing entry.
func Referencing(attribute string, rule MatchingRule) Link {
	return Link{Attribute: attribute, Rule: rule}
}

// Beneath links the target entries found below the containing entry.
func Beneath(scope Scope) Link {
	return Link{Beneath: true, Scope: scope}
}

// CollectionMapping is a deferred collection of Target entries.
type CollectionMapping struct {
	Target *Mapping
	Link   Link

	open func(c *Context, set *EntitySet) any
}

// Collection maps field to the Target entries linked to the containing entry.
// The field is projected as a *Query[E] which runs only when enumerated.
func Collection[E any](field string, target *Mapping, link Link) FieldMapping {
	return FieldMapping{
		Field: field,
		Collection: &CollectionMapping{
			Target: target,
			Link:   link,
			open: func(c *Context, set *EntitySet) any {
				return &Query[E]{ctx: c, expr: set}
			},
		},
	}
}

// entitySet derives the entity set of the collection for the entry at dn.
func (c *CollectionMapping) entitySet(dn string) *EntitySet {
	if c.Link.Beneath {
		scope := c.Link.Scope
		return &EntitySet{Mapping: c.Target, Root: dn, Scope: &scope}
	}
	attr := &AttributeRef{Name: c.Link.Attribute, Type: Scalar(KindDN)}
	var filter Node
	if c.Link.Rule != "" {
		filter = &ExtensibleMatch{Attribute: attr, Rule: c.Link.Rule, Value: Lit(dn)}
	} else {
		filter = &Comparison{Op: OpEq, Left: attr, Right: Lit(dn)}
	}
	return &EntitySet{Mapping: c.Target, Filter: filter}
}
