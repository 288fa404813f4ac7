package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// GeneralizedTimeFormat renders time literals.
const GeneralizedTimeFormat = "20060102150405.0Z"

// FormatFilter serializes a normalized predicate as an RFC 4515 filter.
func FormatFilter(n Node) (string, error) {
	f := &formatter{}
	f.Visit(n)
	if f.err != nil {
		return "", f.err
	}
	return f.b.String(), nil
}

type formatter struct {
	b   strings.Builder
	err error
}

var _ Visitor = (*formatter)(nil)

func (f *formatter) Visit(n Node) Node {
	if f.err != nil {
		return n
	}
	if n == nil {
		f.unsupported(n, "empty filter")
		return n
	}
	return n.Accept(f)
}

func (f *formatter) unsupported(n Node, format string, args ...any) Node {
	if f.err == nil {
		f.err = notSupported("format", "%s: %s", fmt.Sprintf(format, args...), Dump(n))
	}
	return n
}

func (f *formatter) group(op string, children []Node) {
	f.b.WriteString("(")
	f.b.WriteString(op)
	for _, c := range children {
		f.Visit(c)
	}
	f.b.WriteString(")")
}

func (f *formatter) attribute(n Node) (string, bool) {
	a, ok := n.(*AttributeRef)
	if !ok || a.Name == "" {
		return "", false
	}
	return a.Name, true
}

func (f *formatter) VisitLogicalGroup(n *LogicalGroup) Node {
	if len(n.Children) == 0 {
		return f.unsupported(n, "empty group")
	}
	if n.Kind == Or {
		f.group("|", n.Children)
	} else {
		f.group("&", n.Children)
	}
	return n
}

func (f *formatter) VisitLogical(n *Logical) Node {
	if n.Kind == Or {
		f.group("|", []Node{n.Left, n.Right})
	} else {
		f.group("&", []Node{n.Left, n.Right})
	}
	return n
}

func (f *formatter) VisitNot(n *Not) Node {
	f.group("!", []Node{n.Operand})
	return n
}

func (f *formatter) VisitComparison(n *Comparison) Node {
	attr, ok := f.attribute(n.Left)
	if !ok {
		return f.unsupported(n, "left operand of a comparison must be an attribute")
	}
	var op string
	switch n.Op {
	case OpEq:
		op = "="
	case OpLe:
		op = "<="
	case OpGe:
		op = ">="
	case OpApprox:
		op = "~="
	default:
		return f.unsupported(n, "operator %s has no filter form", n.Op)
	}

	var value string
	var err error
	switch r := n.Right.(type) {
	case *Literal:
		value, err = literalText(r.Value)
	case *Substring:
		if n.Op != OpEq {
			return f.unsupported(n, "substring requires equality")
		}
		value, err = substringText(r)
	default:
		return f.unsupported(n, "right operand of a comparison must be a value")
	}
	if err != nil {
		return f.unsupported(n, "%v", err)
	}
	fmt.Fprintf(&f.b, "(%s%s%s)", attr, op, value)
	return n
}

func (f *formatter) VisitPresence(n *Presence) Node {
	attr, ok := f.attribute(n.Operand)
	if !ok {
		return f.unsupported(n, "presence requires an attribute")
	}
	fmt.Fprintf(&f.b, "(%s=*)", attr)
	return n
}

func (f *formatter) VisitExtensibleMatch(n *ExtensibleMatch) Node {
	attr, ok := f.attribute(n.Attribute)
	if !ok {
		return f.unsupported(n, "extensible match requires an attribute")
	}
	lit, ok := n.Value.(*Literal)
	if !ok {
		return f.unsupported(n, "extensible match requires a value")
	}
	value, err := literalText(lit.Value)
	if err != nil {
		return f.unsupported(n, "%v", err)
	}
	f.b.WriteString("(")
	f.b.WriteString(attr)
	if n.IncludeDN {
		f.b.WriteString(":dn")
	}
	if n.Rule != "" {
		f.b.WriteString(":")
		f.b.WriteString(string(n.Rule))
	}
	f.b.WriteString(":=")
	f.b.WriteString(value)
	f.b.WriteString(")")
	return n
}

func (f *formatter) VisitAttributeRef(n *AttributeRef) Node {
	return f.unsupported(n, "attribute is not a predicate")
}

func (f *formatter) VisitLiteral(n *Literal) Node {
	return f.unsupported(n, "constant is not a predicate")
}

func (f *formatter) VisitSubstring(n *Substring) Node {
	return f.unsupported(n, "substring outside a comparison")
}

func (f *formatter) VisitStringMatch(n *StringMatch) Node {
	return f.unsupported(n, "string match on a non-attribute")
}

func (f *formatter) VisitParameter(n *Parameter) Node {
	return f.unsupported(n, "unbound parameter")
}

func (f *formatter) VisitMember(n *Member) Node {
	return f.unsupported(n, "unresolved member")
}

func (f *formatter) VisitCaptured(n *Captured) Node {
	return f.unsupported(n, "unevaluated captured value")
}

func (f *formatter) VisitCall(n *Call) Node {
	return f.unsupported(n, "function call depends on the entry")
}

func (f *formatter) VisitLambda(n *Lambda) Node {
	return f.unsupported(n, "function literal")
}

func (f *formatter) VisitRecord(n *RecordExpr) Node {
	return f.unsupported(n, "record")
}

func (f *formatter) VisitCollectionRef(n *CollectionRef) Node {
	return f.unsupported(n, "collection")
}

func (f *formatter) VisitEntitySet(n *EntitySet) Node {
	return f.unsupported(n, "entity set")
}

func (f *formatter) VisitOperatorCall(n *OperatorCall) Node {
	return f.unsupported(n, "unbound operator")
}

func (f *formatter) VisitSearcher(n *Searcher) Node {
	return f.unsupported(n, "searcher")
}

func (f *formatter) VisitPlan(n *Plan) Node {
	return f.unsupported(n, "plan")
}

func substringText(s *Substring) (string, error) {
	var b strings.Builder
	if s.LeadingWildcard || len(s.Parts) == 0 {
		b.WriteString("*")
	}
	for i, p := range s.Parts {
		if i > 0 {
			b.WriteString("*")
		}
		lit, ok := p.(*Literal)
		if !ok {
			return "", fmt.Errorf("substring part %s is not a value", Dump(p))
		}
		text, err := literalText(lit.Value)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}
	if s.TrailingWildcard && len(s.Parts) > 0 {
		b.WriteString("*")
	}
	return b.String(), nil
}

// literalText renders a value in filter syntax.
func literalText(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return EscapeValue(t), nil
	case uuid.UUID:
		return hexEscape(adldap.GUIDToBytes(t)), nil
	case []byte:
		return hexEscape(t), nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(t), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t), nil
	case time.Time:
		return t.UTC().Format(GeneralizedTimeFormat), nil
	case fmt.Stringer:
		return EscapeValue(t.String()), nil
	case nil:
		return "", fmt.Errorf("null has no filter form")
	}
	return "", fmt.Errorf("values of type %T have no filter form", v)
}

// EscapeValue escapes the filter metacharacters of s. No other byte changes.
func EscapeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\5c`)
		case '*':
			b.WriteString(`\2a`)
		case '(':
			b.WriteString(`\28`)
		case ')':
			b.WriteString(`\29`)
		case 0:
			b.WriteString(`\00`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hexEscape(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	for _, c := range b {
		fmt.Fprintf(&sb, `\%02x`, c)
	}
	return sb.String()
}
