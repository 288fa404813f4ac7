package query

// Expr wraps a Node with fluent builders for predicates and projections.
// Arguments that are not an Expr or Node become literals.
type Expr struct {
	n Node
}

// Predicate builds a boolean expression over the current element.
type Predicate func(x Expr) Expr

// Projection builds a value from the current element.
type Projection func(x Expr) Expr

// E wraps n.
func E(n Node) Expr { return Expr{n: n} }

// Node returns the underlying node.
func (e Expr) Node() Node { return e.n }

func (e Expr) String() string { return Dump(e.n) }

func nodeOf(v any) Node {
	switch t := v.(type) {
	case Expr:
		return t.n
	case Node:
		return t
	default:
		return Lit(v)
	}
}

// Value is a literal.
func Value(v any) Expr { return Expr{n: Lit(v)} }

// True is the constant true predicate.
func True() Expr { return Value(true) }

// False is the constant false predicate.
func False() Expr { return Value(false) }

// Attr refers to attribute name directly, bypassing the entity mapping.
func Attr(name string, t ValueType) Expr {
	return Expr{n: &AttributeRef{Name: name, Type: t}}
}

// Capture reads a value known only to the caller. fn runs when the query is
// compiled, so a query built once sees the current value each time it runs.
func Capture(name string, fn func() any) Expr {
	return Expr{n: &Captured{Name: name, Fn: func() (any, error) { return fn(), nil }}}
}

// Func applies a local function. It runs at compile time when its arguments do
// not depend on the element.
func Func(name string, fn func(args ...any) (any, error), args ...any) Expr {
	nodes := make([]Node, len(args))
	for i, a := range args {
		nodes[i] = nodeOf(a)
	}
	return Expr{n: &Call{Name: name, Fn: fn, Args: nodes}}
}

// Field accesses a member of the element, or of any structured value.
func (e Expr) Field(name string) Expr {
	return Expr{n: &Member{Object: e.n, Name: name}}
}

func (e Expr) compare(op CompareOp, v any) Expr {
	return Expr{n: &Comparison{Op: op, Left: e.n, Right: nodeOf(v)}}
}

func (e Expr) Eq(v any) Expr { return e.compare(OpEq, v) }
func (e Expr) Ne(v any) Expr { return e.compare(OpNe, v) }
func (e Expr) Lt(v any) Expr { return e.compare(OpLt, v) }
func (e Expr) Le(v any) Expr { return e.compare(OpLe, v) }
func (e Expr) Gt(v any) Expr { return e.compare(OpGt, v) }
func (e Expr) Ge(v any) Expr { return e.compare(OpGe, v) }

// Approx is an approximate match (~=), as defined by the server.
func (e Expr) Approx(v any) Expr { return e.compare(OpApprox, v) }

// IsNull holds when the attribute has no value.
func (e Expr) IsNull() Expr { return e.Eq(nil) }

// NotNull holds when the attribute has a value.
func (e Expr) NotNull() Expr { return e.Ne(nil) }

func (e Expr) match(m MatchMethod, v any) Expr {
	return Expr{n: &StringMatch{Method: m, Object: e.n, Arg: nodeOf(v)}}
}

func (e Expr) StartsWith(v any) Expr { return e.match(StartsWith, v) }
func (e Expr) EndsWith(v any) Expr   { return e.match(EndsWith, v) }
func (e Expr) Contains(v any) Expr   { return e.match(Contains, v) }

// Matches compares using a matching rule.
func (e Expr) Matches(rule MatchingRule, v any) Expr {
	return Expr{n: &ExtensibleMatch{Attribute: e.n, Rule: rule, Value: nodeOf(v)}}
}

// MatchesDN compares using a matching rule, including the entry DN attributes.
func (e Expr) MatchesDN(rule MatchingRule, v any) Expr {
	return Expr{n: &ExtensibleMatch{Attribute: e.n, Rule: rule, IncludeDN: true, Value: nodeOf(v)}}
}

// BitAnd holds when all bits of mask are set.
func (e Expr) BitAnd(mask any) Expr { return e.Matches(RuleBitwiseAnd, mask) }

// BitOr holds when any bit of mask is set.
func (e Expr) BitOr(mask any) Expr { return e.Matches(RuleBitwiseOr, mask) }

// InChain holds when the DN-valued attribute reaches dn transitively.
func (e Expr) InChain(dn any) Expr { return e.Matches(RuleInChain, dn) }

func (e Expr) And(other Expr) Expr {
	return Expr{n: &Logical{Kind: And, Left: e.n, Right: other.n}}
}

func (e Expr) Or(other Expr) Expr {
	return Expr{n: &Logical{Kind: Or, Left: e.n, Right: other.n}}
}

func (e Expr) Not() Expr { return Expr{n: &Not{Operand: e.n}} }

// AllOf folds exprs with And. It is true when exprs is empty.
func AllOf(exprs ...Expr) Expr { return fold(And, exprs) }

// AnyOf folds exprs with Or. It is false when exprs is empty.
func AnyOf(exprs ...Expr) Expr { return fold(Or, exprs) }

func fold(kind LogicalKind, exprs []Expr) Expr {
	if len(exprs) == 0 {
		return Value(kind == And)
	}
	acc := exprs[0].n
	for _, e := range exprs[1:] {
		acc = &Logical{Kind: kind, Left: acc, Right: e.n}
	}
	return Expr{n: acc}
}

// Fields builds a structured projection. Pairs are name, value, name, value...
func Fields(pairs ...any) Expr {
	fields := make([]RecordField, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		fields = append(fields, RecordField{Name: name, Value: nodeOf(pairs[i+1])})
	}
	return Expr{n: &RecordExpr{Fields: fields}}
}

func lambda(name string, build func(x Expr) Expr) *Lambda {
	p := &Parameter{Name: name}
	return &Lambda{Param: p, Body: build(Expr{n: p}).n}
}
