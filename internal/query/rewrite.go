package query

// pass is one rewrite of the bound plan.
type pass struct {
	name    string
	visitor func() Visitor
}

// pipeline runs in order; later passes rely on the shapes earlier ones produce.
var pipeline = []pass{
	{"substring decomposition", func() Visitor { return self(&substringDecomposer{}) }},
	{"substring empty clauses", func() Visitor { return self(&emptyClauseRemover{}) }},
	{"binary operator elimination", func() Visitor { return self(&binaryEliminator{}) }},
	{"operand reordering", func() Visitor { return self(&operandReorderer{}) }},
	{"null comparison", func() Visitor { return self(&nullComparisonRewriter{}) }},
	{"and/or collection", func() Visitor { return self(&logicalCollector{}) }},
	{"redundant expressions", func() Visitor { return self(&redundancyRemover{}) }},
}

// selfer is a pass embedding Rewriter.
type selfer interface {
	Visitor
	setSelf(v Visitor)
}

func (r *Rewriter) setSelf(v Visitor) { r.Self = v }

func self(v selfer) Visitor {
	v.setSelf(v)
	return v
}

// rewrite normalizes a bound plan for formatting.
func rewrite(p *Plan) *Plan {
	var n Node = p
	for _, ps := range pipeline {
		n = ps.visitor().Visit(n)
	}
	return n.(*Plan)
}

// substringDecomposer turns StartsWith, EndsWith and Contains into equality
// with a Substring.
type substringDecomposer struct{ Rewriter }

func (v *substringDecomposer) VisitStringMatch(n *StringMatch) Node {
	obj, arg := v.visit(n.Object), v.visit(n.Arg)
	var sub *Substring
	switch n.Method {
	case StartsWith:
		sub = &Substring{Parts: []Node{arg}, TrailingWildcard: true}
	case EndsWith:
		sub = &Substring{LeadingWildcard: true, Parts: []Node{arg}}
	default:
		sub = &Substring{LeadingWildcard: true, Parts: []Node{arg}, TrailingWildcard: true}
	}
	return &Comparison{Op: OpEq, Left: obj, Right: sub}
}

// binaryEliminator rewrites the operators the filter grammar cannot express:
// a > b is !(a <= b), a < b is !(a >= b) and a != b is !(a == b).
type binaryEliminator struct{ Rewriter }

func (v *binaryEliminator) VisitComparison(n *Comparison) Node {
	c := v.Rewriter.VisitComparison(n).(*Comparison)
	switch c.Op {
	case OpGt:
		return &Not{Operand: &Comparison{Op: OpLe, Left: c.Left, Right: c.Right}}
	case OpLt:
		return &Not{Operand: &Comparison{Op: OpGe, Left: c.Left, Right: c.Right}}
	case OpNe:
		return &Not{Operand: &Comparison{Op: OpEq, Left: c.Left, Right: c.Right}}
	}
	return c
}

// operandReorderer moves the attribute of a comparison to the left.
type operandReorderer struct{ Rewriter }

func (v *operandReorderer) VisitComparison(n *Comparison) Node {
	c := v.Rewriter.VisitComparison(n).(*Comparison)
	left, right := c.Left, c.Right
	_, leftAttr := left.(*AttributeRef)
	_, rightAttr := right.(*AttributeRef)
	if !leftAttr && !rightAttr {
		if a := implicitAttribute(left); a != nil {
			left = a
		} else if a := implicitAttribute(right); a != nil {
			right, rightAttr = a, true
		}
	}
	if rightAttr && !leftAttr {
		return &Comparison{Op: flip(c.Op), Left: right, Right: left}
	}
	return c.Update(left, right)
}

func (v *operandReorderer) VisitPresence(n *Presence) Node {
	p := v.Rewriter.VisitPresence(n).(*Presence)
	if a := implicitAttribute(p.Operand); a != nil {
		return &Presence{Operand: a}
	}
	return p
}

func (v *operandReorderer) VisitExtensibleMatch(n *ExtensibleMatch) Node {
	m := v.Rewriter.VisitExtensibleMatch(n).(*ExtensibleMatch)
	if a := implicitAttribute(m.Attribute); a != nil {
		return m.Update(a, m.Value)
	}
	return m
}

func flip(op CompareOp) CompareOp {
	switch op {
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	}
	return op
}

// implicitAttribute resolves a member of an entity that has no field of that
// name to the attribute of the same name.
func implicitAttribute(n Node) *AttributeRef {
	m, ok := n.(*Member)
	if !ok {
		return nil
	}
	if _, ok := m.Object.(*RecordExpr); !ok {
		return nil
	}
	return &AttributeRef{Name: m.Name, Type: Scalar(KindString)}
}

// nullComparisonRewriter turns attr == null, and attr == "" left behind by
// inequality elimination, into a negated presence test.
type nullComparisonRewriter struct{ Rewriter }

func (v *nullComparisonRewriter) VisitComparison(n *Comparison) Node {
	c := v.Rewriter.VisitComparison(n).(*Comparison)
	if _, ok := c.Right.(*Literal); ok && c.Op == OpEq && isNullOrEmpty(c.Right) {
		return &Not{Operand: &Presence{Operand: c.Left}}
	}
	return c
}
