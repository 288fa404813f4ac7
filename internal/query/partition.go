package query

// partition evaluates every maximal subtree of n that does not depend on the
// element and replaces it with a Literal.
func partition(n Node) (Node, error) {
	nom := &nominator{candidates: make(map[Node]bool)}
	nom.Self = nom
	nom.Visit(n)

	sub := &substituter{candidates: nom.candidates}
	sub.Self = sub
	out := sub.Visit(n)
	if sub.err != nil {
		return nil, sub.err
	}
	return out, nil
}

// evaluable reports whether n itself can be computed locally, given that all
// of its children can.
func evaluable(n Node) bool {
	switch n.(type) {
	case *Parameter, *Lambda, *OperatorCall, *EntitySet, *AttributeRef,
		*RecordExpr, *CollectionRef, *Searcher, *Plan,
		*Presence, *Substring, *ExtensibleMatch:
		return false
	}
	return true
}

// nominator marks candidates bottom-up: a node is a candidate when it and all
// of its descendants are evaluable.
type nominator struct {
	Rewriter
	candidates map[Node]bool
	blocked    bool
}

func (v *nominator) Visit(n Node) Node {
	if n == nil {
		return nil
	}
	saved := v.blocked
	v.blocked = false
	n.Accept(v)
	if !v.blocked {
		if evaluable(n) {
			v.candidates[n] = true
		} else {
			v.blocked = true
		}
	}
	v.blocked = v.blocked || saved
	return n
}

// substituter replaces candidates top-down, so only the outermost node of an
// evaluable subtree is computed.
type substituter struct {
	Rewriter
	candidates map[Node]bool
	err        error
}

func (v *substituter) Visit(n Node) Node {
	if n == nil || v.err != nil {
		return n
	}
	if !v.candidates[n] {
		return n.Accept(v)
	}
	if _, ok := n.(*Literal); ok {
		return n
	}
	value, err := eval(n)
	if err != nil {
		v.err = newError("evaluate", ErrorCategoryInvalidPlan, err, "cannot evaluate %s", Dump(n))
		return n
	}
	return Lit(value)
}
