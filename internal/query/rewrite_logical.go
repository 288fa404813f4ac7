package query

// logicalCollector turns binary && and || into flat N-ary groups.
type logicalCollector struct{ Rewriter }

func (v *logicalCollector) VisitLogical(n *Logical) Node {
	return collect(nil, n.Kind, []Node{v.visit(n.Left), v.visit(n.Right)})
}

func (v *logicalCollector) VisitLogicalGroup(n *LogicalGroup) Node {
	return collect(n, n.Kind, v.visitList(n.Children))
}

func (v *logicalCollector) VisitNot(n *Not) Node {
	operand := v.visit(n.Operand)
	if operand == nil {
		return nil
	}
	return n.Update(operand)
}

// collect flattens same-kind groups into one. One child collapses to itself
// and no children to nil. orig is reused when nothing changed.
func collect(orig *LogicalGroup, kind LogicalKind, children []Node) Node {
	flat := make([]Node, 0, len(children))
	for _, c := range children {
		if c == nil {
			continue
		}
		if g, ok := c.(*LogicalGroup); ok && g.Kind == kind {
			flat = append(flat, g.Children...)
			continue
		}
		flat = append(flat, c)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	if orig != nil {
		return orig.Update(flat)
	}
	return &LogicalGroup{Kind: kind, Children: flat}
}

// redundancyRemover folds constant operands out of groups and negations. A
// searcher whose filter folds to true matches everything; one whose filter
// folds to false is dropped.
type redundancyRemover struct{ Rewriter }

func (v *redundancyRemover) VisitLogicalGroup(n *LogicalGroup) Node {
	return reduce(n.Kind, v.visitList(n.Children), func(kept []Node) Node {
		return collect(n, n.Kind, kept)
	})
}

func (v *redundancyRemover) VisitLogical(n *Logical) Node {
	return reduce(n.Kind, []Node{v.visit(n.Left), v.visit(n.Right)}, func(kept []Node) Node {
		if hasGroupOfKind(kept, n.Kind) {
			return collect(nil, n.Kind, kept)
		}
		return n.Update(kept[0], kept[1])
	})
}

// reduce drops identity constants from children and short-circuits on the
// dominant one: false dominates And, true dominates Or. rebuild constructs
// the group from the remaining children, keeping its kind. A child that
// collapsed into a group of the same kind is flattened by rebuild.
func reduce(kind LogicalKind, children []Node, rebuild func(kept []Node) Node) Node {
	dominant := kind == Or
	kept := make([]Node, 0, len(children))
	for _, c := range children {
		switch {
		case isConstant(c, dominant):
			return Lit(dominant)
		case isConstant(c, !dominant):
			continue
		}
		kept = append(kept, c)
	}
	switch len(kept) {
	case 0:
		return Lit(!dominant)
	case 1:
		return kept[0]
	}
	return rebuild(kept)
}

func hasGroupOfKind(nodes []Node, kind LogicalKind) bool {
	for _, c := range nodes {
		if g, ok := c.(*LogicalGroup); ok && g.Kind == kind {
			return true
		}
	}
	return false
}

func (v *redundancyRemover) VisitNot(n *Not) Node {
	operand := v.visit(n.Operand)
	if inner, ok := operand.(*Not); ok {
		return inner.Operand
	}
	switch {
	case isConstant(operand, true):
		return Lit(false)
	case isConstant(operand, false):
		return Lit(true)
	}
	return n.Update(operand)
}

func (v *redundancyRemover) VisitSearcher(n *Searcher) Node {
	s := v.Rewriter.VisitSearcher(n).(*Searcher)
	switch {
	case isConstant(s.Filter, true):
		return s.Update(nil, s.Sort)
	case isConstant(s.Filter, false):
		return nil
	}
	return s
}
