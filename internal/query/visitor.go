package query

// Visitor has one method per Node type. Adding a node type breaks every
// implementation until it is handled.
type Visitor interface {
	Visit(n Node) Node

	VisitAttributeRef(n *AttributeRef) Node
	VisitLiteral(n *Literal) Node
	VisitComparison(n *Comparison) Node
	VisitLogical(n *Logical) Node
	VisitLogicalGroup(n *LogicalGroup) Node
	VisitNot(n *Not) Node
	VisitPresence(n *Presence) Node
	VisitSubstring(n *Substring) Node
	VisitStringMatch(n *StringMatch) Node
	VisitExtensibleMatch(n *ExtensibleMatch) Node
	VisitParameter(n *Parameter) Node
	VisitMember(n *Member) Node
	VisitCaptured(n *Captured) Node
	VisitCall(n *Call) Node
	VisitLambda(n *Lambda) Node
	VisitRecord(n *RecordExpr) Node
	VisitCollectionRef(n *CollectionRef) Node
	VisitEntitySet(n *EntitySet) Node
	VisitOperatorCall(n *OperatorCall) Node
	VisitSearcher(n *Searcher) Node
	VisitPlan(n *Plan) Node
}

// Rewriter is the identity rewrite. Passes embed it, set Self to themselves and
// override the methods they care about; children are always visited through
// Self so overrides apply at every depth. Unchanged subtrees are returned as is.
type Rewriter struct {
	Self Visitor
}

var _ Visitor = (*Rewriter)(nil)

func (r *Rewriter) self() Visitor {
	if r.Self != nil {
		return r.Self
	}
	return r
}

func (r *Rewriter) Visit(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Accept(r.self())
}

func (r *Rewriter) visit(n Node) Node {
	if n == nil {
		return nil
	}
	return r.self().Visit(n)
}

// visitList visits each node, dropping children that rewrite to nil.
func (r *Rewriter) visitList(nodes []Node) []Node {
	var out []Node
	changed := false
	for i, n := range nodes {
		v := r.visit(n)
		if v != n && !changed {
			changed = true
			out = make([]Node, 0, len(nodes))
			out = append(out, nodes[:i]...)
		}
		if changed && v != nil {
			out = append(out, v)
		}
	}
	if !changed {
		return nodes
	}
	return out
}

func (r *Rewriter) VisitAttributeRef(n *AttributeRef) Node { return n }
func (r *Rewriter) VisitLiteral(n *Literal) Node           { return n }
func (r *Rewriter) VisitParameter(n *Parameter) Node       { return n }
func (r *Rewriter) VisitCaptured(n *Captured) Node         { return n }
func (r *Rewriter) VisitCollectionRef(n *CollectionRef) Node {
	return n
}

func (r *Rewriter) VisitComparison(n *Comparison) Node {
	return n.Update(r.visit(n.Left), r.visit(n.Right))
}

func (r *Rewriter) VisitLogical(n *Logical) Node {
	return n.Update(r.visit(n.Left), r.visit(n.Right))
}

func (r *Rewriter) VisitLogicalGroup(n *LogicalGroup) Node {
	return n.Update(r.visitList(n.Children))
}

func (r *Rewriter) VisitNot(n *Not) Node {
	return n.Update(r.visit(n.Operand))
}

func (r *Rewriter) VisitPresence(n *Presence) Node {
	return n.Update(r.visit(n.Operand))
}

func (r *Rewriter) VisitSubstring(n *Substring) Node {
	return n.Update(n.LeadingWildcard, r.visitList(n.Parts), n.TrailingWildcard)
}

func (r *Rewriter) VisitStringMatch(n *StringMatch) Node {
	return n.Update(r.visit(n.Object), r.visit(n.Arg))
}

func (r *Rewriter) VisitExtensibleMatch(n *ExtensibleMatch) Node {
	return n.Update(r.visit(n.Attribute), r.visit(n.Value))
}

func (r *Rewriter) VisitMember(n *Member) Node {
	return n.Update(r.visit(n.Object))
}

func (r *Rewriter) VisitCall(n *Call) Node {
	return n.Update(r.visitList(n.Args))
}

func (r *Rewriter) VisitLambda(n *Lambda) Node {
	return n.Update(r.visit(n.Body))
}

func (r *Rewriter) VisitRecord(n *RecordExpr) Node {
	var fields []RecordField
	for i, f := range n.Fields {
		v := r.visit(f.Value)
		if v != f.Value && fields == nil {
			fields = make([]RecordField, i, len(n.Fields))
			copy(fields, n.Fields[:i])
		}
		if fields != nil {
			fields = append(fields, RecordField{Name: f.Name, Value: v})
		}
	}
	if fields == nil {
		return n
	}
	return n.Update(fields)
}

func (r *Rewriter) VisitEntitySet(n *EntitySet) Node {
	return n.Update(r.visit(n.Filter))
}

func (r *Rewriter) VisitOperatorCall(n *OperatorCall) Node {
	return n.Update(r.visit(n.Source), r.visitList(n.Args))
}

func (r *Rewriter) VisitSearcher(n *Searcher) Node {
	filter := r.visit(n.Filter)
	sort := n.Sort
	if sort != nil {
		if key := r.visit(sort.Key); key != sort.Key {
			sort = &SortSpec{Key: key, Descending: sort.Descending}
		}
	}
	return n.Update(filter, sort)
}

// VisitPlan visits the searcher and projector. A searcher that rewrites to nil
// leaves the plan with no searcher.
func (r *Rewriter) VisitPlan(n *Plan) Node {
	var searcher *Searcher
	if n.Searcher != nil {
		searcher, _ = r.visit(n.Searcher).(*Searcher)
	}
	return n.Update(searcher, r.visit(n.Projector))
}
