package query

// emptyClauseRemover drops empty substring parts and turns the comparisons
// they leave behind into presence tests.
type emptyClauseRemover struct{ Rewriter }

func (v *emptyClauseRemover) VisitSubstring(n *Substring) Node {
	return normalizeSubstring(v.Rewriter.VisitSubstring(n).(*Substring))
}

// normalizeSubstring moves empty boundary parts into wildcard flags, drops
// empty interior parts and collapses a lone unwildcarded part to itself.
func normalizeSubstring(n *Substring) Node {
	if len(n.Parts) == 0 {
		if !n.LeadingWildcard && !n.TrailingWildcard {
			return Lit("")
		}
		return n
	}
	if isNullOrEmpty(n.Parts[0]) {
		return normalizeSubstring(n.Update(true, n.Parts[1:], n.TrailingWildcard))
	}
	last := len(n.Parts) - 1
	if isNullOrEmpty(n.Parts[last]) {
		return normalizeSubstring(n.Update(n.LeadingWildcard, n.Parts[:last], true))
	}
	if len(n.Parts) == 1 && !n.LeadingWildcard && !n.TrailingWildcard {
		if _, ok := n.Parts[0].(*Literal); ok {
			return n.Parts[0]
		}
	}
	parts := make([]Node, 0, len(n.Parts))
	for _, p := range n.Parts {
		if !isNullOrEmpty(p) {
			parts = append(parts, p)
		}
	}
	return n.Update(n.LeadingWildcard, parts, n.TrailingWildcard)
}

func (v *emptyClauseRemover) VisitComparison(n *Comparison) Node {
	c := v.Rewriter.VisitComparison(n).(*Comparison)
	if c.Op != OpEq {
		return c
	}
	if isNullOrEmpty(c.Right) {
		return &Not{Operand: &Presence{Operand: c.Left}}
	}
	// attr=* and attr=** test presence; an empty unwildcarded pattern tests absence.
	if sub, ok := c.Right.(*Substring); ok && len(sub.Parts) == 0 {
		if sub.LeadingWildcard || sub.TrailingWildcard {
			return &Presence{Operand: c.Left}
		}
		return &Not{Operand: &Presence{Operand: c.Left}}
	}
	return c
}
