package query

import (
	"fmt"
	"strings"
)

// Dump renders n in a compact debugging notation.
func Dump(n Node) string {
	p := &printer{}
	p.Visit(n)
	return p.b.String()
}

type printer struct {
	b strings.Builder
}

var _ Visitor = (*printer)(nil)

func (p *printer) Visit(n Node) Node {
	if n == nil {
		p.b.WriteString("<nil>")
		return nil
	}
	return n.Accept(p)
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(&p.b, format, args...)
}

func (p *printer) list(nodes []Node, sep string) {
	for i, n := range nodes {
		if i > 0 {
			p.b.WriteString(sep)
		}
		p.Visit(n)
	}
}

func (p *printer) VisitAttributeRef(n *AttributeRef) Node {
	p.printf("@%s", n.Name)
	return n
}

func (p *printer) VisitLiteral(n *Literal) Node {
	switch v := n.Value.(type) {
	case nil:
		p.b.WriteString("null")
	case string:
		p.printf("%q", v)
	default:
		p.printf("%v", v)
	}
	return n
}

func (p *printer) VisitComparison(n *Comparison) Node {
	p.b.WriteString("(")
	p.Visit(n.Left)
	p.printf(" %s ", n.Op)
	p.Visit(n.Right)
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitLogical(n *Logical) Node {
	op := " && "
	if n.Kind == Or {
		op = " || "
	}
	p.b.WriteString("(")
	p.Visit(n.Left)
	p.b.WriteString(op)
	p.Visit(n.Right)
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitLogicalGroup(n *LogicalGroup) Node {
	p.printf("%s(", n.Kind)
	p.list(n.Children, ", ")
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitNot(n *Not) Node {
	p.b.WriteString("!")
	p.Visit(n.Operand)
	return n
}

func (p *printer) VisitPresence(n *Presence) Node {
	p.b.WriteString("Present(")
	p.Visit(n.Operand)
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitSubstring(n *Substring) Node {
	p.b.WriteString("Substring(")
	if n.LeadingWildcard {
		p.b.WriteString("*")
	}
	p.list(n.Parts, "*")
	if n.TrailingWildcard {
		p.b.WriteString("*")
	}
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitStringMatch(n *StringMatch) Node {
	p.Visit(n.Object)
	p.printf(".%s(", n.Method)
	p.Visit(n.Arg)
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitExtensibleMatch(n *ExtensibleMatch) Node {
	p.Visit(n.Attribute)
	if n.IncludeDN {
		p.b.WriteString(":dn")
	}
	p.printf(":%s:=", n.Rule.Name())
	p.Visit(n.Value)
	return n
}

func (p *printer) VisitParameter(n *Parameter) Node {
	p.b.WriteString(n.Name)
	return n
}

func (p *printer) VisitMember(n *Member) Node {
	p.Visit(n.Object)
	p.printf(".%s", n.Name)
	return n
}

func (p *printer) VisitCaptured(n *Captured) Node {
	p.printf("$%s", n.Name)
	return n
}

func (p *printer) VisitCall(n *Call) Node {
	p.printf("%s(", n.Name)
	p.list(n.Args, ", ")
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitLambda(n *Lambda) Node {
	p.printf("%s => ", n.Param.Name)
	p.Visit(n.Body)
	return n
}

func (p *printer) VisitRecord(n *RecordExpr) Node {
	if n.Mapping != nil {
		p.b.WriteString(n.Mapping.Name)
	}
	p.b.WriteString("{")
	for i, f := range n.Fields {
		if i > 0 {
			p.b.WriteString(", ")
		}
		p.printf("%s: ", f.Name)
		p.Visit(f.Value)
	}
	p.b.WriteString("}")
	return n
}

func (p *printer) VisitCollectionRef(n *CollectionRef) Node {
	p.printf("Collection(%s)", n.Field)
	return n
}

func (p *printer) VisitEntitySet(n *EntitySet) Node {
	p.printf("EntitySet(%s", n.Mapping.Name)
	if n.Root != "" {
		p.printf(", root=%q", n.Root)
	}
	if n.Filter != nil {
		p.b.WriteString(", ")
		p.Visit(n.Filter)
	}
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitOperatorCall(n *OperatorCall) Node {
	p.Visit(n.Source)
	p.printf(".%s(", n.Op)
	p.list(n.Args, ", ")
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitSearcher(n *Searcher) Node {
	p.printf("Search(root=%q, scope=%s, filter=", n.Root, n.Scope)
	p.Visit(n.Filter)
	if n.Sort != nil {
		p.b.WriteString(", sort=")
		p.Visit(n.Sort.Key)
		if n.Sort.Descending {
			p.b.WriteString(" desc")
		}
	}
	if n.Paging.Skip != nil {
		p.printf(", skip=%d", *n.Paging.Skip)
	}
	if n.Paging.Take != nil {
		p.printf(", take=%d", *n.Paging.Take)
	}
	p.b.WriteString(")")
	return n
}

func (p *printer) VisitPlan(n *Plan) Node {
	if n.Searcher == nil {
		p.b.WriteString("Empty")
	} else {
		p.Visit(n.Searcher)
	}
	p.b.WriteString(" -> ")
	p.Visit(n.Projector)
	if n.Reducer != ReduceNone {
		p.printf(" |> %s", n.Reducer)
	}
	return n
}
