package query

import (
	"github.com/go-ldap/ldap/v3"
)

// Reducer terminates a query with a single result.
type Reducer int

const (
	ReduceNone Reducer = iota
	ReduceCount
	ReduceFirst
	ReduceFirstOrDefault
	ReduceSingle
	ReduceSingleOrDefault
	ReduceLast
	ReduceLastOrDefault
)

var reducerOps = map[Operator]Reducer{
	OpCount:           ReduceCount,
	OpFirst:           ReduceFirst,
	OpFirstOrDefault:  ReduceFirstOrDefault,
	OpSingle:          ReduceSingle,
	OpSingleOrDefault: ReduceSingleOrDefault,
	OpLast:            ReduceLast,
	OpLastOrDefault:   ReduceLastOrDefault,
}

func (r Reducer) String() string {
	for op, red := range reducerOps {
		if red == r {
			return string(op)
		}
	}
	return "None"
}

// OrDefault reports whether an empty result yields the zero value.
func (r Reducer) OrDefault() bool {
	return r == ReduceFirstOrDefault || r == ReduceSingleOrDefault || r == ReduceLastOrDefault
}

// binder turns an operator chain into a Plan. Lambda parameters are replaced
// by the projector of the stage they range over, so member access on the
// element resolves to the attribute behind the field.
type binder struct {
	Rewriter
	ctx    *Context
	params map[*Parameter]Node
	err    error
}

func bind(c *Context, n Node) (*Plan, error) {
	b := &binder{ctx: c, params: make(map[*Parameter]Node)}
	b.Self = b
	out := b.Visit(n)
	if b.err != nil {
		return nil, b.err
	}
	plan, ok := out.(*Plan)
	if !ok {
		return nil, notSupported("bind", "%s is not a query", Dump(out))
	}
	return plan, nil
}

func (b *binder) fail(n Node, err *Error) Node {
	if b.err == nil {
		b.err = err
	}
	return n
}

func (b *binder) VisitEntitySet(n *EntitySet) Node {
	if err := n.Mapping.Validate(); err != nil {
		return b.fail(n, newError("bind", ErrorCategoryInvalidPlan, err, "invalid entity mapping"))
	}

	root := n.Root
	if root == "" {
		root = b.ctx.root
	}
	if root != "" {
		if _, err := ldap.ParseDN(root); err != nil {
			return b.fail(n, newError("bind", ErrorCategoryInvalidPlan, err, "invalid search root %q", root))
		}
	}

	scope := b.ctx.opts.DefaultScope
	if n.Scope != nil {
		scope = *n.Scope
	}

	var filter Node = &Comparison{
		Op:    OpEq,
		Left:  &AttributeRef{Name: b.ctx.opts.ObjectClassAttribute, Type: Scalar(KindString)},
		Right: Lit(n.Mapping.ObjectClass),
	}
	if n.Mapping.Filter != nil {
		filter = &Logical{Kind: And, Left: filter, Right: n.Mapping.Filter}
	}
	if n.Filter != nil {
		filter = &Logical{Kind: And, Left: filter, Right: n.Filter}
	}

	return &Plan{
		Searcher: &Searcher{
			Root:       root,
			Filter:     filter,
			Attributes: n.Mapping.Attributes(),
			Scope:      scope,
		},
		Projector: n.Mapping.projector(),
	}
}

func (b *binder) VisitParameter(n *Parameter) Node {
	if bound, ok := b.params[n]; ok {
		return bound
	}
	return n
}

// VisitMember resolves a member of a record to the node bound to that field.
// Members that do not resolve are left for local evaluation or for the
// implicit attribute fallback.
func (b *binder) VisitMember(n *Member) Node {
	obj := b.visit(n.Object)
	if rec, ok := obj.(*RecordExpr); ok {
		for _, f := range rec.Fields {
			if f.Name == n.Name || "Get"+f.Name == n.Name {
				return f.Value
			}
		}
	}
	return n.Update(obj)
}

func (b *binder) VisitOperatorCall(n *OperatorCall) Node {
	source, ok := b.visit(n.Source).(*Plan)
	if b.err != nil {
		return n
	}
	if !ok {
		return b.fail(n, notSupported("bind", "%s applied to %s, which is not a query", n.Op, Dump(n.Source)))
	}
	if source.Reducer != ReduceNone {
		return b.fail(n, invalidPlan("bind", "%s cannot follow %s", n.Op, source.Reducer))
	}

	switch n.Op {
	case OpWhere:
		l, err := lambdaArg(n, 0)
		if err != nil {
			return b.fail(n, err)
		}
		return b.where(source, l)

	case OpSelect:
		l, err := lambdaArg(n, 0)
		if err != nil {
			return b.fail(n, err)
		}
		return source.Update(source.Searcher, b.bindLambda(l, source.Projector))

	case OpOrderBy, OpOrderByDescending:
		if source.Searcher.Sort != nil {
			return b.fail(n, invalidPlan("bind", "multiple sort keys"))
		}
		l, err := lambdaArg(n, 0)
		if err != nil {
			return b.fail(n, err)
		}
		sort := &SortSpec{Key: b.bindLambda(l, source.Projector), Descending: n.Op == OpOrderByDescending}
		return source.Update(source.Searcher.Update(source.Searcher.Filter, sort), source.Projector)

	case OpThenBy, OpThenByDescending:
		return b.fail(n, notSupported("bind", "%s is not supported, results are sorted by a single key", n.Op))

	case OpSkip, OpTake:
		count, err := countArg(n)
		if err != nil {
			return b.fail(n, err)
		}
		paging := source.Searcher.Paging
		if n.Op == OpSkip {
			paging.Skip = &count
		} else {
			paging.Take = &count
		}
		return source.Update(source.Searcher.WithPaging(paging), source.Projector)
	}

	reducer, ok := reducerOps[n.Op]
	if !ok {
		return b.fail(n, notSupported("bind", "operator %s is not supported", n.Op))
	}
	plan := source
	for i := range n.Args {
		l, err := lambdaArg(n, i)
		if err != nil {
			return b.fail(n, err)
		}
		plan = b.where(plan, l)
	}
	return &Plan{Searcher: plan.Searcher, Projector: plan.Projector, Reducer: reducer}
}

func (b *binder) where(source *Plan, l *Lambda) *Plan {
	body := b.bindLambda(l, source.Projector)
	filter := body
	if source.Searcher.Filter != nil {
		filter = &Logical{Kind: And, Left: source.Searcher.Filter, Right: body}
	}
	return source.Update(source.Searcher.Update(filter, source.Searcher.Sort), source.Projector)
}

func (b *binder) bindLambda(l *Lambda, projector Node) Node {
	b.params[l.Param] = projector
	defer delete(b.params, l.Param)
	return b.visit(l.Body)
}

func lambdaArg(n *OperatorCall, i int) (*Lambda, *Error) {
	if i >= len(n.Args) {
		return nil, invalidPlan("bind", "%s requires a function argument", n.Op)
	}
	l, ok := n.Args[i].(*Lambda)
	if !ok {
		return nil, invalidPlan("bind", "%s argument %d is %s, not a function", n.Op, i, Dump(n.Args[i]))
	}
	return l, nil
}

func countArg(n *OperatorCall) (int, *Error) {
	if len(n.Args) != 1 {
		return 0, invalidPlan("bind", "%s requires a count", n.Op)
	}
	lit, ok := n.Args[0].(*Literal)
	if !ok {
		return 0, invalidPlan("bind", "%s count must be a constant", n.Op)
	}
	count, ok := lit.Value.(int)
	if !ok || count < 0 {
		return 0, invalidPlan("bind", "%s count must be a non-negative int, got %v", n.Op, lit.Value)
	}
	return count, nil
}
