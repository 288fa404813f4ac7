package query

// Node is a query plan or predicate tree node. The set of node types is closed:
// every implementation lives in this package and is handled by Visitor.
type Node interface {
	Accept(v Visitor) Node
	node()
}

// CompareOp is a relational operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpApprox
)

func (o CompareOp) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpApprox:
		return "~="
	default:
		return "?"
	}
}

// LogicalKind distinguishes conjunction from disjunction.
type LogicalKind int

const (
	And LogicalKind = iota
	Or
)

func (k LogicalKind) String() string {
	if k == Or {
		return "Or"
	}
	return "And"
}

// MatchMethod is a string containment test.
type MatchMethod int

const (
	StartsWith MatchMethod = iota
	EndsWith
	Contains
)

func (m MatchMethod) String() string {
	switch m {
	case StartsWith:
		return "StartsWith"
	case EndsWith:
		return "EndsWith"
	default:
		return "Contains"
	}
}

// AttributeRef names a directory attribute.
type AttributeRef struct {
	Name string
	Type ValueType
}

// Literal is a constant. A nil Value is the null literal.
type Literal struct {
	Value any
}

// Comparison is a binary relational test.
type Comparison struct {
	Op    CompareOp
	Left  Node
	Right Node
}

// Logical is a binary short-circuit conjunction or disjunction, as produced by
// the fluent builders. The AND/OR collection pass turns it into a LogicalGroup.
type Logical struct {
	Kind  LogicalKind
	Left  Node
	Right Node
}

// LogicalGroup is an N-ary conjunction or disjunction.
type LogicalGroup struct {
	Kind     LogicalKind
	Children []Node
}

// Not negates its operand.
type Not struct {
	Operand Node
}

// Presence tests that an attribute has at least one value.
type Presence struct {
	Operand Node
}

// Substring is a wildcarded value: [*]part(*part)*[*].
type Substring struct {
	LeadingWildcard  bool
	Parts            []Node
	TrailingWildcard bool
}

// StringMatch is a StartsWith, EndsWith or Contains test before it is
// decomposed into a Substring comparison.
type StringMatch struct {
	Method MatchMethod
	Object Node
	Arg    Node
}

// ExtensibleMatch compares an attribute using a matching rule.
type ExtensibleMatch struct {
	Attribute Node
	Rule      MatchingRule
	IncludeDN bool
	Value     Node
}

// Parameter is the lambda parameter standing for the current element.
type Parameter struct {
	Name string
}

// Member is a named member access on Object.
type Member struct {
	Object Node
	Name   string
}

// Captured is a value known to the caller but not to the query, read when the
// query is compiled.
type Captured struct {
	Name string
	Fn   func() (any, error)
}

// Call applies a local function to its arguments.
type Call struct {
	Name string
	Fn   func(args ...any) (any, error)
	Args []Node
}

// Lambda is a single-parameter function literal.
type Lambda struct {
	Param *Parameter
	Body  Node
}

// RecordField is one named value of a RecordExpr.
type RecordField struct {
	Name  string
	Value Node
}

// RecordExpr constructs a structured value. Mapping is set when the record is the
// projector of an entity set.
type RecordExpr struct {
	Mapping *Mapping
	Fields  []RecordField
}

// CollectionRef is a deferred collection field of an entity.
type CollectionRef struct {
	Field      string
	Collection *CollectionMapping
}

// EntitySet is the root of an operator chain: all entries of one mapping.
type EntitySet struct {
	Mapping *Mapping
	Root    string
	Scope   *Scope
	Filter  Node
}

// Operator names a sequence operator.
type Operator string

const (
	OpWhere             Operator = "Where"
	OpSelect            Operator = "Select"
	OpOrderBy           Operator = "OrderBy"
	OpOrderByDescending Operator = "OrderByDescending"
	OpThenBy            Operator = "ThenBy"
	OpThenByDescending  Operator = "ThenByDescending"
	OpSkip              Operator = "Skip"
	OpTake              Operator = "Take"
	OpCount             Operator = "Count"
	OpFirst             Operator = "First"
	OpFirstOrDefault    Operator = "FirstOrDefault"
	OpSingle            Operator = "Single"
	OpSingleOrDefault   Operator = "SingleOrDefault"
	OpLast              Operator = "Last"
	OpLastOrDefault     Operator = "LastOrDefault"
)

// OperatorCall applies a sequence operator to Source.
type OperatorCall struct {
	Op     Operator
	Source Node
	Args   []Node
}

// SortSpec orders results by a single key.
type SortSpec struct {
	Key        Node
	Descending bool
}

// Paging windows the result stream.
type Paging struct {
	Skip *int
	Take *int
}

// Searcher describes one physical directory search. A nil Filter matches all
// entries.
type Searcher struct {
	Root       string
	Filter     Node
	Attributes []string
	Scope      Scope
	Sort       *SortSpec
	Paging     Paging
}

// Plan is a compiled query. A nil Searcher means the query cannot match and
// no search is executed.
type Plan struct {
	Searcher  *Searcher
	Projector Node
	Reducer   Reducer
}

func (*AttributeRef) node()    {}
func (*Literal) node()         {}
func (*Comparison) node()      {}
func (*Logical) node()         {}
func (*LogicalGroup) node()    {}
func (*Not) node()             {}
func (*Presence) node()        {}
func (*Substring) node()       {}
func (*StringMatch) node()     {}
func (*ExtensibleMatch) node() {}
func (*Parameter) node()       {}
func (*Member) node()          {}
func (*Captured) node()        {}
func (*Call) node()            {}
func (*Lambda) node()          {}
func (*RecordExpr) node()          {}
func (*CollectionRef) node()   {}
func (*EntitySet) node()       {}
func (*OperatorCall) node()    {}
func (*Searcher) node()        {}
func (*Plan) node()            {}

func (n *AttributeRef) Accept(v Visitor) Node    { return v.VisitAttributeRef(n) }
func (n *Literal) Accept(v Visitor) Node         { return v.VisitLiteral(n) }
func (n *Comparison) Accept(v Visitor) Node      { return v.VisitComparison(n) }
func (n *Logical) Accept(v Visitor) Node         { return v.VisitLogical(n) }
func (n *LogicalGroup) Accept(v Visitor) Node    { return v.VisitLogicalGroup(n) }
func (n *Not) Accept(v Visitor) Node             { return v.VisitNot(n) }
func (n *Presence) Accept(v Visitor) Node        { return v.VisitPresence(n) }
func (n *Substring) Accept(v Visitor) Node       { return v.VisitSubstring(n) }
func (n *StringMatch) Accept(v Visitor) Node     { return v.VisitStringMatch(n) }
func (n *ExtensibleMatch) Accept(v Visitor) Node { return v.VisitExtensibleMatch(n) }
func (n *Parameter) Accept(v Visitor) Node       { return v.VisitParameter(n) }
func (n *Member) Accept(v Visitor) Node          { return v.VisitMember(n) }
func (n *Captured) Accept(v Visitor) Node        { return v.VisitCaptured(n) }
func (n *Call) Accept(v Visitor) Node            { return v.VisitCall(n) }
func (n *Lambda) Accept(v Visitor) Node          { return v.VisitLambda(n) }
func (n *RecordExpr) Accept(v Visitor) Node          { return v.VisitRecord(n) }
func (n *CollectionRef) Accept(v Visitor) Node   { return v.VisitCollectionRef(n) }
func (n *EntitySet) Accept(v Visitor) Node       { return v.VisitEntitySet(n) }
func (n *OperatorCall) Accept(v Visitor) Node    { return v.VisitOperatorCall(n) }
func (n *Searcher) Accept(v Visitor) Node        { return v.VisitSearcher(n) }
func (n *Plan) Accept(v Visitor) Node            { return v.VisitPlan(n) }

// Update returns n when nothing changed, otherwise a new node.
func (n *Comparison) Update(left, right Node) *Comparison {
	if left == n.Left && right == n.Right {
		return n
	}
	return &Comparison{Op: n.Op, Left: left, Right: right}
}

func (n *Logical) Update(left, right Node) *Logical {
	if left == n.Left && right == n.Right {
		return n
	}
	return &Logical{Kind: n.Kind, Left: left, Right: right}
}

func (n *LogicalGroup) Update(children []Node) *LogicalGroup {
	if sameNodes(children, n.Children) {
		return n
	}
	return &LogicalGroup{Kind: n.Kind, Children: children}
}

func (n *Not) Update(operand Node) *Not {
	if operand == n.Operand {
		return n
	}
	return &Not{Operand: operand}
}

func (n *Presence) Update(operand Node) *Presence {
	if operand == n.Operand {
		return n
	}
	return &Presence{Operand: operand}
}

func (n *Substring) Update(leading bool, parts []Node, trailing bool) *Substring {
	if leading == n.LeadingWildcard && trailing == n.TrailingWildcard && sameNodes(parts, n.Parts) {
		return n
	}
	return &Substring{LeadingWildcard: leading, Parts: parts, TrailingWildcard: trailing}
}

func (n *StringMatch) Update(object, arg Node) *StringMatch {
	if object == n.Object && arg == n.Arg {
		return n
	}
	return &StringMatch{Method: n.Method, Object: object, Arg: arg}
}

func (n *ExtensibleMatch) Update(attribute, value Node) *ExtensibleMatch {
	if attribute == n.Attribute && value == n.Value {
		return n
	}
	return &ExtensibleMatch{Attribute: attribute, Rule: n.Rule, IncludeDN: n.IncludeDN, Value: value}
}

func (n *Member) Update(object Node) *Member {
	if object == n.Object {
		return n
	}
	return &Member{Object: object, Name: n.Name}
}

func (n *Call) Update(args []Node) *Call {
	if sameNodes(args, n.Args) {
		return n
	}
	return &Call{Name: n.Name, Fn: n.Fn, Args: args}
}

func (n *Lambda) Update(body Node) *Lambda {
	if body == n.Body {
		return n
	}
	return &Lambda{Param: n.Param, Body: body}
}

func (n *RecordExpr) Update(fields []RecordField) *RecordExpr {
	if len(fields) == len(n.Fields) {
		same := true
		for i := range fields {
			if fields[i] != n.Fields[i] {
				same = false
				break
			}
		}
		if same {
			return n
		}
	}
	return &RecordExpr{Mapping: n.Mapping, Fields: fields}
}

func (n *EntitySet) Update(filter Node) *EntitySet {
	if filter == n.Filter {
		return n
	}
	return &EntitySet{Mapping: n.Mapping, Root: n.Root, Scope: n.Scope, Filter: filter}
}

func (n *OperatorCall) Update(source Node, args []Node) *OperatorCall {
	if source == n.Source && sameNodes(args, n.Args) {
		return n
	}
	return &OperatorCall{Op: n.Op, Source: source, Args: args}
}

// Update returns s when filter and sort are unchanged.
func (s *Searcher) Update(filter Node, sort *SortSpec) *Searcher {
	if filter == s.Filter && sort == s.Sort {
		return s
	}
	out := *s
	out.Filter = filter
	out.Sort = sort
	return &out
}

// WithPaging returns a copy of s using p.
func (s *Searcher) WithPaging(p Paging) *Searcher {
	out := *s
	out.Paging = p
	return &out
}

func (p *Plan) Update(searcher *Searcher, projector Node) *Plan {
	if searcher == p.Searcher && projector == p.Projector {
		return p
	}
	return &Plan{Searcher: searcher, Projector: projector, Reducer: p.Reducer}
}

func sameNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Lit returns a literal node for v.
func Lit(v any) *Literal {
	return &Literal{Value: v}
}

func isConstant(n Node, want bool) bool {
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.(bool)
	return ok && b == want
}

// isNullOrEmpty reports whether n is the null literal or the empty string.
func isNullOrEmpty(n Node) bool {
	if n == nil {
		return true
	}
	lit, ok := n.(*Literal)
	if !ok {
		return false
	}
	if lit.Value == nil {
		return true
	}
	s, ok := lit.Value.(string)
	return ok && s == ""
}
