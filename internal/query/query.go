package query

import (
	"context"
)

// Context holds the backend and defaults shared by the queries built on it.
type Context struct {
	backend Backend
	root    string
	opts    Options
}

// NewContext returns a Context searching backend below root.
func NewContext(backend Backend, root string, opts ...Option) *Context {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Context{backend: backend, root: root, opts: o}
}

// Root is the default search root.
func (c *Context) Root() string { return c.root }

func (c *Context) Options() Options { return c.opts }

// SetOption adjusts an entity set.
type SetOption func(*EntitySet)

// Under searches below root instead of the context root.
func Under(root string) SetOption {
	return func(s *EntitySet) { s.Root = root }
}

// InScope sets the search scope.
func InScope(scope Scope) SetOption {
	return func(s *EntitySet) { s.Scope = &scope }
}

// Query is a lazily evaluated directory query producing values of type T.
// Operators return new queries; nothing is sent to the server until the query
// is enumerated or reduced.
type Query[T any] struct {
	ctx  *Context
	expr Node
}

// From starts a query over the entries of m.
func From[T any](c *Context, m *Mapping, opts ...SetOption) *Query[T] {
	set := &EntitySet{Mapping: m}
	for _, opt := range opts {
		opt(set)
	}
	return &Query[T]{ctx: c, expr: set}
}

// Entries starts a query returning the raw entries of m.
func Entries(c *Context, m *Mapping, opts ...SetOption) *Query[Entry] {
	return AsEntries(From[Entry](c, m, opts...))
}

// AsEntries projects each result of q as its raw entry. Filters and sort keys
// cannot refer to the raw entry, so apply them to q first.
func AsEntries[T any](q *Query[T]) *Query[Entry] {
	entry := &Parameter{Name: "entry"}
	return Select[T, Entry](q, func(Expr) Expr { return Expr{n: entry} })
}

func (q *Query[T]) chain(op Operator, args ...Node) *Query[T] {
	return &Query[T]{ctx: q.ctx, expr: &OperatorCall{Op: op, Source: q.expr, Args: args}}
}

// Expression returns the unevaluated expression tree.
func (q *Query[T]) Expression() Node { return q.expr }

func (q *Query[T]) String() string { return Dump(q.expr) }

func (q *Query[T]) Where(p Predicate) *Query[T] {
	return q.chain(OpWhere, lambda("x", p))
}

// Select projects each element. It is a function because methods cannot
// introduce type parameters.
func Select[T, R any](q *Query[T], p Projection) *Query[R] {
	return &Query[R]{ctx: q.ctx, expr: &OperatorCall{Op: OpSelect, Source: q.expr, Args: []Node{lambda("x", p)}}}
}

func (q *Query[T]) OrderBy(key Projection) *Query[T] {
	return q.chain(OpOrderBy, lambda("x", key))
}

func (q *Query[T]) OrderByDescending(key Projection) *Query[T] {
	return q.chain(OpOrderByDescending, lambda("x", key))
}

// ThenBy is accepted for symmetry with OrderBy; compiling it fails because
// the server sorts by a single key.
func (q *Query[T]) ThenBy(key Projection) *Query[T] {
	return q.chain(OpThenBy, lambda("x", key))
}

func (q *Query[T]) ThenByDescending(key Projection) *Query[T] {
	return q.chain(OpThenByDescending, lambda("x", key))
}

// Skip bypasses the first n results. A later Skip replaces it.
func (q *Query[T]) Skip(n int) *Query[T] {
	return q.chain(OpSkip, Lit(n))
}

// Take returns at most n results. A later Take replaces it.
func (q *Query[T]) Take(n int) *Query[T] {
	return q.chain(OpTake, Lit(n))
}

// Compile translates the query without executing it.
func (q *Query[T]) Compile() (*Compiled, error) {
	return compile(q.ctx, q.expr)
}

// Filter returns the LDAP filter the query sends. It is empty when the query
// cannot match at all.
func (q *Query[T]) Filter() (string, error) {
	c, err := q.Compile()
	if err != nil {
		return "", err
	}
	return c.Filter, nil
}

// Iter compiles the query and returns a cursor over its results. The search
// runs on the first call to Next.
func (q *Query[T]) Iter(ctx context.Context) *Cursor[T] {
	compiled, err := q.Compile()
	if err != nil {
		return faultedCursor[T](err)
	}
	return newCursor[T](ctx, q.ctx, compiled)
}

// ToSlice runs the query and collects the results.
func (q *Query[T]) ToSlice(ctx context.Context) ([]T, error) {
	var out []T
	for v, err := range q.Iter(ctx).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (q *Query[T]) reduce(op Operator, where []Predicate) *Query[T] {
	args := make([]Node, len(where))
	for i, p := range where {
		args[i] = lambda("x", p)
	}
	return q.chain(op, args...)
}

// Count returns the number of matching entries. Predicates are combined with
// the query filter.
func (q *Query[T]) Count(ctx context.Context, where ...Predicate) (int, error) {
	compiled, err := q.reduce(OpCount, where).Compile()
	if err != nil {
		return 0, err
	}
	return count(newCursor[T](ctx, q.ctx, compiled))
}

// First returns the first result, failing when there is none.
func (q *Query[T]) First(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpFirst, where))
}

// FirstOrDefault returns the first result, or the zero value.
func (q *Query[T]) FirstOrDefault(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpFirstOrDefault, where))
}

// Single returns the only result, failing when there are none or several.
func (q *Query[T]) Single(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpSingle, where))
}

// SingleOrDefault returns the only result, or the zero value when there is
// none. Several results are still an error.
func (q *Query[T]) SingleOrDefault(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpSingleOrDefault, where))
}

// Last reads every result and returns the final one.
func (q *Query[T]) Last(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpLast, where))
}

func (q *Query[T]) LastOrDefault(ctx context.Context, where ...Predicate) (T, error) {
	return execute(ctx, q.reduce(OpLastOrDefault, where))
}

func execute[T any](ctx context.Context, q *Query[T]) (T, error) {
	compiled, err := q.Compile()
	if err != nil {
		var zero T
		return zero, err
	}
	return single(newCursor[T](ctx, q.ctx, compiled))
}
