package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attr(name string) *AttributeRef {
	return &AttributeRef{Name: name, Type: Scalar(KindString)}
}

func eq(name, value string) *Comparison {
	return &Comparison{Op: OpEq, Left: attr(name), Right: Lit(value)}
}

func group(kind LogicalKind, children ...Node) *LogicalGroup {
	return &LogicalGroup{Kind: kind, Children: children}
}

func TestOperandReorderer(t *testing.T) {
	tests := []struct {
		name   string
		op     CompareOp
		wantOp CompareOp
	}{
		{"equality unchanged", OpEq, OpEq},
		{"less or equal flips", OpLe, OpGe},
		{"greater or equal flips", OpGe, OpLe},
		{"approximate unchanged", OpApprox, OpApprox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := attr("cn")
			value := Lit("x")
			out := self(&operandReorderer{}).Visit(&Comparison{Op: tt.op, Left: value, Right: a})

			c, ok := out.(*Comparison)
			require.True(t, ok, "got %s", Dump(out))
			assert.Same(t, a, c.Left)
			assert.Same(t, value, c.Right)
			assert.Equal(t, tt.wantOp, c.Op)
		})
	}

	t.Run("attribute already left", func(t *testing.T) {
		in := &Comparison{Op: OpLe, Left: attr("cn"), Right: Lit("x")}
		assert.Same(t, in, self(&operandReorderer{}).Visit(in))
	})
}

func TestLogicalCollector(t *testing.T) {
	a, b, c, d, e := eq("a", "1"), eq("b", "2"), eq("c", "3"), eq("d", "4"), eq("e", "5")

	tests := []struct {
		name string
		in   Node
		want string
	}{
		{
			name: "nested groups of one kind",
			in:   group(And, a, group(And, b, group(And, c, d)), e),
			want: `And((@a == "1"), (@b == "2"), (@c == "3"), (@d == "4"), (@e == "5"))`,
		},
		{
			name: "binary chain",
			in:   &Logical{Kind: Or, Left: &Logical{Kind: Or, Left: a, Right: b}, Right: c},
			want: `Or((@a == "1"), (@b == "2"), (@c == "3"))`,
		},
		{
			name: "other kind kept nested",
			in:   group(And, a, group(Or, b, group(Or, c, d))),
			want: `And((@a == "1"), Or((@b == "2"), (@c == "3"), (@d == "4")))`,
		},
		{
			name: "under negation",
			in:   &Not{Operand: &Logical{Kind: And, Left: a, Right: &Logical{Kind: And, Left: b, Right: c}}},
			want: `!And((@a == "1"), (@b == "2"), (@c == "3"))`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := self(&logicalCollector{}).Visit(tt.in)
			assert.Equal(t, tt.want, Dump(out))
		})
	}

	t.Run("single child collapses", func(t *testing.T) {
		assert.Same(t, a, collect(nil, And, []Node{a, nil}))
		assert.Nil(t, collect(nil, Or, nil))
	})
}

func TestRedundancyRemover(t *testing.T) {
	x, y := eq("x", "1"), eq("y", "2")

	tests := []struct {
		name string
		in   Node
		want Node
	}{
		{"and with false", group(And, Lit(false), x, y), Lit(false)},
		{"and with true", group(And, Lit(true), x), x},
		{"or with true", group(Or, Lit(true), x), Lit(true)},
		{"or with false", group(Or, Lit(false), x), x},
		{"double negation", &Not{Operand: &Not{Operand: x}}, x},
		{"not true", &Not{Operand: Lit(true)}, Lit(false)},
		{"not false", &Not{Operand: Lit(false)}, Lit(true)},
		{"and of only true", group(And, Lit(true), Lit(true)), Lit(true)},
		{"or of only false", group(Or, Lit(false), Lit(false)), Lit(false)},
		{"binary and with true", &Logical{Kind: And, Left: x, Right: Lit(true)}, x},
		{"nested constants", group(And, x, group(Or, y, &Not{Operand: Lit(false)})), x},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := self(&redundancyRemover{}).Visit(tt.in)
			if lit, ok := tt.want.(*Literal); ok {
				got, ok := out.(*Literal)
				require.True(t, ok, "got %s", Dump(out))
				assert.Equal(t, lit.Value, got.Value)
				return
			}
			assert.Same(t, tt.want, out)
		})
	}
}

func TestRedundancyRemover_KeepsKind(t *testing.T) {
	x, y := eq("x", "1"), eq("y", "2")

	out := self(&redundancyRemover{}).Visit(group(Or, x, Lit(false), y))
	g, ok := out.(*LogicalGroup)
	require.True(t, ok)
	assert.Equal(t, Or, g.Kind)
	assert.Equal(t, []Node{x, y}, g.Children)

	out = self(&redundancyRemover{}).Visit(&Logical{Kind: Or, Left: x, Right: y})
	l, ok := out.(*Logical)
	require.True(t, ok)
	assert.Equal(t, Or, l.Kind)

	unchanged := group(And, x, y)
	assert.Same(t, unchanged, self(&redundancyRemover{}).Visit(unchanged))
}

func TestRedundancyRemover_FlattensCollapsedGroups(t *testing.T) {
	x, y, z := eq("x", "1"), eq("y", "2"), eq("z", "3")

	tests := []struct {
		name string
		in   Node
		kind LogicalKind
	}{
		{"and group", group(And, x, group(Or, group(And, y, z), Lit(false))), And},
		{"or group", group(Or, x, group(And, group(Or, y, z), Lit(true))), Or},
		{"binary and", &Logical{Kind: And, Left: x, Right: group(Or, group(And, y, z), Lit(false))}, And},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := self(&redundancyRemover{}).Visit(tt.in)
			g, ok := out.(*LogicalGroup)
			require.True(t, ok, "got %s", Dump(out))
			assert.Equal(t, tt.kind, g.Kind)
			assert.Equal(t, []Node{x, y, z}, g.Children)
		})
	}
}

func TestRedundancyRemover_Searcher(t *testing.T) {
	projector := personMapping.projector()

	p := rewrite(&Plan{Searcher: &Searcher{Root: testRoot, Filter: Lit(true)}, Projector: projector})
	require.NotNil(t, p.Searcher)
	assert.Nil(t, p.Searcher.Filter)

	p = rewrite(&Plan{Searcher: &Searcher{Root: testRoot, Filter: group(And, eq("a", "1"), Lit(false))}, Projector: projector})
	assert.Nil(t, p.Searcher)
	assert.Same(t, projector, p.Projector)
}

func TestNormalizeSubstring(t *testing.T) {
	x, y := Lit("X"), Lit("Y")

	t.Run("lone part without wildcards is a constant", func(t *testing.T) {
		out := normalizeSubstring(&Substring{Parts: []Node{x}})
		assert.Same(t, x, out)
	})

	t.Run("empty part without wildcards is not the empty constant", func(t *testing.T) {
		out := normalizeSubstring(&Substring{Parts: []Node{Lit("")}})
		sub, ok := out.(*Substring)
		require.True(t, ok, "got %s", Dump(out))
		assert.Empty(t, sub.Parts)
		assert.True(t, sub.LeadingWildcard)
	})

	t.Run("empty leading part", func(t *testing.T) {
		out := normalizeSubstring(&Substring{LeadingWildcard: true, Parts: []Node{Lit(""), x}, TrailingWildcard: true})
		sub, ok := out.(*Substring)
		require.True(t, ok)
		assert.Equal(t, []Node{x}, sub.Parts)
		assert.True(t, sub.LeadingWildcard)
		assert.True(t, sub.TrailingWildcard)
	})

	t.Run("empty interior part", func(t *testing.T) {
		out := normalizeSubstring(&Substring{LeadingWildcard: true, Parts: []Node{x, Lit(""), y}, TrailingWildcard: true})
		sub, ok := out.(*Substring)
		require.True(t, ok)
		assert.Equal(t, []Node{x, y}, sub.Parts)
	})

	t.Run("empty trailing part", func(t *testing.T) {
		out := normalizeSubstring(&Substring{Parts: []Node{x, nil}})
		sub, ok := out.(*Substring)
		require.True(t, ok)
		assert.Equal(t, []Node{x}, sub.Parts)
		assert.False(t, sub.LeadingWildcard)
		assert.True(t, sub.TrailingWildcard)
	})

	t.Run("no parts and no wildcards", func(t *testing.T) {
		out := normalizeSubstring(&Substring{})
		lit, ok := out.(*Literal)
		require.True(t, ok)
		assert.Equal(t, "", lit.Value)
	})
}

func TestEmptyClauseRemover(t *testing.T) {
	tests := []struct {
		name string
		in   Node
		want string
	}{
		{"equals null", &Comparison{Op: OpEq, Left: attr("a"), Right: Lit(nil)}, "!Present(@a)"},
		{"equals empty", &Comparison{Op: OpEq, Left: attr("a"), Right: Lit("")}, "!Present(@a)"},
		{"only wildcards", &Comparison{Op: OpEq, Left: attr("a"), Right: &Substring{LeadingWildcard: true, Parts: []Node{Lit("")}}}, "Present(@a)"},
		{"lone part", &Comparison{Op: OpEq, Left: attr("a"), Right: &Substring{Parts: []Node{Lit("v")}}}, `(@a == "v")`},
		{"ordering kept", &Comparison{Op: OpGe, Left: attr("a"), Right: Lit("")}, `(@a >= "")`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := self(&emptyClauseRemover{}).Visit(tt.in)
			assert.Equal(t, tt.want, Dump(out))
		})
	}
}

func TestBinaryEliminator(t *testing.T) {
	tests := []struct {
		op   CompareOp
		want string
	}{
		{OpGt, `!(@a <= "v")`},
		{OpLt, `!(@a >= "v")`},
		{OpNe, `!(@a == "v")`},
		{OpGe, `(@a >= "v")`},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			out := self(&binaryEliminator{}).Visit(&Comparison{Op: tt.op, Left: attr("a"), Right: Lit("v")})
			assert.Equal(t, tt.want, Dump(out))
		})
	}
}

func TestNullComparisonRewriter(t *testing.T) {
	out := self(&nullComparisonRewriter{}).Visit(&Not{Operand: &Comparison{Op: OpEq, Left: attr("a"), Right: Lit(nil)}})
	assert.Equal(t, "!!Present(@a)", Dump(out))
}

func TestRewriter_IdentityKeepsNodes(t *testing.T) {
	in := group(And, eq("a", "1"), &Not{Operand: &Presence{Operand: attr("b")}})
	r := &Rewriter{}
	assert.Same(t, in, r.Visit(in))
}
