package query

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "John Doe", "John Doe"},
		{"parentheses", "a(b)c", `a\28b\29c`},
		{"asterisk", "a*", `a\2a`},
		{"backslash", `a\b`, `a\5cb`},
		{"null byte", "a\x00b", `a\00b`},
		{"all metacharacters", `()\*`, `\28\29\5c\2a`},
		{"dn characters untouched", "CN=Doe, John,DC=com", "CN=Doe, John,DC=com"},
		{"non-ascii untouched", "Zoë", "Zoë"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeValue(tt.input))
		})
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

func TestLiteralText(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{name: "string", value: "a*b", want: `a\2ab`},
		{name: "int", value: 42, want: "42"},
		{name: "negative int64", value: int64(-5), want: "-5"},
		{name: "uint32", value: uint32(2147483648), want: "2147483648"},
		{name: "true", value: true, want: "TRUE"},
		{name: "false", value: false, want: "FALSE"},
		{name: "bytes", value: []byte{0x00, 0x0f, 0xff}, want: `\00\0f\ff`},
		{
			name:  "guid",
			value: uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff"),
			want:  `\33\22\11\00\55\44\77\66\88\99\aa\bb\cc\dd\ee\ff`,
		},
		{
			name:  "time in another zone",
			value: time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60)),
			want:  "20240601100000.0Z",
		},
		{name: "stringer", value: stringer("x(y)"), want: `x\28y\29`},
		{name: "null", value: nil, wantErr: true},
		{name: "unsupported", value: 1.5, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := literalText(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFilter(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"presence", &Presence{Operand: attr("mail")}, "(mail=*)"},
		{"negation", &Not{Operand: eq("cn", "a")}, "(!(cn=a))"},
		{"binary or", &Logical{Kind: Or, Left: eq("cn", "a"), Right: eq("cn", "b")}, "(|(cn=a)(cn=b))"},
		{"group", group(And, eq("cn", "a"), eq("sn", "b"), eq("mail", "c")), "(&(cn=a)(sn=b)(mail=c))"},
		{
			name: "substring",
			node: &Comparison{Op: OpEq, Left: attr("cn"), Right: &Substring{
				LeadingWildcard: true, Parts: []Node{Lit("a"), Lit("b*")}, TrailingWildcard: true,
			}},
			want: `(cn=*a*b\2a*)`,
		},
		{
			name: "extensible match without rule",
			node: &ExtensibleMatch{Attribute: attr("cn"), Value: Lit("x")},
			want: "(cn:=x)",
		},
		{
			name: "extensible match with dn",
			node: &ExtensibleMatch{Attribute: attr("ou"), Rule: RuleCaseIgnore, IncludeDN: true, Value: Lit("Sales")},
			want: "(ou:dn:2.5.13.2:=Sales)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatFilter(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFilter_NotSupported(t *testing.T) {
	tests := []struct {
		name string
		node Node
	}{
		{"nil", nil},
		{"empty group", group(And)},
		{"bare attribute", attr("cn")},
		{"bare constant", Lit(true)},
		{"greater than", &Comparison{Op: OpGt, Left: attr("age"), Right: Lit(1)}},
		{"value on the left", &Comparison{Op: OpEq, Left: Lit("a"), Right: attr("cn")}},
		{"substring ordering", &Comparison{Op: OpGe, Left: attr("cn"), Right: &Substring{Parts: []Node{Lit("a")}, TrailingWildcard: true}}},
		{"undecomposed string match", &StringMatch{Method: Contains, Object: attr("cn"), Arg: Lit("a")}},
		{"unresolved member", &Member{Object: &Parameter{Name: "x"}, Name: "Name"}},
		{"presence of a constant", &Presence{Operand: Lit("a")}},
		{"nested failure", group(And, eq("cn", "a"), &Presence{Operand: Lit("a")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FormatFilter(tt.node)
			require.Error(t, err)
			assert.True(t, IsNotSupported(err), "got %v", err)
		})
	}
}

func describeRequest(req *SearchRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "root: %s\n", req.Root)
	fmt.Fprintf(&b, "scope: %s\n", req.Scope)
	fmt.Fprintf(&b, "filter: %s\n", req.Filter)
	fmt.Fprintf(&b, "attributes: %s\n", strings.Join(req.Attributes, ","))
	if req.Sort != nil {
		fmt.Fprintf(&b, "sort: %s descending=%t\n", req.Sort.Attribute, req.Sort.Descending)
	}
	fmt.Fprintf(&b, "size_limit: %d\n", req.SizeLimit)
	return b.String()
}

func TestSearchRequest_Golden(t *testing.T) {
	c := newTestContext(nil)
	people := From[person](c, personMapping)
	staff := "CN=Staff," + testRoot
	admins := "CN=Admins," + testRoot

	tests := []struct {
		name  string
		query *Query[person]
	}{
		{
			name: "enabled_people_by_name",
			query: people.
				Where(func(x Expr) Expr { return x.Field("Flags").BitAnd(2).Not() }).
				Where(func(x Expr) Expr { return x.Field("Name").StartsWith("j") }).
				OrderBy(func(x Expr) Expr { return x.Field("Name") }).
				Take(20),
		},
		{
			name: "staff_or_admins_page",
			query: From[person](c, personMapping, Under("OU=People,"+testRoot), InScope(ScopeOneLevel)).
				Where(func(x Expr) Expr {
					return x.Field("Groups").InChain(staff).Or(x.Field("Groups").InChain(admins))
				}).
				Where(func(x Expr) Expr { return x.Field("Mail").NotNull() }).
				OrderByDescending(func(x Expr) Expr { return x.Field("Age") }).
				Skip(40).
				Take(20),
		},
		{
			name: "age_range_excluding_name",
			query: people.Where(func(x Expr) Expr {
				return x.Field("Age").Gt(30).
					And(x.Field("Age").Le(40)).
					And(x.Field("Name").Ne("root")).
					And(x.Field("Mail").EndsWith("@example.com"))
			}),
		},
		{
			name: "single_by_mail",
			query: people.Skip(2).reduce(OpSingle, []Predicate{
				func(x Expr) Expr { return x.Field("Mail").Eq("a@example.com") },
			}),
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled, err := tt.query.Compile()
			require.NoError(t, err)
			require.NotNil(t, compiled.Request)
			g.Assert(t, tt.name, []byte(describeRequest(compiled.Request)))
		})
	}
}
