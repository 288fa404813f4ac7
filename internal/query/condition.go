package query

import (
	"fmt"
	"sort"
	"strings"
)

// Condition is a single attribute test given as data, as read from
// configuration or the command line.
type Condition struct {
	Attribute string `mapstructure:"attribute" yaml:"attribute" json:"attribute"`
	Operator  string `mapstructure:"operator" yaml:"operator" json:"operator"`
	Value     string `mapstructure:"value" yaml:"value,omitempty" json:"value,omitempty"`
}

type conditionOperator struct {
	unary bool
	build func(x Expr, v string) Expr
}

var conditionOperators = map[string]conditionOperator{
	"eq":          {build: func(x Expr, v string) Expr { return x.Eq(v) }},
	"ne":          {build: func(x Expr, v string) Expr { return x.Ne(v) }},
	"lt":          {build: func(x Expr, v string) Expr { return x.Lt(v) }},
	"le":          {build: func(x Expr, v string) Expr { return x.Le(v) }},
	"gt":          {build: func(x Expr, v string) Expr { return x.Gt(v) }},
	"ge":          {build: func(x Expr, v string) Expr { return x.Ge(v) }},
	"approx":      {build: func(x Expr, v string) Expr { return x.Approx(v) }},
	"starts_with": {build: func(x Expr, v string) Expr { return x.StartsWith(v) }},
	"ends_with":   {build: func(x Expr, v string) Expr { return x.EndsWith(v) }},
	"contains":    {build: func(x Expr, v string) Expr { return x.Contains(v) }},
	"present":     {unary: true, build: func(x Expr, _ string) Expr { return x.NotNull() }},
	"absent":      {unary: true, build: func(x Expr, _ string) Expr { return x.IsNull() }},
	"bit_and":     {build: func(x Expr, v string) Expr { return x.BitAnd(v) }},
	"bit_or":      {build: func(x Expr, v string) Expr { return x.BitOr(v) }},
	"in_chain":    {build: func(x Expr, v string) Expr { return x.InChain(v) }},
}

// ConditionOperators lists the accepted operator names.
func ConditionOperators() []string {
	ops := make([]string, 0, len(conditionOperators))
	for op := range conditionOperators {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Validate checks the attribute and operator.
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Attribute) == "" {
		return fmt.Errorf("condition attribute is required")
	}
	op, ok := conditionOperators[c.Operator]
	if !ok {
		return fmt.Errorf("unknown condition operator %q, must be one of %s", c.Operator, strings.Join(ConditionOperators(), ", "))
	}
	if !op.unary && c.Value == "" && c.Operator != "eq" && c.Operator != "ne" {
		return fmt.Errorf("condition operator %s requires a value", c.Operator)
	}
	return nil
}

// Apply builds the test on x.Field(Attribute). Fields that are not mapped
// fall back to the attribute of the same name.
func (c Condition) Apply(x Expr) (Expr, error) {
	if err := c.Validate(); err != nil {
		return Expr{}, err
	}
	return conditionOperators[c.Operator].build(x.Field(c.Attribute), c.Value), nil
}

func (c Condition) String() string {
	if conditionOperators[c.Operator].unary {
		return c.Attribute + ":" + c.Operator
	}
	return c.Attribute + ":" + c.Operator + ":" + c.Value
}

// ParseCondition parses attribute:operator[:value]. The value may itself
// contain colons.
func ParseCondition(s string) (Condition, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return Condition{}, fmt.Errorf("invalid condition %q: expected attribute:operator[:value]", s)
	}
	c := Condition{Attribute: parts[0], Operator: strings.ToLower(parts[1])}
	if len(parts) == 3 {
		c.Value = parts[2]
	}
	if err := c.Validate(); err != nil {
		return Condition{}, fmt.Errorf("invalid condition %q: %w", s, err)
	}
	return c, nil
}

// Where returns a predicate holding when every condition holds.
func Where(conditions ...Condition) (Predicate, error) {
	for _, c := range conditions {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return func(x Expr) Expr {
		exprs := make([]Expr, 0, len(conditions))
		for _, c := range conditions {
			e, _ := c.Apply(x)
			exprs = append(exprs, e)
		}
		return AllOf(exprs...)
	}, nil
}
