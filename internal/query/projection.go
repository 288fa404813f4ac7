package query

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Step is one node of a compiled projector. Steps are built once per query
// and run once per record.
type Step interface {
	run(c *Context, rec Record) (any, error)
}

// attributeStep reads one attribute and converts it to its field type.
type attributeStep struct {
	attribute string
	typ       ValueType
}

func (s *attributeStep) run(_ *Context, rec Record) (any, error) {
	values, ok := rec.Attribute(s.attribute)
	if (!ok || len(values) == 0) && strings.EqualFold(s.attribute, DNAttribute) && rec.DN() != "" {
		values, ok = []any{rec.DN()}, true
	}
	if !ok || len(values) == 0 {
		return zeroValue(s.typ), nil
	}
	return coerceValues(s.attribute, s.typ, values)
}

type constStep struct {
	value any
}

func (s *constStep) run(*Context, Record) (any, error) {
	return s.value, nil
}

type recordField struct {
	name string
	step Step
}

// recordStep builds a map of field name to value.
type recordStep struct {
	fields []recordField
}

func (s *recordStep) run(c *Context, rec Record) (any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, err := f.step.run(c, rec)
		if err != nil {
			return nil, err
		}
		out[f.name] = v
	}
	return out, nil
}

// collectionStep opens a deferred query over the entries linked to the record.
type collectionStep struct {
	collection *CollectionMapping
}

func (s *collectionStep) run(c *Context, rec Record) (any, error) {
	return s.collection.open(c, s.collection.entitySet(rec.DN())), nil
}

// Entry is a raw directory entry with its values as strings.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Get returns the first value of attribute, matched case-insensitively.
func (e Entry) Get(attribute string) string {
	for k, v := range e.Attributes {
		if strings.EqualFold(k, attribute) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// entryStep returns the record itself as an Entry.
type entryStep struct {
	attributes []string
}

func (s *entryStep) run(_ *Context, rec Record) (any, error) {
	e := Entry{DN: rec.DN(), Attributes: make(map[string][]string, len(s.attributes))}
	for _, a := range s.attributes {
		values, ok := rec.Attribute(a)
		if !ok || len(values) == 0 {
			continue
		}
		v, err := coerceValues(a, List(KindString), values)
		if err != nil {
			return nil, err
		}
		e.Attributes[a] = v.([]string)
	}
	return e, nil
}

// callStep applies a local function to projected arguments.
type callStep struct {
	name string
	fn   func(args ...any) (any, error)
	args []Step
}

func (s *callStep) run(c *Context, rec Record) (any, error) {
	args := make([]any, len(s.args))
	for i, a := range s.args {
		v, err := a.run(c, rec)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	v, err := s.fn(args...)
	if err != nil {
		return nil, typeCoercion(err, "%s failed", s.name)
	}
	return v, nil
}

// buildProjector compiles a projector tree into steps.
func buildProjector(n Node) (Step, error) {
	switch n := n.(type) {
	case *AttributeRef:
		return &attributeStep{attribute: n.Name, typ: n.Type}, nil
	case *Literal:
		return &constStep{value: n.Value}, nil
	case *RecordExpr:
		fields := make([]recordField, 0, len(n.Fields))
		for _, f := range n.Fields {
			step, err := buildProjector(f.Value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, recordField{name: f.Name, step: step})
		}
		return &recordStep{fields: fields}, nil
	case *CollectionRef:
		return &collectionStep{collection: n.Collection}, nil
	case *Call:
		args := make([]Step, 0, len(n.Args))
		for _, a := range n.Args {
			step, err := buildProjector(a)
			if err != nil {
				return nil, err
			}
			args = append(args, step)
		}
		return &callStep{name: n.Name, fn: n.Fn, args: args}, nil
	case *Parameter:
		return &entryStep{}, nil
	case *Member:
		if a := implicitAttribute(n); a != nil {
			return &attributeStep{attribute: a.Name, typ: a.Type}, nil
		}
	}
	return nil, notSupported("projection", "cannot project %s", Dump(n))
}

// decodeRecord decodes a projected record into out, matching field names
// case-insensitively.
func decodeRecord(m map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}
