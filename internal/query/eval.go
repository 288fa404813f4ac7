package query

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// eval computes a node that does not depend on the element.
func eval(n Node) (any, error) {
	switch n := n.(type) {
	case *Literal:
		return n.Value, nil
	case *Captured:
		return n.Fn()
	case *Call:
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			v, err := eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return n.Fn(args...)
	case *Member:
		obj, err := eval(n.Object)
		if err != nil {
			return nil, err
		}
		return memberValue(obj, n.Name)
	case *Comparison:
		left, err := eval(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := eval(n.Right)
		if err != nil {
			return nil, err
		}
		return compareValues(n.Op, left, right)
	case *Logical:
		left, err := evalBool(n.Left)
		if err != nil {
			return nil, err
		}
		if (n.Kind == And && !left) || (n.Kind == Or && left) {
			return left, nil
		}
		return evalBool(n.Right)
	case *LogicalGroup:
		for _, c := range n.Children {
			b, err := evalBool(c)
			if err != nil {
				return nil, err
			}
			if (n.Kind == And && !b) || (n.Kind == Or && b) {
				return b, nil
			}
		}
		return n.Kind == And, nil
	case *Not:
		b, err := evalBool(n.Operand)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case *StringMatch:
		obj, err := eval(n.Object)
		if err != nil {
			return nil, err
		}
		arg, err := eval(n.Arg)
		if err != nil {
			return nil, err
		}
		s, t := cast.ToString(obj), cast.ToString(arg)
		switch n.Method {
		case StartsWith:
			return strings.HasPrefix(s, t), nil
		case EndsWith:
			return strings.HasSuffix(s, t), nil
		default:
			return strings.Contains(s, t), nil
		}
	}
	return nil, notSupported("evaluate", "%T cannot be evaluated locally", n)
}

func evalBool(n Node) (bool, error) {
	v, err := eval(n)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s is %T, not bool", Dump(n), v)
	}
	return b, nil
}

// memberValue reads name from a map, a zero-argument method (Name or GetName)
// or a struct field.
func memberValue(obj any, name string) (any, error) {
	if obj == nil {
		return nil, fmt.Errorf("member %s of nil value", name)
	}
	if m, ok := obj.(map[string]any); ok {
		return m[name], nil
	}
	v := reflect.ValueOf(obj)
	for _, mname := range []string{name, "Get" + name} {
		method := v.MethodByName(mname)
		if !method.IsValid() || method.Type().NumIn() != 0 {
			continue
		}
		out := method.Call(nil)
		switch len(out) {
		case 1:
			return out[0].Interface(), nil
		case 2:
			if err, _ := out[1].Interface().(error); err != nil {
				return nil, err
			}
			return out[0].Interface(), nil
		}
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, fmt.Errorf("member %s of nil %s", name, v.Type())
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		if f := v.FieldByName(name); f.IsValid() && f.CanInterface() {
			return f.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%T has no member %s", obj, name)
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Equal(y)
		}
	case []byte:
		if y, ok := b.([]byte); ok {
			return bytes.Equal(x, y)
		}
	}
	return reflect.DeepEqual(a, b)
}

func orderValues(a, b any) (int, error) {
	if isNumber(a) && isNumber(b) {
		return cmp.Compare(cast.ToFloat64(a), cast.ToFloat64(b)), nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y), nil
		}
	}
	return 0, fmt.Errorf("cannot order %T and %T", a, b)
}

func compareValues(op CompareOp, a, b any) (bool, error) {
	switch op {
	case OpEq:
		return valuesEqual(a, b), nil
	case OpNe:
		return !valuesEqual(a, b), nil
	case OpApprox:
		return strings.EqualFold(cast.ToString(a), cast.ToString(b)), nil
	}
	c, err := orderValues(a, b)
	if err != nil {
		return false, err
	}
	switch op {
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unknown operator %s", op)
}
