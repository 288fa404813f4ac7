package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
)

// errAbsent marks a value that is present on the wire but means "no value",
// such as a FILETIME of zero.
var errAbsent = errors.New("value denotes absence")

// codec converts raw attribute values of one Kind.
type codec struct {
	zero   any
	coerce func(v any) (any, error)
	list   func(vs []any) (any, error)
	ptr    func(v any) (any, error)
	none   any // typed nil pointer
}

var codecs = map[Kind]codec{}

// register installs the codec for k. T is the Go type values of k project to.
func register[T any](k Kind, fn func(v any) (T, error)) {
	codecs[k] = codec{
		zero: *new(T),
		coerce: func(v any) (any, error) {
			t, err := fn(v)
			if errors.Is(err, errAbsent) {
				return *new(T), nil
			}
			return t, err
		},
		list: func(vs []any) (any, error) {
			out := make([]T, 0, len(vs))
			for _, v := range vs {
				t, err := fn(v)
				if errors.Is(err, errAbsent) {
					continue
				}
				if err != nil {
					return nil, err
				}
				out = append(out, t)
			}
			return out, nil
		},
		ptr: func(v any) (any, error) {
			t, err := fn(v)
			if errors.Is(err, errAbsent) {
				return (*T)(nil), nil
			}
			if err != nil {
				return nil, err
			}
			return &t, nil
		},
		none: (*T)(nil),
	}
}

func init() {
	register(KindString, cast.ToStringE)
	register(KindDN, cast.ToStringE)
	register(KindBool, toBool)
	register(KindInt, cast.ToIntE)
	register(KindInt64, cast.ToInt64E)
	register(KindFloat, cast.ToFloat64E)
	register(KindTime, toTime)
	register(KindFileTime, toFileTime)
	register(KindBytes, toBytes)
	register(KindGUID, toGUID)
	register(KindSID, toSID)
	register(KindAny, func(v any) (any, error) { return v, nil })
}

func codecFor(k Kind) (codec, error) {
	c, ok := codecs[k]
	if !ok {
		return codec{}, typeCoercion(nil, "no conversion for %s values", k)
	}
	return c, nil
}

// zeroValue is the value projected for an absent attribute of type t.
func zeroValue(t ValueType) any {
	c, err := codecFor(t.Kind)
	if err != nil {
		return nil
	}
	switch {
	case t.Multi:
		// An empty typed slice.
		v, _ := c.list(nil)
		return v
	case t.Optional:
		return c.none
	default:
		return c.zero
	}
}

// coerceValues converts the raw values of one attribute to t.
func coerceValues(attribute string, t ValueType, raw []any) (any, error) {
	c, err := codecFor(t.Kind)
	if err != nil {
		return nil, err
	}
	if t.Multi {
		v, err := c.list(raw)
		if err != nil {
			return nil, typeCoercion(err, "attribute %s: cannot convert values to %s", attribute, t)
		}
		return v, nil
	}
	if len(raw) > 1 {
		return nil, typeCoercion(nil, "attribute %s has %d values but %s is single-valued", attribute, len(raw), t)
	}
	fn := c.coerce
	if t.Optional {
		fn = c.ptr
	}
	v, err := fn(raw[0])
	if err != nil {
		return nil, typeCoercion(err, "attribute %s: cannot convert %T to %s", attribute, raw[0], t)
	}
	return v, nil
}

func toBool(v any) (bool, error) {
	if s, ok := v.(string); ok {
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
	}
	return cast.ToBoolE(v)
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case []byte:
		return adldap.ParseGeneralizedTime(string(t))
	case string:
		return adldap.ParseGeneralizedTime(t)
	}
	return time.Time{}, fmt.Errorf("unable to cast %#v of type %T to time", v, v)
}

func toFileTime(v any) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	ticks, err := cast.ToInt64E(stringish(v))
	if err != nil {
		return time.Time{}, err
	}
	t, ok := adldap.FileTimeToTime(ticks)
	if !ok {
		return time.Time{}, errAbsent
	}
	return t, nil
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	}
	return nil, fmt.Errorf("unable to cast %#v of type %T to []byte", v, v)
}

func toGUID(v any) (uuid.UUID, error) {
	switch g := v.(type) {
	case uuid.UUID:
		return g, nil
	case []byte:
		return adldap.GUIDFromBytes(g)
	case string:
		if len(g) == adldap.GUIDBytesLength {
			return adldap.GUIDFromBytes([]byte(g))
		}
		return uuid.Parse(g)
	}
	return uuid.Nil, fmt.Errorf("unable to cast %#v of type %T to GUID", v, v)
}

func toSID(v any) (string, error) {
	switch s := v.(type) {
	case []byte:
		return adldap.NewSIDHandler().ConvertBinarySIDToString(s)
	case string:
		if strings.HasPrefix(s, "S-") {
			return s, nil
		}
		return adldap.NewSIDHandler().ConvertBinarySIDToString([]byte(s))
	}
	return "", fmt.Errorf("unable to cast %#v of type %T to SID", v, v)
}

func stringish(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// resultKinds are tried in order when a scalar result is converted to T.
var resultKinds = []Kind{KindString, KindBool, KindInt, KindInt64, KindFloat, KindTime, KindBytes, KindGUID}

// convertResult converts a projected value to T. Records decode into structs.
func convertResult[T any](v any) (T, error) {
	var out T
	if v == nil {
		return out, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	if m, ok := v.(map[string]any); ok {
		if err := decodeRecord(m, &out); err != nil {
			return out, typeCoercion(err, "cannot decode record into %T", out)
		}
		return out, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	if target.Kind() == reflect.Interface {
		return out, typeCoercion(nil, "%T does not implement %s", v, target)
	}
	for _, k := range resultKinds {
		c := codecs[k]
		if reflect.TypeOf(c.zero) != target {
			continue
		}
		cv, err := c.coerce(v)
		if err != nil {
			return out, typeCoercion(err, "cannot convert %T to %s", v, target)
		}
		return cv.(T), nil
	}
	return out, typeCoercion(nil, "cannot convert %T to %s", v, target)
}
