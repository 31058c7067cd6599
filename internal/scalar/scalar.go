// Package scalar converts scalar element values between Go types and the
// neutral representation shared by the formats.
package scalar

import (
	"math"
	"reflect"

	"github.com/wippyai/atone/errors"
)

// Kind is the format-neutral class of a scalar value.
type Kind uint8

const (
	Invalid Kind = iota
	Bool
	Int
	Uint
	Float
	String
	// Any marks a destination that accepts whatever the source holds.
	Any
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Float:
		return "float"
	case String:
		return "string"
	case Any:
		return "any"
	default:
		return "invalid"
	}
}

// Value carries one scalar between a format and a Go destination.
type Value struct {
	Str   string
	Int   int64
	Uint  uint64
	Float float64
	Kind  Kind
	Bool  bool
}

func BoolValue(b bool) Value { return Value{Kind: Bool, Bool: b} }
func IntValue(i int64) Value { return Value{Kind: Int, Int: i} }
func UintValue(u uint64) Value { return Value{Kind: Uint, Uint: u} }
func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }
func StringValue(s string) Value { return Value{Kind: String, Str: s} }

// Native returns the value as the Go type an untyped destination receives.
func (v Value) Native() any {
	switch v.Kind {
	case Bool:
		return v.Bool
	case Int:
		return v.Int
	case Uint:
		return v.Uint
	case Float:
		return v.Float
	case String:
		return v.Str
	default:
		return nil
	}
}

// Of normalizes v, a scalar or a pointer to one, for encoding.
func Of(v any) (Value, error) {
	switch x := v.(type) {
	case *int:
		if x != nil {
			return IntValue(int64(*x)), nil
		}
	case *int64:
		if x != nil {
			return IntValue(*x), nil
		}
	case *uint32:
		if x != nil {
			return UintValue(uint64(*x)), nil
		}
	case *string:
		if x != nil {
			return StringValue(*x), nil
		}
	case int:
		return IntValue(int64(x)), nil
	case string:
		return StringValue(x), nil
	}
	return of(reflect.ValueOf(v))
}

func of(rv reflect.Value) (Value, error) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Value{}, errors.NilPointer(errors.PhaseEncode, nil, rv.Type().String())
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return UintValue(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return FloatValue(rv.Float()), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Invalid:
		return Value{}, errors.Unsupported(errors.PhaseEncode, "nil element")
	default:
		return Value{}, errors.New(errors.PhaseEncode, errors.KindUnsupported).
			GoType(rv.Type().String()).
			Detail("not a scalar").
			Build()
	}
}

// Target reports the scalar kind expected behind dst, which must be a
// non-nil pointer.
func Target(dst any) (Kind, error) {
	ev, err := elem(dst)
	if err != nil {
		return Invalid, err
	}
	return kindOf(ev)
}

func kindOf(ev reflect.Value) (Kind, error) {
	switch ev.Kind() {
	case reflect.Bool:
		return Bool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint, nil
	case reflect.Float32, reflect.Float64:
		return Float, nil
	case reflect.String:
		return String, nil
	case reflect.Interface:
		if ev.NumMethod() == 0 {
			return Any, nil
		}
	}
	return Invalid, errors.New(errors.PhaseDecode, errors.KindUnsupported).
		GoType(ev.Type().String()).
		Detail("not a scalar destination").
		Build()
}

func elem(dst any) (reflect.Value, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Detail("destination must be a pointer, got %T", dst).
			Build()
	}
	if rv.IsNil() {
		return reflect.Value{}, errors.NilPointer(errors.PhaseDecode, nil, rv.Type().String())
	}
	return rv.Elem(), nil
}

// Assign stores val behind dst, converting between numeric kinds only when
// the value fits the destination exactly.
func Assign(dst any, val Value) error {
	switch p := dst.(type) {
	case *int:
		if val.Kind == Int && val.Int >= math.MinInt && val.Int <= math.MaxInt {
			*p = int(val.Int)
			return nil
		}
	case *int64:
		if val.Kind == Int {
			*p = val.Int
			return nil
		}
	case *uint32:
		if val.Kind == Uint && val.Uint <= math.MaxUint32 {
			*p = uint32(val.Uint)
			return nil
		}
	case *string:
		if val.Kind == String {
			*p = val.Str
			return nil
		}
	case *any:
		*p = val.Native()
		return nil
	}

	ev, err := elem(dst)
	if err != nil {
		return err
	}
	want, err := kindOf(ev)
	if err != nil {
		return err
	}

	switch want {
	case Any:
		if n := val.Native(); n != nil {
			ev.Set(reflect.ValueOf(n))
		} else {
			ev.SetZero()
		}
		return nil

	case Bool:
		if val.Kind != Bool {
			return mismatch(ev, val)
		}
		ev.SetBool(val.Bool)
		return nil

	case String:
		if val.Kind != String {
			return mismatch(ev, val)
		}
		ev.SetString(val.Str)
		return nil

	case Int:
		var i int64
		switch val.Kind {
		case Int:
			i = val.Int
		case Uint:
			if val.Uint > math.MaxInt64 {
				return overflow(ev, val.Uint)
			}
			i = int64(val.Uint)
		default:
			return mismatch(ev, val)
		}
		if ev.OverflowInt(i) {
			return overflow(ev, i)
		}
		ev.SetInt(i)
		return nil

	case Uint:
		var u uint64
		switch val.Kind {
		case Uint:
			u = val.Uint
		case Int:
			if val.Int < 0 {
				return overflow(ev, val.Int)
			}
			u = uint64(val.Int)
		default:
			return mismatch(ev, val)
		}
		if ev.OverflowUint(u) {
			return overflow(ev, u)
		}
		ev.SetUint(u)
		return nil

	case Float:
		var f float64
		switch val.Kind {
		case Float:
			f = val.Float
		case Int:
			f = float64(val.Int)
		case Uint:
			f = float64(val.Uint)
		default:
			return mismatch(ev, val)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && ev.OverflowFloat(f) {
			return overflow(ev, f)
		}
		ev.SetFloat(f)
		return nil
	}

	return mismatch(ev, val)
}

// TypeName names v's dynamic type for error messages.
func TypeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}

func mismatch(ev reflect.Value, val Value) error {
	return errors.TypeMismatch(errors.PhaseDecode, nil, ev.Type().String(), val.Kind.String())
}

func overflow(ev reflect.Value, v any) error {
	return errors.Overflow(errors.PhaseDecode, nil, v, ev.Type().String())
}
