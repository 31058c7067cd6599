package json

import (
	"io"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// DefaultMaxDepth bounds array nesting when no other limit is configured.
const DefaultMaxDepth = 128

// Unmarshal decodes a JSON array into v.
func Unmarshal(data []byte, v atone.Deserializable) error {
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	d := newDeserializer(iter)
	if err := v.Deserialize(d); err != nil {
		return err
	}
	return d.Finish()
}

// UnmarshalInPlace decodes a JSON array into v, reusing its elements.
func UnmarshalInPlace(data []byte, v atone.InPlaceDeserializable) error {
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	d := newDeserializer(iter)
	if err := v.DeserializeInPlace(d); err != nil {
		return err
	}
	return d.Finish()
}

// UnmarshalElement decodes one standalone JSON value into dst.
func UnmarshalElement(data []byte, dst any) error {
	return unmarshalElement(data, dst, false)
}

// UnmarshalElementInPlace decodes one standalone JSON value into the value
// already behind dst.
func UnmarshalElementInPlace(data []byte, dst any) error {
	return unmarshalElement(data, dst, true)
}

func unmarshalElement(data []byte, dst any, inPlace bool) error {
	iter := api.BorrowIterator(data)
	defer api.ReturnIterator(iter)

	d := newDeserializer(iter)
	if err := d.readElement(dst, inPlace); err != nil {
		return err
	}
	return d.Finish()
}

// Deserializer reads sequences from a json-iterator Iterator.
type Deserializer struct {
	iter     *jsoniter.Iterator
	depth    int
	MaxDepth int
}

// NewDeserializer returns a Deserializer over data.
func NewDeserializer(data []byte) *Deserializer {
	return newDeserializer(jsoniter.ParseBytes(api, data))
}

func newDeserializer(iter *jsoniter.Iterator) *Deserializer {
	return &Deserializer{iter: iter, MaxDepth: DefaultMaxDepth}
}

// Finish fails unless only whitespace remains.
func (d *Deserializer) Finish() error {
	if err := d.check(); err != nil {
		return err
	}
	// Only running out of input ends the peek with io.EOF; a byte that
	// cannot start a value is InvalidValue with no error.
	d.iter.Error = nil
	next := d.iter.WhatIsNext()
	if next != jsoniter.InvalidValue || d.iter.Error != io.EOF {
		return errors.InvalidData(errors.PhaseDecode, nil, "trailing data after value")
	}
	return nil
}

// check converts a sticky iterator error. io.EOF alone is not an error:
// the iterator sets it whenever a number runs to the end of the input.
func (d *Deserializer) check() error {
	if err := d.iter.Error; err != nil && err != io.EOF {
		return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed json")
	}
	return nil
}

func (d *Deserializer) DeserializeSeq(v atone.SeqVisitor) error {
	switch next := d.iter.WhatIsNext(); next {
	case jsoniter.ArrayValue:
	case jsoniter.InvalidValue:
		return errors.InvalidData(errors.PhaseDecode, nil, "expected a json value")
	default:
		return errors.NotASequence(valueName(next))
	}

	if d.depth >= d.MaxDepth {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("arrays nested deeper than %d", d.MaxDepth).
			Build()
	}
	d.depth++
	defer func() { d.depth-- }()

	seq := &seqAccess{d: d}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "array not consumed to its end")
	}
	return nil
}

type seqAccess struct {
	d    *Deserializer
	done bool
}

// SizeHint is always absent: JSON arrays do not announce their length.
func (s *seqAccess) SizeHint() (int, bool) {
	return 0, false
}

func (s *seqAccess) NextElement(dst any) (bool, error) {
	return s.next(dst, false)
}

func (s *seqAccess) NextElementInPlace(dst any) (bool, error) {
	return s.next(dst, true)
}

func (s *seqAccess) next(dst any, inPlace bool) (bool, error) {
	if s.done {
		return false, nil
	}
	more := s.d.iter.ReadArray()
	if err := s.d.check(); err != nil {
		return false, err
	}
	if !more {
		s.done = true
		return false, nil
	}
	return true, s.d.readElement(dst, inPlace)
}

func (d *Deserializer) readElement(dst any, inPlace bool) error {
	if atone.Describes(dst, inPlace) {
		_, err := atone.DeserializeNested(d, dst, inPlace)
		return err
	}

	want, err := scalar.Target(dst)
	if err != nil {
		return err
	}
	val, err := d.readScalar(want)
	if err != nil {
		return err
	}
	return scalar.Assign(dst, val)
}

func (d *Deserializer) readScalar(want scalar.Kind) (scalar.Value, error) {
	next := d.iter.WhatIsNext()
	switch next {
	case jsoniter.BoolValue:
		b := d.iter.ReadBool()
		return scalar.BoolValue(b), d.check()
	case jsoniter.StringValue:
		s := d.iter.ReadString()
		return scalar.StringValue(s), d.check()
	case jsoniter.NumberValue:
		n := string(d.iter.ReadNumber())
		if err := d.check(); err != nil {
			return scalar.Value{}, err
		}
		return parseNumber(n, want)
	case jsoniter.NilValue:
		if want == scalar.Any {
			d.iter.ReadNil()
			return scalar.Value{}, d.check()
		}
	case jsoniter.InvalidValue:
		return scalar.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "expected a json value")
	}
	return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), valueName(next))
}

// parseNumber keeps integers exact: a float literal only satisfies a float
// or untyped destination.
func parseNumber(n string, want scalar.Kind) (scalar.Value, error) {
	integral := !strings.ContainsAny(n, ".eE")

	if integral && want != scalar.Float {
		i, err := strconv.ParseInt(n, 10, 64)
		if err == nil {
			return scalar.IntValue(i), nil
		}
		if u, uerr := strconv.ParseUint(n, 10, 64); uerr == nil {
			return scalar.UintValue(u), nil
		}
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return scalar.Value{}, errors.Overflow(errors.PhaseDecode, nil, n, "64-bit integer")
		}
		return scalar.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "number "+strconv.Quote(n))
	}

	if !integral && want != scalar.Float && want != scalar.Any {
		return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), "float")
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return scalar.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "number "+strconv.Quote(n))
	}
	return scalar.FloatValue(f), nil
}

func valueName(t jsoniter.ValueType) string {
	switch t {
	case jsoniter.StringValue:
		return "string"
	case jsoniter.NumberValue:
		return "number"
	case jsoniter.NilValue:
		return "null"
	case jsoniter.BoolValue:
		return "bool"
	case jsoniter.ArrayValue:
		return "array"
	case jsoniter.ObjectValue:
		return "object"
	default:
		return "invalid"
	}
}
