package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// DefaultMaxDepth bounds sequence nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

// Options configures decoding. The zero value uses the defaults.
type Options struct {
	// MaxDepth limits how deeply sequences may nest.
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

// NewDeserializer returns a Deserializer over data.
func (o Options) NewDeserializer(data []byte) *Deserializer {
	return &Deserializer{buf: data, maxDepth: o.maxDepth()}
}

// NewDeserializer returns a Deserializer over data with default options.
func NewDeserializer(data []byte) *Deserializer {
	return Options{}.NewDeserializer(data)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v atone.Deserializable) error {
	d := NewDeserializer(data)
	if err := v.Deserialize(d); err != nil {
		return err
	}
	return d.Finish()
}

// UnmarshalInPlace decodes data into v, reusing its elements.
func UnmarshalInPlace(data []byte, v atone.InPlaceDeserializable) error {
	d := NewDeserializer(data)
	if err := v.DeserializeInPlace(d); err != nil {
		return err
	}
	return d.Finish()
}

// Deserializer reads values from a byte slice.
type Deserializer struct {
	buf      []byte
	depth    int
	maxDepth int
}

// Finish fails if bytes remain after the decoded value.
func (d *Deserializer) Finish() error {
	if len(d.buf) > 0 {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("%d trailing bytes", len(d.buf)).
			Build()
	}
	return nil
}

func malformed(n int) error {
	return errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, protowire.ParseError(n), "malformed input")
}

// peekTag reads the next tag without consuming it.
func (d *Deserializer) peekTag() (protowire.Number, protowire.Type, int, error) {
	if len(d.buf) == 0 {
		return 0, 0, 0, errors.InvalidData(errors.PhaseDecode, nil, "unexpected end of input")
	}
	num, typ, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return 0, 0, 0, malformed(n)
	}
	if want, ok := fieldTypes[num]; !ok || want != typ {
		return 0, 0, 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("unexpected field %d with wire type %d", num, typ).
			Build()
	}
	return num, typ, n, nil
}

func (d *Deserializer) DeserializeSeq(v atone.SeqVisitor) error {
	num, _, n, err := d.peekTag()
	if err != nil {
		return err
	}
	if num != fieldSeq {
		return errors.NotASequence(fieldName(num))
	}
	if d.depth >= d.maxDepth {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("sequences nested deeper than %d", d.maxDepth).
			Build()
	}

	payload, m := protowire.ConsumeBytes(d.buf[n:])
	if m < 0 {
		return malformed(m)
	}
	count, k := protowire.ConsumeVarint(payload)
	if k < 0 {
		return malformed(k)
	}

	body := &Deserializer{buf: payload[k:], depth: d.depth + 1, maxDepth: d.maxDepth}
	seq := &seqAccess{body: body, declared: count}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "sequence not consumed to its end")
	}
	if seq.read != count {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("sequence declared %d elements but holds %d", count, seq.read).
			Build()
	}
	d.buf = d.buf[n+m:]
	return nil
}

type seqAccess struct {
	body     *Deserializer
	declared uint64
	read     uint64
	done     bool
}

// SizeHint reports the remaining declared count.
func (s *seqAccess) SizeHint() (int, bool) {
	if s.read >= s.declared {
		return 0, true
	}
	rest := s.declared - s.read
	if rest > math.MaxInt {
		return math.MaxInt, true
	}
	return int(rest), true
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
	if len(s.body.buf) == 0 {
		s.done = true
		return false, nil
	}
	s.read++

	if atone.Describes(dst, inPlace) {
		_, err := atone.DeserializeNested(s.body, dst, inPlace)
		return true, err
	}
	want, err := scalar.Target(dst)
	if err != nil {
		return false, err
	}
	val, err := s.body.readScalar(want)
	if err != nil {
		return false, err
	}
	return true, scalar.Assign(dst, val)
}

func (d *Deserializer) readScalar(want scalar.Kind) (scalar.Value, error) {
	num, _, n, err := d.peekTag()
	if err != nil {
		return scalar.Value{}, err
	}
	rest := d.buf[n:]

	var (
		val scalar.Value
		m   int
	)
	switch num {
	case fieldUint:
		var u uint64
		u, m = protowire.ConsumeVarint(rest)
		val = scalar.UintValue(u)
	case fieldSint:
		var u uint64
		u, m = protowire.ConsumeVarint(rest)
		val = scalar.IntValue(protowire.DecodeZigZag(u))
	case fieldFloat:
		var u uint64
		u, m = protowire.ConsumeFixed64(rest)
		val = scalar.FloatValue(math.Float64frombits(u))
	case fieldString:
		var s string
		s, m = protowire.ConsumeString(rest)
		val = scalar.StringValue(s)
	case fieldBool:
		var u uint64
		u, m = protowire.ConsumeVarint(rest)
		if m >= 0 && u > 1 {
			return scalar.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "bool out of range")
		}
		val = scalar.BoolValue(u == 1)
	default:
		return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), fieldName(num))
	}
	if m < 0 {
		return scalar.Value{}, malformed(m)
	}
	d.buf = rest[m:]
	return val, nil
}
