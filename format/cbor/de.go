package cbor

import (
	"encoding/binary"
	"math"
	"math/big"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// Unmarshal decodes a CBOR array into v.
func Unmarshal(data []byte, v atone.Deserializable) error {
	d := newDeserializer(data, defaultDecMode, DefaultMaxDepth)
	if err := v.Deserialize(d); err != nil {
		return err
	}
	return d.Finish()
}

// UnmarshalInPlace decodes a CBOR array into v, reusing its elements.
func UnmarshalInPlace(data []byte, v atone.InPlaceDeserializable) error {
	d := newDeserializer(data, defaultDecMode, DefaultMaxDepth)
	if err := v.DeserializeInPlace(d); err != nil {
		return err
	}
	return d.Finish()
}

// NewDeserializer returns a Deserializer over data with default options.
func NewDeserializer(data []byte) *Deserializer {
	return newDeserializer(data, defaultDecMode, DefaultMaxDepth)
}

// NewDeserializer returns a Deserializer over data configured by o.
func (o Options) NewDeserializer(data []byte) (*Deserializer, error) {
	_, dm, err := o.modes()
	if err != nil {
		return nil, err
	}
	return newDeserializer(data, dm, o.maxDepth()), nil
}

func newDeserializer(data []byte, dm fxcbor.DecMode, maxDepth int) *Deserializer {
	return &Deserializer{buf: data, dm: dm, maxDepth: maxDepth}
}

// Deserializer reads CBOR data items from a byte slice.
type Deserializer struct {
	dm       fxcbor.DecMode
	buf      []byte
	depth    int
	maxDepth int
}

// Finish fails if bytes remain after the decoded item.
func (d *Deserializer) Finish() error {
	if len(d.buf) > 0 {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("%d trailing bytes", len(d.buf)).
			Build()
	}
	return nil
}

func truncated() error {
	return errors.InvalidData(errors.PhaseDecode, nil, "unexpected end of input")
}

// readArrayHead consumes an array head. indefinite reports a
// break-terminated array, otherwise count is the declared length.
func (d *Deserializer) readArrayHead() (count uint64, indefinite bool, err error) {
	b := d.buf
	info := b[0] & 0x1f

	var n int
	switch {
	case info < infoUint8:
		count, n = uint64(info), 1
	case info == infoUint8 && len(b) >= 2:
		count, n = uint64(b[1]), 2
	case info == infoUint16 && len(b) >= 3:
		count, n = uint64(binary.BigEndian.Uint16(b[1:])), 3
	case info == infoUint32 && len(b) >= 5:
		count, n = uint64(binary.BigEndian.Uint32(b[1:])), 5
	case info == infoUint64 && len(b) >= 9:
		count, n = binary.BigEndian.Uint64(b[1:]), 9
	case info == infoIndefinite:
		indefinite, n = true, 1
	case info > infoUint64:
		return 0, false, errors.InvalidData(errors.PhaseDecode, nil, "reserved additional information in array head")
	default:
		return 0, false, truncated()
	}
	d.buf = b[n:]
	return count, indefinite, nil
}

func (d *Deserializer) DeserializeSeq(v atone.SeqVisitor) error {
	if len(d.buf) == 0 {
		return truncated()
	}
	if d.buf[0]&0xe0 != majorArray {
		return errors.NotASequence(majorName(d.buf[0]))
	}
	if d.depth >= d.maxDepth {
		return errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("arrays nested deeper than %d", d.maxDepth).
			Build()
	}

	count, indefinite, err := d.readArrayHead()
	if err != nil {
		return err
	}

	d.depth++
	defer func() { d.depth-- }()

	seq := &seqAccess{d: d, declared: count, indefinite: indefinite}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "array not consumed to its end")
	}
	return nil
}

type seqAccess struct {
	d          *Deserializer
	declared   uint64
	read       uint64
	indefinite bool
	done       bool
}

// SizeHint is the remaining declared count of a definite array; it may
// exceed what the input actually holds. Indefinite arrays report none.
func (s *seqAccess) SizeHint() (int, bool) {
	if s.indefinite {
		return 0, false
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
	if s.indefinite {
		if len(s.d.buf) == 0 {
			return false, truncated()
		}
		if s.d.buf[0] == breakByte {
			s.d.buf = s.d.buf[1:]
			s.done = true
			return false, nil
		}
	} else if s.read == s.declared {
		s.done = true
		return false, nil
	}
	s.read++

	if atone.Describes(dst, inPlace) {
		_, err := atone.DeserializeNested(s.d, dst, inPlace)
		return true, err
	}
	want, err := scalar.Target(dst)
	if err != nil {
		return false, err
	}
	val, err := s.d.readScalar(want)
	if err != nil {
		return false, err
	}
	return true, scalar.Assign(dst, val)
}

func (d *Deserializer) readScalar(want scalar.Kind) (scalar.Value, error) {
	if len(d.buf) == 0 {
		return scalar.Value{}, truncated()
	}
	head := d.buf[0]
	switch {
	case head&0xe0 == majorArray, head>>5 == 5:
		return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), majorName(head))
	case head == breakByte:
		return scalar.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "unexpected break")
	}

	var x any
	rest, err := d.dm.UnmarshalFirst(d.buf, &x)
	if err != nil {
		return scalar.Value{}, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "malformed cbor")
	}
	d.buf = rest

	switch x := x.(type) {
	case nil:
		if want == scalar.Any {
			return scalar.Value{}, nil
		}
		return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), "null")
	case *big.Int, big.Int:
		return scalar.Value{}, errors.Overflow(errors.PhaseDecode, nil, x, "64-bit integer")
	}
	val, err := scalar.Of(x)
	if err != nil {
		return scalar.Value{}, errors.TypeMismatch(errors.PhaseDecode, nil, want.String(), majorName(head))
	}
	return val, nil
}
