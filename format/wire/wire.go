// Package wire is a compact tagged binary format built on protowire.
//
// Every value starts with a protobuf tag whose field number names the value
// kind. A sequence is a length-delimited field holding a varint element
// count followed by the elements:
//
//	seq    = tag(1, bytes) len count element*
//	uint   = tag(2, varint) value
//	sint   = tag(3, varint) zigzag(value)
//	float  = tag(4, fixed64) ieee754 bits
//	string = tag(5, bytes) len utf8
//	bool   = tag(6, varint) 0|1
//
// The count is reported as the size hint. It is not trusted: the payload
// length bounds what is actually read and a mismatch is rejected once the
// payload is exhausted.
package wire

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

const (
	fieldSeq    protowire.Number = 1
	fieldUint   protowire.Number = 2
	fieldSint   protowire.Number = 3
	fieldFloat  protowire.Number = 4
	fieldString protowire.Number = 5
	fieldBool   protowire.Number = 6
)

// fieldTypes pairs each field number with its wire type.
var fieldTypes = map[protowire.Number]protowire.Type{
	fieldSeq:    protowire.BytesType,
	fieldUint:   protowire.VarintType,
	fieldSint:   protowire.VarintType,
	fieldFloat:  protowire.Fixed64Type,
	fieldString: protowire.BytesType,
	fieldBool:   protowire.VarintType,
}

func fieldName(num protowire.Number) string {
	switch num {
	case fieldSeq:
		return "seq"
	case fieldUint:
		return "uint"
	case fieldSint:
		return "sint"
	case fieldFloat:
		return "float"
	case fieldString:
		return "string"
	case fieldBool:
		return "bool"
	default:
		return "unknown"
	}
}

// Marshal encodes v.
func Marshal(v atone.Serializable) ([]byte, error) {
	s := &Serializer{}
	if err := v.Serialize(s); err != nil {
		return nil, err
	}
	return s.buf, nil
}

// Serializer appends encoded values to an internal buffer.
type Serializer struct {
	buf []byte
}

// Bytes returns everything written so far.
func (s *Serializer) Bytes() []byte {
	return s.buf
}

// SerializeSeq buffers the elements so that sequences of unknown length can
// be written with their count up front.
func (s *Serializer) SerializeSeq(length int) (atone.SeqSerializer, error) {
	return &seqSerializer{parent: s, declared: length}, nil
}

type seqSerializer struct {
	parent   *Serializer
	body     Serializer
	declared int
	count    int
}

func (q *seqSerializer) SerializeElement(v any) error {
	q.count++
	if handled, err := atone.SerializeNested(&q.body, v); handled {
		return err
	}
	val, err := scalar.Of(v)
	if err != nil {
		return err
	}
	q.body.buf = appendScalar(q.body.buf, val)
	return nil
}

func (q *seqSerializer) End() error {
	if q.declared >= 0 && q.declared != q.count {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("sequence declared %d elements but wrote %d", q.declared, q.count).
			Build()
	}
	payload := make([]byte, 0, protowire.SizeVarint(uint64(q.count))+len(q.body.buf))
	payload = protowire.AppendVarint(payload, uint64(q.count))
	payload = append(payload, q.body.buf...)

	q.parent.buf = protowire.AppendTag(q.parent.buf, fieldSeq, protowire.BytesType)
	q.parent.buf = protowire.AppendBytes(q.parent.buf, payload)
	return nil
}

func appendScalar(b []byte, val scalar.Value) []byte {
	switch val.Kind {
	case scalar.Bool:
		b = protowire.AppendTag(b, fieldBool, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeBool(val.Bool))
	case scalar.Int:
		b = protowire.AppendTag(b, fieldSint, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeZigZag(val.Int))
	case scalar.Uint:
		b = protowire.AppendTag(b, fieldUint, protowire.VarintType)
		return protowire.AppendVarint(b, val.Uint)
	case scalar.Float:
		b = protowire.AppendTag(b, fieldFloat, protowire.Fixed64Type)
		return protowire.AppendFixed64(b, math.Float64bits(val.Float))
	default:
		b = protowire.AppendTag(b, fieldString, protowire.BytesType)
		return protowire.AppendString(b, val.Str)
	}
}
