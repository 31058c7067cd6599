// Package json encodes sequences as JSON arrays using json-iterator.
//
// JSON arrays carry no length prefix, so decoding never reports a size
// hint and a Vc grows as elements arrive. Elements are scalars (booleans,
// numbers, strings) or nested arrays.
package json

import (
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

var api = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes v as a JSON array.
func Marshal(v atone.Serializable) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	if err := v.Serialize(&Serializer{stream: stream}); err != nil {
		return nil, err
	}
	if stream.Error != nil {
		return nil, errors.Wrap(errors.PhaseEncode, errors.KindInvalidData, stream.Error, "json stream")
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

// MarshalElement encodes a single element, a scalar or a Serializable, as a
// standalone JSON document.
func MarshalElement(v any) ([]byte, error) {
	stream := api.BorrowStream(nil)
	defer api.ReturnStream(stream)

	if err := writeElement(stream, v); err != nil {
		return nil, err
	}
	out := make([]byte, len(stream.Buffer()))
	copy(out, stream.Buffer())
	return out, nil
}

// Encoder writes JSON arrays to an io.Writer.
type Encoder struct {
	stream *jsoniter.Stream
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{stream: jsoniter.NewStream(api, w, 512)}
}

// Encode writes v followed by a newline and flushes.
func (e *Encoder) Encode(v atone.Serializable) error {
	if err := v.Serialize(&Serializer{stream: e.stream}); err != nil {
		return err
	}
	e.stream.WriteRaw("\n")
	if e.stream.Error != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindIO, e.stream.Error, "json stream")
	}
	if err := e.stream.Flush(); err != nil {
		return errors.Wrap(errors.PhaseEncode, errors.KindIO, err, "flush")
	}
	return nil
}

// Serializer writes sequences to a json-iterator stream.
type Serializer struct {
	stream *jsoniter.Stream
}

// NewSerializer returns a Serializer over stream.
func NewSerializer(stream *jsoniter.Stream) *Serializer {
	return &Serializer{stream: stream}
}

func (s *Serializer) SerializeSeq(int) (atone.SeqSerializer, error) {
	s.stream.WriteArrayStart()
	return &seqSerializer{stream: s.stream, first: true}, nil
}

type seqSerializer struct {
	stream *jsoniter.Stream
	first  bool
}

func (q *seqSerializer) SerializeElement(v any) error {
	if !q.first {
		q.stream.WriteMore()
	}
	q.first = false
	return writeElement(q.stream, v)
}

func (q *seqSerializer) End() error {
	q.stream.WriteArrayEnd()
	return nil
}

func writeElement(stream *jsoniter.Stream, v any) error {
	if handled, err := atone.SerializeNested(&Serializer{stream: stream}, v); handled {
		return err
	}

	val, err := scalar.Of(v)
	if err != nil {
		return err
	}
	switch val.Kind {
	case scalar.Bool:
		stream.WriteBool(val.Bool)
	case scalar.Int:
		stream.WriteInt64(val.Int)
	case scalar.Uint:
		stream.WriteUint64(val.Uint)
	case scalar.Float:
		stream.WriteFloat64(val.Float)
	case scalar.String:
		stream.WriteString(val.Str)
	}
	if stream.Error != nil {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			GoType(scalar.TypeName(v)).
			Cause(stream.Error).
			Build()
	}
	return nil
}
