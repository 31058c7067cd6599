// Package cbor encodes sequences as CBOR arrays (RFC 8949).
//
// Sequences of known length are written as definite-length arrays and
// sequences of unknown length as indefinite-length arrays terminated by a
// break. The array headers are handled here; scalar elements are encoded and
// decoded with fxamacker/cbor.
package cbor

import (
	"encoding/binary"
	"math"

	fxcbor "github.com/fxamacker/cbor/v2"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

const (
	majorArray = 4 << 5

	infoUint8      = 24
	infoUint16     = 25
	infoUint32     = 26
	infoUint64     = 27
	infoIndefinite = 31

	breakByte = 0xff
)

// DefaultMaxDepth bounds array nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

// Options configures encoding and decoding. The zero value uses the
// defaults.
type Options struct {
	// MaxDepth limits how deeply arrays may nest when decoding.
	MaxDepth int

	// Enc and Dec are passed to fxamacker/cbor for scalar elements.
	Enc fxcbor.EncOptions
	Dec fxcbor.DecOptions
}

var defaultEncMode, defaultDecMode = mustModes(Options{})

func mustModes(o Options) (fxcbor.EncMode, fxcbor.DecMode) {
	em, dm, err := o.modes()
	if err != nil {
		panic(err)
	}
	return em, dm
}

func (o Options) modes() (fxcbor.EncMode, fxcbor.DecMode, error) {
	em, err := o.Enc.EncMode()
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseEncode, errors.KindUnsupported, err, "cbor encoding options")
	}
	dm, err := o.Dec.DecMode()
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseDecode, errors.KindUnsupported, err, "cbor decoding options")
	}
	return em, dm, nil
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

// Marshal encodes v with the default options.
func Marshal(v atone.Serializable) ([]byte, error) {
	s := &Serializer{em: defaultEncMode}
	if err := v.Serialize(s); err != nil {
		return nil, err
	}
	return s.buf, nil
}

// Marshal encodes v with o.
func (o Options) Marshal(v atone.Serializable) ([]byte, error) {
	em, _, err := o.modes()
	if err != nil {
		return nil, err
	}
	s := &Serializer{em: em}
	if err := v.Serialize(s); err != nil {
		return nil, err
	}
	return s.buf, nil
}

// Serializer appends CBOR to an internal buffer.
type Serializer struct {
	em  fxcbor.EncMode
	buf []byte
}

// Bytes returns everything written so far.
func (s *Serializer) Bytes() []byte {
	return s.buf
}

func (s *Serializer) SerializeSeq(length int) (atone.SeqSerializer, error) {
	if length < 0 {
		s.buf = append(s.buf, majorArray|infoIndefinite)
	} else {
		s.buf = appendHead(s.buf, majorArray, uint64(length))
	}
	return &seqSerializer{s: s, declared: length}, nil
}

type seqSerializer struct {
	s        *Serializer
	declared int
	count    int
}

func (q *seqSerializer) SerializeElement(v any) error {
	q.count++
	if handled, err := atone.SerializeNested(q.s, v); handled {
		return err
	}
	val, err := scalar.Of(v)
	if err != nil {
		return err
	}
	b, err := q.s.em.Marshal(val.Native())
	if err != nil {
		return errors.New(errors.PhaseEncode, errors.KindUnsupported).
			GoType(scalar.TypeName(v)).
			Cause(err).
			Build()
	}
	q.s.buf = append(q.s.buf, b...)
	return nil
}

func (q *seqSerializer) End() error {
	if q.declared < 0 {
		q.s.buf = append(q.s.buf, breakByte)
		return nil
	}
	if q.count != q.declared {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("array declared %d elements but wrote %d", q.declared, q.count).
			Build()
	}
	return nil
}

// appendHead writes a data item head using the shortest argument encoding.
func appendHead(b []byte, major byte, n uint64) []byte {
	switch {
	case n < infoUint8:
		return append(b, major|byte(n))
	case n <= math.MaxUint8:
		return append(b, major|infoUint8, byte(n))
	case n <= math.MaxUint16:
		return binary.BigEndian.AppendUint16(append(b, major|infoUint16), uint16(n))
	case n <= math.MaxUint32:
		return binary.BigEndian.AppendUint32(append(b, major|infoUint32), uint32(n))
	default:
		return binary.BigEndian.AppendUint64(append(b, major|infoUint64), n)
	}
}

func majorName(b byte) string {
	switch b >> 5 {
	case 0:
		return "unsigned integer"
	case 1:
		return "negative integer"
	case 2:
		return "byte string"
	case 3:
		return "text string"
	case 4:
		return "array"
	case 5:
		return "map"
	case 6:
		return "tag"
	default:
		return "simple or float"
	}
}
