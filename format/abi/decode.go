package abi

import (
	"math"
	"unicode/utf8"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// Decoder lifts canonical ABI lists out of linear memory.
type Decoder struct {
	mem Memory
	cfg Config
}

// NewDecoder returns a Decoder reading from mem.
func NewDecoder(mem Memory, cfg Config) *Decoder {
	return &Decoder{mem: mem, cfg: cfg}
}

// DecodeList decodes the list<elem> at ptr holding length elements into v.
// length is whatever the guest claimed; it is bounded by
// Config.MaxListLength and only used as a size hint.
func (d *Decoder) DecodeList(elem wit.Type, ptr, length uint32, v atone.Deserializable) error {
	return v.Deserialize(d.reader(elem, ptr, length))
}

// DecodeListInPlace is DecodeList reusing v's existing elements.
func (d *Decoder) DecodeListInPlace(elem wit.Type, ptr, length uint32, v atone.InPlaceDeserializable) error {
	return v.DeserializeInPlace(d.reader(elem, ptr, length))
}

func (d *Decoder) reader(elem wit.Type, ptr, length uint32) *listReader {
	return &listReader{d: d, elem: elem, ptr: ptr, n: length}
}

// listReader is the Deserializer positioned on one list<elem> value.
type listReader struct {
	d    *Decoder
	elem wit.Type
	ptr  uint32
	n    uint32
}

func (r *listReader) DeserializeSeq(v atone.SeqVisitor) error {
	info, err := Layout(r.elem)
	if err != nil {
		return errors.Unsupported(errors.PhaseDecode, "list element type "+TypeName(r.elem))
	}
	if r.n > r.d.cfg.maxListLength() {
		return errors.New(errors.PhaseDecode, errors.KindOverflow).
			WireType(TypeName(ListOf(r.elem))).
			Detail("list length %d exceeds maximum %d", r.n, r.d.cfg.maxListLength()).
			Build()
	}

	// Validate address range doesn't overflow
	total, ok := safeMulU32(r.n, info.Size)
	if !ok {
		return errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("list data size overflow").
			Build()
	}
	if _, ok := safeAddU32(r.ptr, total); !ok {
		return errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("list data address range overflow").
			Build()
	}

	seq := &seqReader{r: r, info: info}
	if err := v.VisitSeq(seq); err != nil {
		return err
	}
	if !seq.done {
		return errors.InvalidData(errors.PhaseDecode, nil, "list not consumed to its end")
	}
	return nil
}

type seqReader struct {
	r    *listReader
	info Info
	i    uint32
	done bool
}

// SizeHint is the guest-claimed number of elements left.
func (s *seqReader) SizeHint() (int, bool) {
	return int(s.r.n - s.i), true
}

func (s *seqReader) NextElement(dst any) (bool, error) {
	return s.next(dst, false)
}

func (s *seqReader) NextElementInPlace(dst any) (bool, error) {
	return s.next(dst, true)
}

func (s *seqReader) next(dst any, inPlace bool) (bool, error) {
	if s.done || s.i == s.r.n {
		s.done = true
		return false, nil
	}
	slot := s.r.ptr + s.i*s.info.Size
	s.i++

	d := s.r.d
	if inner, ok := listElem(s.r.elem); ok {
		ptr, err := d.mem.ReadU32(slot)
		if err != nil {
			return false, err
		}
		n, err := d.mem.ReadU32(slot + 4)
		if err != nil {
			return false, err
		}
		handled, err := atone.DeserializeNested(d.reader(inner, ptr, n), dst, inPlace)
		if !handled {
			return false, errors.TypeMismatch(errors.PhaseDecode, nil, scalar.TypeName(dst), TypeName(s.r.elem))
		}
		return true, err
	}

	if atone.Describes(dst, inPlace) {
		return false, errors.NotASequence(TypeName(s.r.elem))
	}
	val, err := d.readScalar(slot, s.r.elem)
	if err != nil {
		return false, err
	}
	return true, scalar.Assign(dst, val)
}

func (d *Decoder) readScalar(addr uint32, t wit.Type) (scalar.Value, error) {
	switch t.(type) {
	case wit.Bool:
		b, err := d.mem.ReadU8(addr)
		return scalar.BoolValue(b != 0), err
	case wit.U8:
		b, err := d.mem.ReadU8(addr)
		return scalar.UintValue(uint64(b)), err
	case wit.S8:
		b, err := d.mem.ReadU8(addr)
		return scalar.IntValue(int64(int8(b))), err
	case wit.U16:
		h, err := d.mem.ReadU16(addr)
		return scalar.UintValue(uint64(h)), err
	case wit.S16:
		h, err := d.mem.ReadU16(addr)
		return scalar.IntValue(int64(int16(h))), err
	case wit.U32:
		w, err := d.mem.ReadU32(addr)
		return scalar.UintValue(uint64(w)), err
	case wit.S32:
		w, err := d.mem.ReadU32(addr)
		return scalar.IntValue(int64(int32(w))), err
	case wit.U64:
		q, err := d.mem.ReadU64(addr)
		return scalar.UintValue(q), err
	case wit.S64:
		q, err := d.mem.ReadU64(addr)
		return scalar.IntValue(int64(q)), err
	case wit.F32:
		w, err := d.mem.ReadU32(addr)
		return scalar.FloatValue(float64(math.Float32frombits(w))), err
	case wit.F64:
		q, err := d.mem.ReadU64(addr)
		return scalar.FloatValue(math.Float64frombits(q)), err
	case wit.Char:
		w, err := d.mem.ReadU32(addr)
		if err != nil {
			return scalar.Value{}, err
		}
		if !validChar(int64(w)) {
			return scalar.Value{}, errors.InvalidData(errors.PhaseDecode, nil, "invalid char code point")
		}
		return scalar.IntValue(int64(w)), nil
	case wit.String:
		s, err := d.readString(addr)
		return scalar.StringValue(s), err
	}
	return scalar.Value{}, errors.Unsupported(errors.PhaseDecode, "list element type "+TypeName(t))
}

func (d *Decoder) readString(addr uint32) (string, error) {
	ptr, err := d.mem.ReadU32(addr)
	if err != nil {
		return "", err
	}
	n, err := d.mem.ReadU32(addr + 4)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	if n > d.cfg.maxStringSize() {
		return "", errors.New(errors.PhaseDecode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", n, d.cfg.maxStringSize()).
			Build()
	}
	data, err := d.mem.Read(ptr, n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.InvalidData(errors.PhaseDecode, nil, "string is not valid UTF-8")
	}
	return string(data), nil
}
