package abi

import (
	"math"
	"unicode/utf8"
	"unsafe"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/internal/scalar"
)

// Encoder lowers sequences into canonical ABI lists in linear memory.
type Encoder struct {
	mem   Memory
	alloc Allocator
	cfg   Config
}

// NewEncoder returns an Encoder writing to mem and allocating with alloc.
func NewEncoder(mem Memory, alloc Allocator, cfg Config) *Encoder {
	return &Encoder{mem: mem, alloc: alloc, cfg: cfg}
}

// EncodeList writes v as a list<elem> and returns its data pointer and
// element count. On failure every block allocated for v is freed; an
// allocator implementing Rewinder is rewound to where encoding started.
func (e *Encoder) EncodeList(elem wit.Type, v atone.Serializable) (ptr, length uint32, err error) {
	allocs := NewAllocationList()
	defer allocs.Release()

	rw, canRewind := e.alloc.(Rewinder)
	var mark uint32
	if canRewind {
		mark = rw.Mark()
	}

	w := &listWriter{e: e, allocs: allocs, elem: elem, out: func(p, n uint32) error {
		ptr, length = p, n
		return nil
	}}
	if err := v.Serialize(w); err != nil {
		if canRewind {
			rw.Rewind(mark)
		} else {
			allocs.Free(e.alloc)
		}
		return 0, 0, err
	}
	return ptr, length, nil
}

// listWriter is the Serializer for one list<elem> value; out receives the
// data pointer and length once the list is complete.
type listWriter struct {
	e      *Encoder
	allocs *AllocationList
	elem   wit.Type
	out    func(ptr, n uint32) error
}

func (w *listWriter) SerializeSeq(length int) (atone.SeqSerializer, error) {
	if length < 0 {
		return nil, errors.Unsupported(errors.PhaseEncode, "list of unknown length")
	}
	info, err := Layout(w.elem)
	if err != nil {
		return nil, err
	}
	if uint64(length) > uint64(w.e.cfg.maxListLength()) {
		return nil, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("list length %d exceeds maximum %d", length, w.e.cfg.maxListLength()).
			Build()
	}
	n := uint32(length)

	q := &seqWriter{w: w, info: info, n: n}
	if n == 0 {
		return q, nil
	}

	size, ok := safeMulU32(n, info.Size)
	if !ok || size > MaxAlloc {
		return nil, errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("list data size overflow: %d * %d", n, info.Size).
			Build()
	}
	q.ptr, err = w.e.alloc.Alloc(size, info.Align)
	if err != nil {
		return nil, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("failed to allocate %d bytes (align %d) for list data", size, info.Align).
			Cause(err).
			Build()
	}
	w.allocs.Add(q.ptr, size, info.Align)
	return q, nil
}

type seqWriter struct {
	w    *listWriter
	info Info
	ptr  uint32
	n    uint32
	i    uint32
}

func (q *seqWriter) SerializeElement(v any) error {
	if q.i >= q.n {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("more elements than the declared %d", q.n).
			Build()
	}
	slot := q.ptr + q.i*q.info.Size
	q.i++

	e := q.w.e
	if inner, ok := listElem(q.w.elem); ok {
		nested := &listWriter{e: e, allocs: q.w.allocs, elem: inner, out: func(p, n uint32) error {
			if err := e.mem.WriteU32(slot, p); err != nil {
				return err
			}
			return e.mem.WriteU32(slot+4, n)
		}}
		handled, err := atone.SerializeNested(nested, v)
		if !handled {
			return errors.TypeMismatch(errors.PhaseEncode, nil, scalar.TypeName(v), TypeName(q.w.elem))
		}
		return err
	}

	val, err := scalar.Of(v)
	if err != nil {
		return err
	}
	return e.writeScalar(slot, q.w.elem, val, q.w.allocs)
}

func (q *seqWriter) End() error {
	if q.i != q.n {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("list declared %d elements but wrote %d", q.n, q.i).
			Build()
	}
	return q.w.out(q.ptr, q.n)
}

func (e *Encoder) writeScalar(addr uint32, t wit.Type, val scalar.Value, allocs *AllocationList) error {
	mismatch := func() error {
		return errors.TypeMismatch(errors.PhaseEncode, nil, val.Kind.String(), TypeName(t))
	}

	switch t.(type) {
	case wit.Bool:
		if val.Kind != scalar.Bool {
			return mismatch()
		}
		var b uint8
		if val.Bool {
			b = 1
		}
		return e.mem.WriteU8(addr, b)

	case wit.U8, wit.U16, wit.U32, wit.U64:
		if val.Kind == scalar.Int && val.Int < 0 {
			return errors.Overflow(errors.PhaseEncode, nil, val.Int, TypeName(t))
		}
		u, ok := asUint(val)
		if !ok {
			return mismatch()
		}
		return e.writeUint(addr, t, u)

	case wit.S8, wit.S16, wit.S32, wit.S64:
		if val.Kind == scalar.Uint && val.Uint > math.MaxInt64 {
			return errors.Overflow(errors.PhaseEncode, nil, val.Uint, TypeName(t))
		}
		i, ok := asInt(val)
		if !ok {
			return mismatch()
		}
		return e.writeInt(addr, t, i)

	case wit.F32:
		f, ok := asFloat(val)
		if !ok {
			return mismatch()
		}
		bits := math.Float32bits(float32(f))
		if f != f {
			bits = canonicalNaN32
		}
		return e.mem.WriteU32(addr, bits)

	case wit.F64:
		f, ok := asFloat(val)
		if !ok {
			return mismatch()
		}
		bits := math.Float64bits(f)
		if f != f {
			bits = canonicalNaN64
		}
		return e.mem.WriteU64(addr, bits)

	case wit.Char:
		i, ok := asInt(val)
		if !ok {
			return mismatch()
		}
		if !validChar(i) {
			return errors.InvalidData(errors.PhaseEncode, nil, "invalid char code point")
		}
		return e.mem.WriteU32(addr, uint32(i))

	case wit.String:
		if val.Kind != scalar.String {
			return mismatch()
		}
		return e.writeString(addr, val.Str, allocs)
	}
	return errors.Unsupported(errors.PhaseEncode, "list element type "+TypeName(t))
}

func (e *Encoder) writeUint(addr uint32, t wit.Type, u uint64) error {
	var limit uint64
	switch t.(type) {
	case wit.U8:
		limit = math.MaxUint8
	case wit.U16:
		limit = math.MaxUint16
	case wit.U32:
		limit = math.MaxUint32
	default:
		return e.mem.WriteU64(addr, u)
	}
	if u > limit {
		return errors.Overflow(errors.PhaseEncode, nil, u, TypeName(t))
	}
	switch t.(type) {
	case wit.U8:
		return e.mem.WriteU8(addr, uint8(u))
	case wit.U16:
		return e.mem.WriteU16(addr, uint16(u))
	default:
		return e.mem.WriteU32(addr, uint32(u))
	}
}

func (e *Encoder) writeInt(addr uint32, t wit.Type, i int64) error {
	var lo, hi int64
	switch t.(type) {
	case wit.S8:
		lo, hi = math.MinInt8, math.MaxInt8
	case wit.S16:
		lo, hi = math.MinInt16, math.MaxInt16
	case wit.S32:
		lo, hi = math.MinInt32, math.MaxInt32
	default:
		return e.mem.WriteU64(addr, uint64(i))
	}
	if i < lo || i > hi {
		return errors.Overflow(errors.PhaseEncode, nil, i, TypeName(t))
	}
	switch t.(type) {
	case wit.S8:
		return e.mem.WriteU8(addr, uint8(int8(i)))
	case wit.S16:
		return e.mem.WriteU16(addr, uint16(int16(i)))
	default:
		return e.mem.WriteU32(addr, uint32(int32(i)))
	}
}

func (e *Encoder) writeString(addr uint32, s string, allocs *AllocationList) error {
	if !utf8.ValidString(s) {
		return errors.InvalidData(errors.PhaseEncode, nil, "string is not valid UTF-8")
	}
	n := uint32(len(s))
	if uint64(len(s)) > uint64(e.cfg.maxStringSize()) {
		return errors.New(errors.PhaseEncode, errors.KindOverflow).
			Detail("string size %d exceeds maximum %d", len(s), e.cfg.maxStringSize()).
			Build()
	}
	if n == 0 {
		// Empty string: ptr=0, len=0
		if err := e.mem.WriteU32(addr, 0); err != nil {
			return err
		}
		return e.mem.WriteU32(addr+4, 0)
	}

	ptr, err := e.alloc.Alloc(n, 1)
	if err != nil {
		return errors.New(errors.PhaseEncode, errors.KindAllocation).
			Detail("failed to allocate %d bytes for string data", n).
			Cause(err).
			Build()
	}
	allocs.Add(ptr, n, 1)

	// Write string bytes without allocation
	if err := e.mem.Write(ptr, unsafe.Slice(unsafe.StringData(s), len(s))); err != nil {
		return err
	}
	if err := e.mem.WriteU32(addr, ptr); err != nil {
		return err
	}
	return e.mem.WriteU32(addr+4, n)
}

func asUint(v scalar.Value) (uint64, bool) {
	switch v.Kind {
	case scalar.Uint:
		return v.Uint, true
	case scalar.Int:
		if v.Int >= 0 {
			return uint64(v.Int), true
		}
	}
	return 0, false
}

func asInt(v scalar.Value) (int64, bool) {
	switch v.Kind {
	case scalar.Int:
		return v.Int, true
	case scalar.Uint:
		if v.Uint <= math.MaxInt64 {
			return int64(v.Uint), true
		}
	}
	return 0, false
}

func asFloat(v scalar.Value) (float64, bool) {
	switch v.Kind {
	case scalar.Float:
		return v.Float, true
	case scalar.Int:
		return float64(v.Int), true
	case scalar.Uint:
		return float64(v.Uint), true
	}
	return 0, false
}
