package abi

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/vc"
)

// memoryModule is a module exporting one page of growable memory.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

const heapBase = 16

type harness struct {
	raw   api.Memory
	mem   *WazeroMemory
	alloc *BumpAllocator
	enc   *Encoder
	dec   *Decoder
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = r.Close(ctx) })

	mod, err := r.Instantiate(ctx, memoryModule)
	require.NoError(t, err)

	raw := mod.Memory()
	require.NotNil(t, raw)
	mem := NewWazeroMemory(raw)
	alloc := NewBumpAllocator(raw, heapBase)
	return &harness{
		raw:   raw,
		mem:   mem,
		alloc: alloc,
		enc:   NewEncoder(mem, alloc, cfg),
		dec:   NewDecoder(mem, cfg),
	}
}

func requireKind(t *testing.T, err error, kind errors.Kind) *errors.Error {
	t.Helper()
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind, "error: %v", err)
	return e
}

func TestEncodeListLayout(t *testing.T) {
	h := newHarness(t, Config{})

	ptr, n, err := h.enc.EncodeList(wit.U32{}, vc.FromSlice([]uint32{1, 2, 0xdeadbeef}))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), n)
	assert.Equal(t, uint32(heapBase), ptr)

	for i, want := range []uint32{1, 2, 0xdeadbeef} {
		got, err := h.mem.ReadU32(ptr + uint32(i)*4)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func roundTrip[T any](t *testing.T, elem wit.Type, in []T) {
	t.Helper()
	h := newHarness(t, Config{})

	ptr, n, err := h.enc.EncodeList(elem, vc.FromSlice(in))
	require.NoError(t, err)
	require.Equal(t, uint32(len(in)), n)

	var out vc.Vc[T]
	require.NoError(t, h.dec.DecodeList(elem, ptr, n, &out))
	assert.Equal(t, in, out.Slice())
}

func TestRoundTripPrimitives(t *testing.T) {
	t.Run("bool", func(t *testing.T) { roundTrip(t, wit.Bool{}, []bool{true, false, true}) })
	t.Run("u8", func(t *testing.T) { roundTrip(t, wit.U8{}, []uint8{0, 255}) })
	t.Run("s8", func(t *testing.T) { roundTrip(t, wit.S8{}, []int8{-128, 127}) })
	t.Run("u16", func(t *testing.T) { roundTrip(t, wit.U16{}, []uint16{1, math.MaxUint16}) })
	t.Run("s16", func(t *testing.T) { roundTrip(t, wit.S16{}, []int16{math.MinInt16, 5}) })
	t.Run("s32", func(t *testing.T) { roundTrip(t, wit.S32{}, []int32{math.MinInt32, -1}) })
	t.Run("u64", func(t *testing.T) { roundTrip(t, wit.U64{}, []uint64{math.MaxUint64}) })
	t.Run("s64", func(t *testing.T) { roundTrip(t, wit.S64{}, []int64{math.MinInt64, math.MaxInt64}) })
	t.Run("f32", func(t *testing.T) { roundTrip(t, wit.F32{}, []float32{1.5, -0.25}) })
	t.Run("f64", func(t *testing.T) { roundTrip(t, wit.F64{}, []float64{math.Pi, math.Inf(-1)}) })
	t.Run("char", func(t *testing.T) { roundTrip(t, wit.Char{}, []rune{'a', '€', 0x10FFFF}) })
	t.Run("string", func(t *testing.T) { roundTrip(t, wit.String{}, []string{"hello", "", "wörld"}) })
	t.Run("empty", func(t *testing.T) { roundTrip(t, wit.U32{}, []uint32{}) })
}

func TestRoundTripNested(t *testing.T) {
	h := newHarness(t, Config{})
	elem := ListOf(wit.U16{})

	in := vc.New[vc.Vc[uint16]]()
	in.Push(*vc.FromSlice([]uint16{1, 2}))
	in.Push(*vc.New[uint16]())
	in.Push(*vc.FromSlice([]uint16{3}))

	ptr, n, err := h.enc.EncodeList(elem, in)
	require.NoError(t, err)
	require.Equal(t, uint32(3), n)

	innerLen, err := h.mem.ReadU32(ptr + 8 + 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), innerLen)

	var out vc.Vc[vc.Vc[uint16]]
	require.NoError(t, h.dec.DecodeList(elem, ptr, n, &out))
	require.Equal(t, 3, out.Len())
	assert.Equal(t, []uint16{1, 2}, out.At(0).Slice())
	assert.Equal(t, 0, out.At(1).Len())
	assert.Equal(t, []uint16{3}, out.At(2).Slice())
}

func TestEncodeWhileAtoning(t *testing.T) {
	h := newHarness(t, Config{})
	v := vc.New[uint32]()
	for i := uint32(10); i < 18; i++ {
		v.Push(i)
	}
	require.True(t, v.IsAtoning())

	ptr, n, err := h.enc.EncodeList(wit.U32{}, v)
	require.NoError(t, err)

	out, err := vc.Decode[uint32](h.dec.reader(wit.U32{}, ptr, n))
	require.NoError(t, err)
	assert.Equal(t, v.Slice(), out.Slice())
}

// streaming writes an unknown number of elements.
type streaming []uint32

func (s streaming) Serialize(ser atone.Serializer) error {
	q, err := ser.SerializeSeq(atone.UnknownLen)
	if err != nil {
		return err
	}
	for i := range s {
		if err := q.SerializeElement(&s[i]); err != nil {
			return err
		}
	}
	return q.End()
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		elem wit.Type
		v    atone.Serializable
		kind errors.Kind
	}{
		{"unknown length", wit.U32{}, streaming{1}, errors.KindUnsupported},
		{"u8 overflow", wit.U8{}, vc.FromSlice([]int{1, 256}), errors.KindOverflow},
		{"negative unsigned", wit.U32{}, vc.FromSlice([]int{-1}), errors.KindOverflow},
		{"s8 overflow", wit.S8{}, vc.FromSlice([]int{-129}), errors.KindOverflow},
		{"string into u32", wit.U32{}, vc.FromSlice([]string{"x"}), errors.KindTypeMismatch},
		{"scalar into list", ListOf(wit.U32{}), vc.FromSlice([]uint32{1}), errors.KindTypeMismatch},
		{"surrogate char", wit.Char{}, vc.FromSlice([]rune{0xD800}), errors.KindInvalidData},
		{"invalid utf8", wit.String{}, vc.FromSlice([]string{"\xff"}), errors.KindInvalidData},
		{"unsupported element", &wit.TypeDef{Kind: &wit.Record{}}, vc.FromSlice([]int{1}), errors.KindUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			_, _, err := h.enc.EncodeList(tt.elem, tt.v)
			require.Error(t, err)
			e := requireKind(t, err, tt.kind)
			assert.Equal(t, errors.PhaseEncode, e.Phase)
		})
	}
}

func TestEncodeFailureFreesAllocations(t *testing.T) {
	h := newHarness(t, Config{})
	_, _, err := h.enc.EncodeList(wit.String{}, vc.FromSlice([]string{"a", "\xff"}))
	e := requireKind(t, err, errors.KindInvalidData)
	assert.Equal(t, []string{"[1]"}, e.Path)
	assert.Equal(t, uint32(heapBase), h.alloc.Offset())
}

func TestEncodeFailureRewindsPaddedAllocations(t *testing.T) {
	h := newHarness(t, Config{})
	elem := ListOf(wit.String{})

	in := vc.New[vc.Vc[string]]()
	in.Push(*vc.FromSlice([]string{"a"}))
	in.Push(*vc.FromSlice([]string{"\xff"}))

	// "a" ends on an odd offset, so the next list is preceded by padding.
	_, _, err := h.enc.EncodeList(elem, in)
	e := requireKind(t, err, errors.KindInvalidData)
	assert.Equal(t, []string{"[1]", "[0]"}, e.Path)
	assert.Equal(t, uint32(heapBase), h.alloc.Offset())

	ptr, _, err := h.enc.EncodeList(wit.U32{}, vc.FromSlice([]uint32{1}))
	require.NoError(t, err)
	assert.Equal(t, uint32(heapBase), ptr)
}

// freeOnly hides the Rewinder methods of a BumpAllocator.
type freeOnly struct {
	a *BumpAllocator
}

func (f freeOnly) Alloc(size, align uint32) (uint32, error) { return f.a.Alloc(size, align) }
func (f freeOnly) Free(ptr, size, align uint32) { f.a.Free(ptr, size, align) }

func TestEncodeFailureFreesWithoutRewinder(t *testing.T) {
	h := newHarness(t, Config{})
	enc := NewEncoder(h.mem, freeOnly{h.alloc}, Config{})

	_, _, err := enc.EncodeList(wit.String{}, vc.FromSlice([]string{"ab", "\xff"}))
	requireKind(t, err, errors.KindInvalidData)
	assert.Equal(t, uint32(heapBase), h.alloc.Offset())
}

func TestBumpAllocatorRewind(t *testing.T) {
	h := newHarness(t, Config{})
	mark := h.alloc.Mark()

	_, err := h.alloc.Alloc(3, 1)
	require.NoError(t, err)
	_, err = h.alloc.Alloc(8, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(heapBase+16), h.alloc.Offset())

	h.alloc.Rewind(mark + 100)
	assert.Equal(t, uint32(heapBase+16), h.alloc.Offset(), "marks past the offset are ignored")

	h.alloc.Rewind(mark)
	assert.Equal(t, mark, h.alloc.Offset())
}

func TestMaxListLength(t *testing.T) {
	h := newHarness(t, Config{MaxListLength: 2})

	_, _, err := h.enc.EncodeList(wit.U8{}, vc.FromSlice([]uint8{1, 2, 3}))
	requireKind(t, err, errors.KindOverflow)

	var out vc.Vc[uint8]
	err = h.dec.DecodeList(wit.U8{}, heapBase, 3, &out)
	requireKind(t, err, errors.KindOverflow)
}

func TestDecodeClaimedLengthIsAHint(t *testing.T) {
	h := newHarness(t, Config{})
	// Only two elements fit before the end of memory.
	ptr := h.mem.Size() - 8
	require.NoError(t, h.mem.WriteU32(ptr, 7))
	require.NoError(t, h.mem.WriteU32(ptr+4, 8))

	var out vc.Vc[uint32]
	err := h.dec.DecodeList(wit.U32{}, ptr, 1<<20, &out)
	e := requireKind(t, err, errors.KindOutOfBounds)
	assert.Equal(t, []string{"[2]"}, e.Path)
	assert.Equal(t, 0, out.Len())

	v := vc.FromSlice([]uint32{1})
	err = h.dec.DecodeListInPlace(wit.U32{}, ptr, 1<<20, v)
	requireKind(t, err, errors.KindOutOfBounds)
	assert.Equal(t, []uint32{7, 8}, v.Slice())
	assert.LessOrEqual(t, v.Cap(), atone.MaxPreallocElements)
}

func TestDecodeShapeMismatch(t *testing.T) {
	h := newHarness(t, Config{})
	ptr, n, err := h.enc.EncodeList(wit.U32{}, vc.FromSlice([]uint32{1}))
	require.NoError(t, err)

	var nested vc.Vc[vc.Vc[uint32]]
	err = h.dec.DecodeList(wit.U32{}, ptr, n, &nested)
	requireKind(t, err, errors.KindTypeMismatch)

	var flat vc.Vc[uint32]
	err = h.dec.DecodeList(ListOf(wit.U32{}), ptr, n, &flat)
	requireKind(t, err, errors.KindTypeMismatch)
}

func TestDecodeInPlace(t *testing.T) {
	h := newHarness(t, Config{})
	ptr, n, err := h.enc.EncodeList(wit.S64{}, vc.FromSlice([]int64{4, 5, 6}))
	require.NoError(t, err)

	short := vc.FromSlice([]int64{0})
	require.NoError(t, h.dec.DecodeListInPlace(wit.S64{}, ptr, n, short))
	assert.Equal(t, []int64{4, 5, 6}, short.Slice())

	long := vc.FromSlice([]int64{9, 9, 9, 9, 9})
	require.NoError(t, h.dec.DecodeListInPlace(wit.S64{}, ptr, n, long))
	assert.Equal(t, []int64{4, 5, 6}, long.Slice())
}

func TestBumpAllocatorGrows(t *testing.T) {
	h := newHarness(t, Config{})
	require.Equal(t, uint32(pageSize), h.raw.Size())

	ptr, err := h.alloc.Alloc(100000, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(heapBase), ptr)
	assert.GreaterOrEqual(t, h.raw.Size(), uint32(heapBase+100000))

	next, err := h.alloc.Alloc(1, 8)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), next%8)

	h.alloc.Free(next, 1, 8)
	assert.Equal(t, next, h.alloc.Offset())
}

func TestLayout(t *testing.T) {
	tests := []struct {
		t    wit.Type
		name string
		info Info
	}{
		{wit.Bool{}, "bool", Info{1, 1}},
		{wit.S16{}, "s16", Info{2, 2}},
		{wit.Char{}, "char", Info{4, 4}},
		{wit.F64{}, "f64", Info{8, 8}},
		{wit.String{}, "string", Info{8, 4}},
		{ListOf(wit.U8{}), "list<u8>", Info{8, 4}},
		{ListOf(ListOf(wit.String{})), "list<list<string>>", Info{8, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Layout(tt.t)
			require.NoError(t, err)
			assert.Equal(t, tt.info, info)
			assert.Equal(t, tt.name, TypeName(tt.t))
		})
	}
}

func TestWazeroMemoryBounds(t *testing.T) {
	h := newHarness(t, Config{})
	end := h.mem.Size()

	_, err := h.mem.ReadU32(end - 2)
	requireKind(t, err, errors.KindOutOfBounds)
	requireKind(t, h.mem.WriteU64(end-4, 1), errors.KindOutOfBounds)

	require.NoError(t, h.mem.WriteU16(0, 0xbeef))
	v, err := h.mem.ReadU16(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xbeef), v)
}
