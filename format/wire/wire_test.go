package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
	"github.com/wippyai/atone/vc"
)

func requireKind(t *testing.T, err error, kind errors.Kind) *errors.Error {
	t.Helper()
	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, kind, e.Kind, "error: %v", err)
	return e
}

// seq hand-assembles a sequence with an arbitrary declared count.
func seq(count uint64, elems ...[]byte) []byte {
	payload := protowire.AppendVarint(nil, count)
	for _, e := range elems {
		payload = append(payload, e...)
	}
	b := protowire.AppendTag(nil, fieldSeq, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func uintElem(u uint64) []byte {
	b := protowire.AppendTag(nil, fieldUint, protowire.VarintType)
	return protowire.AppendVarint(b, u)
}

func TestMarshalLayout(t *testing.T) {
	data, err := Marshal(vc.FromSlice([]uint32{1, 300}))
	require.NoError(t, err)
	assert.Equal(t, seq(2, uintElem(1), uintElem(300)), data)

	data, err = Marshal(vc.New[uint32]())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0a, 0x01, 0x00}, data)
}

func TestRoundTrip(t *testing.T) {
	t.Run("ints", func(t *testing.T) {
		in := vc.FromSlice([]int{-1, 0, 1, math.MinInt64, math.MaxInt64})
		data, err := Marshal(in)
		require.NoError(t, err)

		var out vc.Vc[int]
		require.NoError(t, Unmarshal(data, &out))
		assert.Equal(t, in.Slice(), out.Slice())
	})

	t.Run("floats", func(t *testing.T) {
		in := vc.FromSlice([]float64{0, -2.5, math.Inf(1)})
		data, err := Marshal(in)
		require.NoError(t, err)

		var out vc.Vc[float64]
		require.NoError(t, Unmarshal(data, &out))
		assert.Equal(t, in.Slice(), out.Slice())
	})

	t.Run("strings and bools", func(t *testing.T) {
		in := vc.FromSlice([]any{"héllo", true, false, ""})
		data, err := Marshal(in)
		require.NoError(t, err)

		var out vc.Vc[any]
		require.NoError(t, Unmarshal(data, &out))
		assert.Equal(t, in.Slice(), out.Slice())
	})

	t.Run("nested", func(t *testing.T) {
		in := vc.New[vc.Vc[uint64]]()
		in.Push(*vc.FromSlice([]uint64{1}))
		in.Push(*vc.New[uint64]())
		in.Push(*vc.FromSlice([]uint64{2, 3}))
		data, err := Marshal(in)
		require.NoError(t, err)

		var out vc.Vc[vc.Vc[uint64]]
		require.NoError(t, Unmarshal(data, &out))
		require.Equal(t, 3, out.Len())
		assert.Equal(t, []uint64{1}, out.At(0).Slice())
		assert.Equal(t, 0, out.At(1).Len())
		assert.Equal(t, []uint64{2, 3}, out.At(2).Slice())
	})

	t.Run("atoning", func(t *testing.T) {
		in := vc.New[uint32]()
		for i := uint32(0); i < 8; i++ {
			in.Push(i)
		}
		require.True(t, in.IsAtoning())
		data, err := Marshal(in)
		require.NoError(t, err)

		out, err := vc.Decode[uint32](NewDeserializer(data))
		require.NoError(t, err)
		assert.Equal(t, in.Slice(), out.Slice())
	})
}

// streaming writes an unknown number of elements.
type streaming []uint64

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

func TestUnknownLengthCounted(t *testing.T) {
	data, err := Marshal(streaming{5, 6, 7})
	require.NoError(t, err)
	assert.Equal(t, seq(3, uintElem(5), uintElem(6), uintElem(7)), data)
}

func TestForgedCountClamped(t *testing.T) {
	data := seq(1<<40, uintElem(1))
	out, err := vc.Decode[uint32](NewDeserializer(data))
	requireKind(t, err, errors.KindInvalidData)
	assert.Nil(t, out)

	// The hint only ever drove a bounded reservation.
	v := vc.FromSlice([]uint32{9})
	err = UnmarshalInPlace(data, v)
	requireKind(t, err, errors.KindInvalidData)
	assert.LessOrEqual(t, v.Cap(), 2*atone.MaxPreallocElements)
}

func TestDecodeErrors(t *testing.T) {
	strElem := protowire.AppendString(protowire.AppendTag(nil, fieldString, protowire.BytesType), "x")
	good := seq(1, uintElem(1))

	tests := []struct {
		name  string
		input []byte
		kind  errors.Kind
	}{
		{"empty", nil, errors.KindInvalidData},
		{"scalar at top", uintElem(1), errors.KindTypeMismatch},
		{"truncated", good[:len(good)-1], errors.KindInvalidData},
		{"trailing", append(append([]byte{}, good...), 0x10, 0x01), errors.KindInvalidData},
		{"count too small", seq(0, uintElem(1)), errors.KindInvalidData},
		{"string element", seq(1, strElem), errors.KindTypeMismatch},
		{"nested where scalar expected", seq(1, seq(0)), errors.KindTypeMismatch},
		{"unknown field", append(protowire.AppendTag(nil, 9, protowire.VarintType), 0), errors.KindInvalidData},
		{"wrong wire type", protowire.AppendTag(nil, fieldSeq, protowire.VarintType), errors.KindInvalidData},
		{"overflow", seq(1, uintElem(1<<33)), errors.KindOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out vc.Vc[uint32]
			err := Unmarshal(tt.input, &out)
			require.Error(t, err)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestInPlace(t *testing.T) {
	v := vc.FromSlice([]uint32{7, 7, 7, 7})
	data, err := Marshal(vc.FromSlice([]uint32{1, 2}))
	require.NoError(t, err)
	require.NoError(t, UnmarshalInPlace(data, v))
	assert.Equal(t, []uint32{1, 2}, v.Slice())

	data, err = Marshal(vc.FromSlice([]uint32{3, 4, 5, 6, 7, 8}))
	require.NoError(t, err)
	require.NoError(t, UnmarshalInPlace(data, v))
	assert.Equal(t, []uint32{3, 4, 5, 6, 7, 8}, v.Slice())
}

func TestMaxDepth(t *testing.T) {
	data := seq(1, seq(1, seq(0)))

	d := Options{MaxDepth: 2}.NewDeserializer(data)
	_, err := vc.Decode[vc.Vc[vc.Vc[int]]](d)
	requireKind(t, err, errors.KindInvalidData)

	d = Options{}.NewDeserializer(data)
	out, err := vc.Decode[vc.Vc[vc.Vc[int]]](d)
	require.NoError(t, err)
	require.NoError(t, d.Finish())
	assert.Equal(t, 0, out.At(0).At(0).Len())
}

func TestDeclaredLengthMismatchOnEncode(t *testing.T) {
	s := &Serializer{}
	q, err := s.SerializeSeq(2)
	require.NoError(t, err)
	one := uint32(1)
	require.NoError(t, q.SerializeElement(&one))
	requireKind(t, q.End(), errors.KindInvalidData)
}

// reuseOnly can only decode into existing storage.
type reuseOnly struct {
	v vc.Vc[uint32]
}

func (r *reuseOnly) DeserializeInPlace(d atone.Deserializer) error {
	return r.v.DeserializeInPlace(d)
}

func TestInPlaceOnlyElementInFreshDecode(t *testing.T) {
	outer := vc.New[vc.Vc[uint32]]()
	outer.Push(*vc.FromSlice([]uint32{1}))
	data, err := Marshal(outer)
	require.NoError(t, err)

	var out vc.Vc[reuseOnly]
	err = Unmarshal(data, &out)
	e := requireKind(t, err, errors.KindUnsupported)
	assert.Equal(t, []string{"[0]"}, e.Path)

	in := vc.FromSlice([]reuseOnly{{}})
	require.NoError(t, UnmarshalInPlace(data, in))
	assert.Equal(t, []uint32{1}, in.At(0).v.Slice())
}
