package cbor

import (
	"testing"

	fxcbor "github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

func TestMarshal(t *testing.T) {
	tests := []struct {
		name string
		v    atone.Serializable
		want []byte
	}{
		{"empty", vc.New[uint32](), []byte{0x80}},
		{"small", vc.FromSlice([]uint32{1, 2, 3}), []byte{0x83, 0x01, 0x02, 0x03}},
		{"negative", vc.FromSlice([]int{-1}), []byte{0x81, 0x20}},
		{"text", vc.FromSlice([]string{"a"}), []byte{0x81, 0x61, 'a'}},
		{"bool", vc.FromSlice([]bool{true, false}), []byte{0x82, 0xf5, 0xf4}},
		{"indefinite", streaming{1, 2}, []byte{0x9f, 0x01, 0x02, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, data)
		})
	}
}

func TestLongArrayHead(t *testing.T) {
	v := vc.New[uint32]()
	for i := 0; i < 300; i++ {
		v.Push(0)
	}
	data, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x99, 0x01, 0x2c}, data[:3])
	assert.Len(t, data, 303)

	out, err := vc.Decode[uint32](NewDeserializer(data))
	require.NoError(t, err)
	assert.Equal(t, 300, out.Len())
}

func TestCompatibleWithSlices(t *testing.T) {
	plain := []uint32{1, 500, 70000}
	fromSlice, err := fxcbor.Marshal(plain)
	require.NoError(t, err)

	fromVc, err := Marshal(vc.FromSlice(plain))
	require.NoError(t, err)
	assert.Equal(t, fromSlice, fromVc)

	var out vc.Vc[uint32]
	require.NoError(t, Unmarshal(fromSlice, &out))
	assert.Equal(t, plain, out.Slice())

	var back []uint32
	require.NoError(t, fxcbor.Unmarshal(fromVc, &back))
	assert.Equal(t, plain, back)
}

func TestDecodeAny(t *testing.T) {
	data, err := fxcbor.Marshal([]any{uint64(1), int64(-2), "a", true, nil, 1.5})
	require.NoError(t, err)

	var out vc.Vc[any]
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, []any{uint64(1), int64(-2), "a", true, nil, 1.5}, out.Slice())
}

func TestRoundTripNested(t *testing.T) {
	in := vc.New[vc.Vc[string]]()
	in.Push(*vc.FromSlice([]string{"x", "y"}))
	in.Push(*vc.New[string]())
	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x82, 0x82, 0x61, 'x', 0x61, 'y', 0x80}, data)

	var out vc.Vc[vc.Vc[string]]
	require.NoError(t, Unmarshal(data, &out))
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []string{"x", "y"}, out.At(0).Slice())
	assert.Equal(t, 0, out.At(1).Len())
}

func TestIndefiniteDecode(t *testing.T) {
	d := NewDeserializer([]byte{0x9f, 0x01, 0x9f, 0xff, 0xff})
	_, err := vc.Decode[uint32](d)
	requireKind(t, err, errors.KindTypeMismatch)

	var out vc.Vc[uint32]
	require.NoError(t, Unmarshal([]byte{0x9f, 0x05, 0x06, 0xff}, &out))
	assert.Equal(t, []uint32{5, 6}, out.Slice())
}

func TestForgedCountIsOnlyAHint(t *testing.T) {
	data := []byte{0x9b, 0, 0, 0x01, 0, 0, 0, 0, 0, 0x01}

	_, err := vc.Decode[uint32](NewDeserializer(data))
	requireKind(t, err, errors.KindInvalidData)

	v := vc.FromSlice([]uint32{9})
	err = UnmarshalInPlace(data, v)
	requireKind(t, err, errors.KindInvalidData)
	assert.LessOrEqual(t, v.Cap(), 2*atone.MaxPreallocElements)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		kind  errors.Kind
	}{
		{"empty", nil, errors.KindInvalidData},
		{"uint at top", []byte{0x01}, errors.KindTypeMismatch},
		{"map at top", []byte{0xa0}, errors.KindTypeMismatch},
		{"truncated", []byte{0x82, 0x01}, errors.KindInvalidData},
		{"truncated head", []byte{0x99, 0x01}, errors.KindInvalidData},
		{"reserved head", []byte{0x9c}, errors.KindInvalidData},
		{"trailing", []byte{0x80, 0x00}, errors.KindInvalidData},
		{"text element", []byte{0x81, 0x61, 'x'}, errors.KindTypeMismatch},
		{"array element", []byte{0x81, 0x80}, errors.KindTypeMismatch},
		{"null element", []byte{0x81, 0xf6}, errors.KindTypeMismatch},
		{"overflow", []byte{0x81, 0x1b, 0, 0, 0, 0x01, 0, 0, 0, 0}, errors.KindOverflow},
		{"bignum", []byte{0x81, 0x3b, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, errors.KindOverflow},
		{"stray break", []byte{0x81, 0xff}, errors.KindInvalidData},
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
	v := vc.FromSlice([]uint32{7, 7, 7})
	require.NoError(t, UnmarshalInPlace([]byte{0x81, 0x01}, v))
	assert.Equal(t, []uint32{1}, v.Slice())

	require.NoError(t, UnmarshalInPlace([]byte{0x9f, 0x02, 0x03, 0x04, 0xff}, v))
	assert.Equal(t, []uint32{2, 3, 4}, v.Slice())
}

func TestOptions(t *testing.T) {
	o := Options{Enc: fxcbor.EncOptions{ShortestFloat: fxcbor.ShortestFloat16}}
	data, err := o.Marshal(vc.FromSlice([]float64{1.5}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0xf9, 0x3e, 0x00}, data)

	d, err := Options{MaxDepth: 1}.NewDeserializer([]byte{0x81, 0x80})
	require.NoError(t, err)
	_, err = vc.Decode[vc.Vc[uint32]](d)
	requireKind(t, err, errors.KindInvalidData)

	_, err = Options{Enc: fxcbor.EncOptions{ShortestFloat: 99}}.Marshal(vc.New[int]())
	requireKind(t, err, errors.KindUnsupported)
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
