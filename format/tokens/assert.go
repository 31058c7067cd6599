package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/atone"
)

// AssertSerialize fails t unless v serializes to exactly want.
func AssertSerialize(t testing.TB, v atone.Serializable, want ...Token) {
	t.Helper()
	got, err := Serialize(v)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// AssertDeserialize decodes tokens into dst and fails t unless the whole
// stream was consumed.
func AssertDeserialize(t testing.TB, dst atone.Deserializable, tokens ...Token) {
	t.Helper()
	d := NewDeserializer(tokens...)
	require.NoError(t, dst.Deserialize(d))
	require.NoError(t, d.Finish())
}

// AssertTokens checks that v serializes to want and that decoding want into
// a fresh T serializes back to want.
func AssertTokens[T any, P interface {
	*T
	atone.Serializable
	atone.Deserializable
}](t testing.TB, v P, want ...Token) {
	t.Helper()
	AssertSerialize(t, v, want...)

	var fresh T
	AssertDeserialize(t, P(&fresh), want...)
	AssertSerialize(t, P(&fresh), want...)
}
