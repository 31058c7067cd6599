// Package vc provides Vc, a growable sequence whose resizes are spread over
// the pushes that follow them, and its adapter to the atone serialization
// protocol.
//
// A Vc encodes as a plain sequence, so its encoded form is identical to that
// of a []T holding the same elements and the two are interchangeable in any
// format:
//
//	v := vc.FromSlice([]uint32{1, 2, 3})
//	data, _ := json.Marshal(v)                          // [1,2,3]
//	out, err := vc.Decode[uint32](json.NewDeserializer(data))
//
// DeserializeInPlace reuses the elements a Vc already holds. It truncates
// when the input is shorter and appends when it is longer. When an element
// fails to decode, elements before it have already been overwritten and the
// ones after it are untouched; the Vc is not rolled back.
package vc
