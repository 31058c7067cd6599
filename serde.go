package atone

// UnknownLen is passed to Serializer.SerializeSeq when the element count is
// not known before the first element is written.
const UnknownLen = -1

// Serializer is implemented by each format. It only ever receives
// sequence-shaped values; elements are handed over one at a time through
// the returned SeqSerializer.
type Serializer interface {
	// SerializeSeq begins a sequence of length elements, or UnknownLen.
	SerializeSeq(length int) (SeqSerializer, error)
}

// SeqSerializer receives the elements of one sequence in order.
type SeqSerializer interface {
	// SerializeElement encodes the next element. v is usually a pointer to
	// the element; values implementing Serializable encode themselves.
	SerializeElement(v any) error
	// End closes the sequence.
	End() error
}

// Serializable values describe themselves to a Serializer.
type Serializable interface {
	Serialize(s Serializer) error
}

// Deserializer is implemented by each format and positioned on one value.
type Deserializer interface {
	// DeserializeSeq fails with a type mismatch, consuming nothing, when the
	// value is not a sequence. Otherwise it drives v over the elements.
	DeserializeSeq(v SeqVisitor) error
}

// SeqVisitor consumes a sequence from a SeqAccess.
type SeqVisitor interface {
	VisitSeq(seq SeqAccess) error
}

// SeqAccess yields the elements of one sequence.
//
// Both Next methods return false with a nil error once the sequence is
// exhausted, and a format specific error for malformed input.
type SeqAccess interface {
	// SizeHint is the source's estimate of the remaining element count.
	// It is advisory and may be adversarial; pass it through
	// CautiousSizeHint before reserving storage.
	SizeHint() (int, bool)

	// NextElement decodes the next element into dst, a non-nil pointer to a
	// zero value of the element type.
	NextElement(dst any) (bool, error)

	// NextElementInPlace decodes the next element into the existing value
	// behind dst, reusing its storage when the element type supports it.
	NextElementInPlace(dst any) (bool, error)
}

// Deserializable values rebuild themselves from a Deserializer.
type Deserializable interface {
	Deserialize(d Deserializer) error
}

// InPlaceDeserializable values decode into their existing storage.
type InPlaceDeserializable interface {
	DeserializeInPlace(d Deserializer) error
}
