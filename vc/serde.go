package vc

import (
	"go.uber.org/zap"

	"github.com/wippyai/atone"
	"github.com/wippyai/atone/errors"
)

// Serialize writes the elements, in index order, as a single sequence of
// known length. A nil Vc serializes as an empty sequence.
func (v *Vc[T]) Serialize(s atone.Serializer) error {
	n := v.Len()
	seq, err := s.SerializeSeq(n)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := seq.SerializeElement(v.At(i)); err != nil {
			return errors.AtIndex(err, i)
		}
	}
	return seq.End()
}

// Decode builds a new Vc from the sequence d is positioned on.
func Decode[T any](d atone.Deserializer) (*Vc[T], error) {
	vis := &freshVisitor[T]{}
	if err := d.DeserializeSeq(vis); err != nil {
		return nil, err
	}
	return vis.out, nil
}

// Deserialize replaces the contents of v with a freshly decoded sequence.
// On error v is left unchanged.
func (v *Vc[T]) Deserialize(d atone.Deserializer) error {
	out, err := Decode[T](d)
	if err != nil {
		return err
	}
	*v = *out
	return nil
}

// DeserializeInPlace decodes the sequence into v's existing elements.
//
// The first min(v.Len(), n) elements are decoded in place, a longer input
// is appended and a shorter one truncates v. If an element fails, earlier
// elements keep their new values and later ones keep their old values.
func (v *Vc[T]) DeserializeInPlace(d atone.Deserializer) error {
	return d.DeserializeSeq(&inPlaceVisitor[T]{target: v})
}

type freshVisitor[T any] struct {
	out *Vc[T]
}

func (f *freshVisitor[T]) VisitSeq(seq atone.SeqAccess) error {
	values := WithCapacity[T](reservation(seq.SizeHint()))
	for i := 0; ; i++ {
		var elem T
		more, err := seq.NextElement(&elem)
		if err != nil {
			return errors.AtIndex(err, i)
		}
		if !more {
			break
		}
		values.Push(elem)
	}
	f.out = values
	return nil
}

type inPlaceVisitor[T any] struct {
	target *Vc[T]
}

func (p *inPlaceVisitor[T]) VisitSeq(seq atone.SeqAccess) error {
	v := p.target

	if hint := reservation(seq.SizeHint()); hint > v.Len() {
		v.Reserve(hint - v.Len())
	}

	n := v.Len()
	for i := 0; i < n; i++ {
		more, err := seq.NextElementInPlace(v.At(i))
		if err != nil {
			return errors.AtIndex(err, i)
		}
		if !more {
			Logger().Debug("in-place decode truncated",
				zap.Int("from", n),
				zap.Int("to", i))
			v.Truncate(i)
			return nil
		}
	}

	for i := n; ; i++ {
		var elem T
		more, err := seq.NextElement(&elem)
		if err != nil {
			return errors.AtIndex(err, i)
		}
		if !more {
			return nil
		}
		v.Push(elem)
	}
}

// reservation applies the cautious size hint policy.
func reservation(hint int, ok bool) int {
	n := atone.CautiousSizeHint(hint, ok)
	if ok && hint > n {
		Logger().Debug("size hint clamped",
			zap.Int("hint", hint),
			zap.Int("reserved", n))
	}
	return n
}
