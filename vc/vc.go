package vc

import "iter"

const (
	// minCapacity is the first allocation made by Push on an empty Vc.
	minCapacity = 4

	// relocateStep is how many pending elements each Push moves out of the
	// previous buffer while the Vc is atoning.
	relocateStep = 1
)

// Vc is a growable, contiguous sequence that amortizes its resizes.
//
// When a push finds the buffer full, Vc allocates a buffer of twice the
// capacity but leaves the existing elements where they are. Subsequent
// pushes relocate them a few at a time, so no single push pays for copying
// the whole sequence. While elements are pending relocation the Vc is said
// to be atoning.
//
// Pointers returned by At are invalidated by Push, Reserve and Truncate.
// A Vc must not be copied after first use.
type Vc[T any] struct {
	// cur holds the logical length. While atoning, slots below
	// len(leftover) are placeholders and the live values sit in leftover.
	cur []T

	// leftover is the prefix of the previous buffer not yet relocated.
	leftover []T
}

// New returns an empty Vc.
func New[T any]() *Vc[T] {
	return &Vc[T]{}
}

// WithCapacity returns an empty Vc with room for n elements.
func WithCapacity[T any](n int) *Vc[T] {
	return &Vc[T]{cur: make([]T, 0, max(n, 0))}
}

// FromSlice returns a Vc holding a copy of s.
func FromSlice[T any](s []T) *Vc[T] {
	cur := make([]T, len(s), max(len(s), minCapacity))
	copy(cur, s)
	return &Vc[T]{cur: cur}
}

// Len returns the number of elements. A nil Vc is empty.
func (v *Vc[T]) Len() int {
	if v == nil {
		return 0
	}
	return len(v.cur)
}

// Cap returns the number of elements the current buffer holds without
// growing.
func (v *Vc[T]) Cap() int {
	if v == nil {
		return 0
	}
	return cap(v.cur)
}

// IsAtoning reports whether elements of a previous buffer are still
// waiting to be relocated.
func (v *Vc[T]) IsAtoning() bool {
	return v != nil && len(v.leftover) > 0
}

// At returns a pointer to element i. It panics if i is out of range.
func (v *Vc[T]) At(i int) *T {
	if i < len(v.leftover) {
		return &v.leftover[i]
	}
	return &v.cur[i]
}

// Get returns element i.
func (v *Vc[T]) Get(i int) T {
	return *v.At(i)
}

// Set overwrites element i.
func (v *Vc[T]) Set(i int, x T) {
	*v.At(i) = x
}

// Push appends x.
func (v *Vc[T]) Push(x T) {
	if len(v.cur) == cap(v.cur) {
		v.grow(max(2*cap(v.cur), minCapacity))
	} else {
		v.relocate(relocateStep)
	}
	v.cur = append(v.cur, x)
}

// Pop removes and returns the last element.
func (v *Vc[T]) Pop() (T, bool) {
	var zero T
	n := v.Len()
	if n == 0 {
		return zero, false
	}
	x := *v.At(n - 1)
	v.Truncate(n - 1)
	return x, true
}

// Truncate shortens the Vc to n elements. It has no effect if n is not
// below the current length.
func (v *Vc[T]) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(v.cur) {
		return
	}
	clear(v.cur[n:])
	v.cur = v.cur[:n]
	if len(v.leftover) > n {
		clear(v.leftover[n:])
		v.leftover = v.leftover[:n]
	}
	if len(v.leftover) == 0 {
		v.leftover = nil
	}
}

// Clear removes all elements, keeping the buffer.
func (v *Vc[T]) Clear() {
	v.Truncate(0)
}

// Reserve makes room for at least additional more elements. Unlike Push it
// relocates eagerly: after Reserve the Vc is not atoning.
func (v *Vc[T]) Reserve(additional int) {
	if additional <= 0 {
		return
	}
	v.relocate(len(v.leftover))
	need := len(v.cur) + additional
	if need <= cap(v.cur) {
		return
	}
	next := make([]T, len(v.cur), max(need, 2*cap(v.cur)))
	copy(next, v.cur)
	v.cur = next
}

// All iterates over index, element pairs in order.
func (v *Vc[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < v.Len(); i++ {
			if !yield(i, *v.At(i)) {
				return
			}
		}
	}
}

// Slice returns the elements as a new slice.
func (v *Vc[T]) Slice() []T {
	out := make([]T, v.Len())
	if v == nil {
		return out
	}
	copy(out, v.cur)
	copy(out, v.leftover)
	return out
}

// grow switches to a buffer of capacity newCap without copying; the old
// elements become leftover. Any relocation still pending from the previous
// grow is finished first.
func (v *Vc[T]) grow(newCap int) {
	v.relocate(len(v.leftover))
	next := make([]T, len(v.cur), newCap)
	if len(v.cur) > 0 {
		v.leftover = v.cur
	}
	v.cur = next
}

// relocate moves up to n pending elements, from the back of leftover, into
// their slots in cur.
func (v *Vc[T]) relocate(n int) {
	k := len(v.leftover)
	if k == 0 || n <= 0 {
		return
	}
	m := min(n, k)
	copy(v.cur[k-m:k], v.leftover[k-m:k])
	clear(v.leftover[k-m : k])
	v.leftover = v.leftover[:k-m]
	if len(v.leftover) == 0 {
		v.leftover = nil
	}
}
