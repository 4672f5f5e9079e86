package stack

import "iter"

// Enumerator walks a snapshot of a stack taken when it was created. Changes
// made to the stack afterwards are not observed.
type Enumerator[T any] struct {
	items []T
	pos   int
}

func newEnumerator[T any](items []T) *Enumerator[T] {
	return &Enumerator[T]{items: items, pos: -1}
}

// Next advances to the next element and reports whether there is one.
func (e *Enumerator[T]) Next() bool {
	if e.pos < len(e.items) {
		e.pos++
	}
	return e.pos < len(e.items)
}

// Current returns the element at the current position. It returns the zero
// value before the first call to Next and after Next has returned false.
func (e *Enumerator[T]) Current() T {
	if e.pos < 0 || e.pos >= len(e.items) {
		var zero T
		return zero
	}
	return e.items[e.pos]
}

// Reset rewinds the enumerator to before the first element.
func (e *Enumerator[T]) Reset() {
	e.pos = -1
}

func snapshotSeq[T any](items []T) iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, v := range items {
			if !yield(v) {
				return
			}
		}
	}
}
