package stack

import (
	"fmt"
	"iter"
	"sync"
)

// SyncStack is a view over a Stack that serializes every operation through
// the stack's SyncRoot. Several views over one Stack share a single lock.
//
// Unlike Stack, the zero SyncStack is not usable and its methods panic;
// obtain one from Synchronized.
type SyncStack[T any] struct {
	s  *Stack[T]
	mu sync.Locker
}

// Synchronized returns a thread-safe view over s. The view and s share the
// same elements; s itself must only be used under s.SyncRoot() from then on.
func Synchronized[T any](s *Stack[T]) (*SyncStack[T], error) {
	if s == nil {
		return nil, violation("Synchronized", "stack != nil", ErrNilStack)
	}
	return &SyncStack[T]{s: s, mu: s.SyncRoot()}, nil
}

// IsSynchronized reports true.
func (w *SyncStack[T]) IsSynchronized() bool {
	return true
}

// SyncRoot returns the lock every operation on w acquires.
func (w *SyncStack[T]) SyncRoot() sync.Locker {
	return w.mu
}

func (w *SyncStack[T]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Len()
}

func (w *SyncStack[T]) Push(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.s.Push(v)
}

func (w *SyncStack[T]) Pop() (T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Pop()
}

func (w *SyncStack[T]) TryPop() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.TryPop()
}

func (w *SyncStack[T]) Peek() (T, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.Peek()
}

func (w *SyncStack[T]) TryPeek() (T, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.TryPeek()
}

// ContainsFunc holds the lock while pred runs, so pred must not call back
// into w.
func (w *SyncStack[T]) ContainsFunc(pred func(T) bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.ContainsFunc(pred)
}

func (w *SyncStack[T]) ToSlice() []T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.ToSlice()
}

func (w *SyncStack[T]) CopyTo(dst []T, index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.s.CopyTo(dst, index)
}

func (w *SyncStack[T]) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.s.Clear()
}

func (w *SyncStack[T]) TrimExcess() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.s.TrimExcess()
}

// Clone returns a synchronized view over an independent copy of the
// underlying stack. The copy has its own lock.
func (w *SyncStack[T]) Clone() *SyncStack[T] {
	w.mu.Lock()
	c := w.s.Clone()
	w.mu.Unlock()
	// c is never nil, so the error is always nil.
	sc, _ := Synchronized(c)
	return sc
}

// All iterates over a snapshot taken under the lock; the lock is not held
// while the loop body runs.
func (w *SyncStack[T]) All() iter.Seq[T] {
	return snapshotSeq(w.ToSlice())
}

func (w *SyncStack[T]) Enumerator() *Enumerator[T] {
	return newEnumerator(w.ToSlice())
}

func (w *SyncStack[T]) String() string {
	return fmt.Sprintf("syncstack%v", w.ToSlice())
}
