// Package stack provides a last-in-first-out container with checked preconditions.
package stack

import (
	"fmt"
	"iter"
	"reflect"
	"sync"
	"sync/atomic"
)

// Collection is a finite source of elements used to seed a new stack.
type Collection[T any] interface {
	Len() int
	All() iter.Seq[T]
}

// Container is the behavior shared by *Stack and *SyncStack.
type Container[T any] interface {
	Collection[T]

	Push(v T)
	Pop() (T, error)
	Peek() (T, error)
	TryPop() (T, bool)
	TryPeek() (T, bool)
	ContainsFunc(pred func(T) bool) bool
	ToSlice() []T
	CopyTo(dst []T, index int) error
	Clear()
	Enumerator() *Enumerator[T]
	IsSynchronized() bool
	SyncRoot() sync.Locker
}

var (
	_ Container[int] = (*Stack[int])(nil)
	_ Container[int] = (*SyncStack[int])(nil)
)

// trimThreshold is the fill ratio below which TrimExcess reallocates.
const trimThreshold = 0.9

// Stack is an unsynchronized LIFO container. The zero value is an empty stack
// ready to use. Concurrent use requires external locking through SyncRoot or
// a wrapper obtained from Synchronized.
type Stack[T any] struct {
	// items holds the elements bottom-first; the top is items[len(items)-1].
	items []T

	// root is allocated on first use of SyncRoot and shared by all wrappers.
	root atomic.Pointer[sync.Mutex]
}

// New returns an empty stack.
func New[T any]() *Stack[T] {
	return &Stack[T]{}
}

// NewWithCapacity returns an empty stack with room for capacity elements
// before it has to grow.
func NewWithCapacity[T any](capacity int) (*Stack[T], error) {
	if capacity < 0 {
		return nil, violation("NewWithCapacity", "capacity >= 0", ErrNegativeCapacity)
	}
	return &Stack[T]{items: make([]T, 0, capacity)}, nil
}

// NewFrom returns a stack holding the elements of col, pushed in the order
// col yields them. The last element yielded ends up on top.
func NewFrom[T any](col Collection[T]) (*Stack[T], error) {
	if isNilCollection(col) {
		return nil, violation("NewFrom", "col != nil", ErrNilCollection)
	}
	s := &Stack[T]{items: make([]T, 0, col.Len())}
	for v := range col.All() {
		s.items = append(s.items, v)
	}
	return s, nil
}

// FromSlice returns a stack holding items, with the last item on top.
func FromSlice[T any](items []T) *Stack[T] {
	s := &Stack[T]{items: make([]T, len(items))}
	copy(s.items, items)
	return s
}

// isNilCollection reports whether col is nil or an interface holding a nil
// pointer, map, slice, func or chan.
func isNilCollection[T any](col Collection[T]) bool {
	switch c := col.(type) {
	case nil:
		return true
	case *Stack[T]:
		return c == nil
	case *SyncStack[T]:
		return c == nil
	}
	switch v := reflect.ValueOf(col); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Len returns the number of elements on the stack.
func (s *Stack[T]) Len() int {
	return len(s.items)
}

// Cap returns the number of elements the stack can hold without growing.
func (s *Stack[T]) Cap() int {
	return cap(s.items)
}

// IsSynchronized reports false: Stack does no locking of its own.
func (s *Stack[T]) IsSynchronized() bool {
	return false
}

// SyncRoot returns the lock that guards this stack for callers that
// synchronize externally. Wrappers returned by Synchronized use the same lock.
func (s *Stack[T]) SyncRoot() sync.Locker {
	if mu := s.root.Load(); mu != nil {
		return mu
	}
	s.root.CompareAndSwap(nil, new(sync.Mutex))
	return s.root.Load()
}

// Push places v on top of the stack.
func (s *Stack[T]) Push(v T) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top element.
func (s *Stack[T]) Pop() (T, error) {
	v, ok := s.TryPop()
	if !ok {
		return v, violation("Pop", "Len() > 0", ErrEmpty)
	}
	return v, nil
}

// TryPop is Pop in comma-ok form.
func (s *Stack[T]) TryPop() (T, bool) {
	var zero T
	n := len(s.items)
	if n == 0 {
		return zero, false
	}
	v := s.items[n-1]
	s.items[n-1] = zero // release the reference
	s.items = s.items[:n-1]
	return v, true
}

// Peek returns the top element without removing it.
func (s *Stack[T]) Peek() (T, error) {
	v, ok := s.TryPeek()
	if !ok {
		return v, violation("Peek", "Len() > 0", ErrEmpty)
	}
	return v, nil
}

// TryPeek is Peek in comma-ok form.
func (s *Stack[T]) TryPeek() (T, bool) {
	if len(s.items) == 0 {
		var zero T
		return zero, false
	}
	return s.items[len(s.items)-1], true
}

// ContainsFunc reports whether any element satisfies pred.
func (s *Stack[T]) ContainsFunc(pred func(T) bool) bool {
	for i := len(s.items) - 1; i >= 0; i-- {
		if pred(s.items[i]) {
			return true
		}
	}
	return false
}

// Contains reports whether v is on c.
func Contains[T comparable](c Container[T], v T) bool {
	return c.ContainsFunc(func(x T) bool { return x == v })
}

// ToSlice returns a newly allocated slice of the elements in pop order.
// The result is never nil.
func (s *Stack[T]) ToSlice() []T {
	out := make([]T, len(s.items))
	s.fill(out)
	return out
}

// fill writes the elements top-first into dst, which must hold Len() elements.
func (s *Stack[T]) fill(dst []T) {
	n := len(s.items)
	for i := range n {
		dst[i] = s.items[n-1-i]
	}
}

// CopyTo writes the elements in pop order into dst starting at index.
func (s *Stack[T]) CopyTo(dst []T, index int) error {
	if index < 0 || index >= len(dst) {
		return violation("CopyTo", "0 <= index < len(dst)", ErrIndexOutOfRange)
	}
	if len(dst)-index < len(s.items) {
		return violation("CopyTo", "len(dst)-index >= Len()", ErrDestinationTooSmall)
	}
	s.fill(dst[index : index+len(s.items)])
	return nil
}

// Clear removes every element. The capacity is kept.
func (s *Stack[T]) Clear() {
	clear(s.items)
	s.items = s.items[:0]
}

// TrimExcess releases unused capacity when the stack is less than 90% full.
func (s *Stack[T]) TrimExcess() {
	if float64(len(s.items)) >= trimThreshold*float64(cap(s.items)) {
		return
	}
	items := make([]T, len(s.items))
	copy(items, s.items)
	s.items = items
}

// Clone returns an independent shallow copy. The copy has its own SyncRoot.
func (s *Stack[T]) Clone() *Stack[T] {
	return FromSlice(s.items)
}

// Clone returns an independent shallow copy of c of the same variant.
func Clone[T any](c Container[T]) Container[T] {
	switch v := c.(type) {
	case *Stack[T]:
		return v.Clone()
	case *SyncStack[T]:
		return v.Clone()
	}
	s := New[T]()
	items := c.ToSlice()
	for i := len(items) - 1; i >= 0; i-- {
		s.Push(items[i])
	}
	return s
}

// All returns an iterator over a snapshot of the elements in pop order.
func (s *Stack[T]) All() iter.Seq[T] {
	return snapshotSeq(s.ToSlice())
}

// Enumerator returns a fresh iterator over a snapshot of the elements.
func (s *Stack[T]) Enumerator() *Enumerator[T] {
	return newEnumerator(s.ToSlice())
}

func (s *Stack[T]) String() string {
	return fmt.Sprintf("stack%v", s.ToSlice())
}
