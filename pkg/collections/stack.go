package collections

// Stack is a slice-backed LIFO.
type Stack[T any] struct {
	items []T
}

// NewStack preallocates room for capacity items.
func NewStack[T any](capacity int) *Stack[T] {
	return &Stack[T]{items: make([]T, 0, capacity)}
}

func (s *Stack[T]) Push(v T) {
	s.items = append(s.items, v)
}

// Pop removes the top item; ok is false on an empty stack.
func (s *Stack[T]) Pop() (v T, ok bool) {
	n := len(s.items)
	if n == 0 {
		return v, false
	}
	v = s.items[n-1]
	s.items = s.items[:n-1]
	return v, true
}

// Peek returns the top item without removing it.
func (s *Stack[T]) Peek() (v T, ok bool) {
	if n := len(s.items); n > 0 {
		return s.items[n-1], true
	}
	return v, false
}

func (s *Stack[T]) IsEmpty() bool { return len(s.items) == 0 }

func (s *Stack[T]) Len() int { return len(s.items) }

// Clear empties the stack, keeping its storage.
func (s *Stack[T]) Clear() {
	s.items = s.items[:0]
}
