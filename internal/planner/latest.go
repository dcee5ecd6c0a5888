package planner

import "sync"

// Latest is a single-slot cell. Long-lived callbacks read it to see the
// current value without being re-registered when the value changes.
type Latest[T any] struct {
	mu    sync.RWMutex
	value T
}

func NewLatest[T any](v T) *Latest[T] {
	return &Latest[T]{value: v}
}

func (l *Latest[T]) Set(v T) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
}

func (l *Latest[T]) Get() T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.value
}
