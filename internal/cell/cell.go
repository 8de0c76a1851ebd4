// Package cell implements a single-slot mailbox ("shared cell") used to
// hand off the latest value of something from a producer goroutine to one
// or more readers, without queueing intermediate values.
package cell

import "sync"

// Cell holds at most one value of T. Swap replaces it and wakes any reader
// blocked in Read. Read always returns the most recently written value; it
// blocks only until the first write has happened.
type Cell[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	value    T
	hasValue bool
}

// New creates an empty Cell.
func New[T any]() *Cell[T] {
	c := &Cell[T]{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Swap stores v and returns the previous value (the zero value of T, with
// ok==false, if this is the first write).
func (c *Cell[T]) Swap(v T) (old T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok = c.value, c.hasValue
	c.value = v
	c.hasValue = true
	c.cond.Broadcast()
	return old, ok
}

// Read blocks until the first Swap, then returns the latest value. Readers
// never observe a torn value: the mutex serializes writes and reads.
func (c *Cell[T]) Read() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	for !c.hasValue {
		c.cond.Wait()
	}
	return c.value
}

// TryRead returns the current value without blocking; ok is false if no
// value has ever been written.
func (c *Cell[T]) TryRead() (v T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.hasValue
}

// Fold continuously composes incoming values from in into an accumulator
// stored in a new Cell, starting from init. It returns the Cell and a
// runner function meant to be attached to a threadmgr.Manager as a
// non-terminating worker.
func Fold[T, A any](in <-chan T, init A, f func(acc A, v T) A) (*Cell[A], func() error) {
	c := New[A]()
	c.Swap(init)
	runner := func() error {
		acc := init
		for v := range in {
			acc = f(acc, v)
			c.Swap(acc)
		}
		return nil
	}
	return c, runner
}
