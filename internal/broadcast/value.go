// Package broadcast provides a copy-on-write value that publishes every
// replacement to any number of subscribers. Each subscriber receives the
// value current at subscription time followed by every later replacement,
// in publication order, with nothing dropped.
package broadcast

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Subscription.Next once the subscription has been
// closed and its queue drained.
var ErrClosed = errors.New("broadcast: subscription closed")

// Value holds the latest T and fans it out to subscribers. The zero value is
// not usable; create one with New.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	subs map[*Subscription[T]]struct{}
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		cur:  initial,
		subs: make(map[*Subscription[T]]struct{}),
	}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Store replaces the current value and publishes it. No check is made that
// x differs from the previous value.
func (v *Value[T]) Store(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publish(x)
}

// Update applies fn to the current value and publishes the result as a single
// atomic read-modify-write. fn must not call back into v.
func (v *Value[T]) Update(fn func(T) T) T {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := fn(v.cur)
	v.publish(next)
	return next
}

// publish stores x and enqueues it for every subscriber (caller must hold mu).
// Holding mu across the fan-out keeps every subscriber's order identical.
func (v *Value[T]) publish(x T) {
	v.cur = x
	for s := range v.subs {
		s.push(x)
	}
}

// Subscribe registers a new subscriber. The first value it yields is the value
// current at the time of the call.
func (v *Value[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		parent: v,
		notify: make(chan struct{}, 1),
	}
	v.mu.Lock()
	s.push(v.cur)
	v.subs[s] = struct{}{}
	v.mu.Unlock()
	return s
}

func (v *Value[T]) remove(s *Subscription[T]) {
	v.mu.Lock()
	delete(v.subs, s)
	v.mu.Unlock()
}

// Subscribers returns the number of open subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Subscription is one observer's ordered view of a Value. Its queue is
// unbounded so a slow reader never causes values to be skipped.
type Subscription[T any] struct {
	parent *Value[T]

	mu     sync.Mutex
	queue  []T
	closed bool
	notify chan struct{} // capacity 1, signalled on push and close
	once   sync.Once
}

func (s *Subscription[T]) push(x T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, x)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription[T]) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next value is available, the subscription is closed,
// or ctx is done. Values already queued are still delivered after Close.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			x := s.queue[0]
			s.queue[0] = zero
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return x, nil
		}
		if s.closed {
			s.mu.Unlock()
			return zero, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-s.notify:
		}
	}
}

// Close detaches the subscription from its Value. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.parent.remove(s)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.signal()
	})
}
