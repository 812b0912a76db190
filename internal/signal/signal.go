// Package signal provides a single-owner, latest-value broadcast.
//
// The owner calls Set; any number of readers Subscribe and receive the current
// value followed by every later value. Slow readers never block the owner: each
// subscription buffers one value and a newer value replaces an unread one, so a
// reader always converges on the latest state.
package signal

import (
	"context"
	"sync"
)

// Signal holds the latest value of T and fans it out to subscribers.
type Signal[T any] struct {
	mu     sync.Mutex
	value  T
	set    bool
	closed bool
	subs   map[chan T]struct{}
}

// New returns a signal with no value yet. Subscribers see nothing until Set.
func New[T any]() *Signal[T] {
	return &Signal[T]{subs: make(map[chan T]struct{})}
}

// NewWith returns a signal holding v.
func NewWith[T any](v T) *Signal[T] {
	s := New[T]()
	s.value = v
	s.set = true
	return s
}

// Set publishes v to every subscriber. Set after Close is ignored.
func (s *Signal[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.value = v
	s.set = true
	for ch := range s.subs {
		offer(ch, v)
	}
}

// Update applies fn to the current value under the signal's lock and publishes the result.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.value = fn(s.value)
	s.set = true
	for ch := range s.subs {
		offer(ch, s.value)
	}
}

// Get returns the current value and whether one was ever set.
func (s *Signal[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set
}

// Subscribe returns a channel carrying the current value (if any) and all later
// ones. The channel is closed when ctx is done or the signal is closed.
func (s *Signal[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch
	}
	if s.set {
		ch <- s.value
	}
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.unsubscribe(ch)
	}()
	return ch
}

// Close ends every subscription. The last value stays readable through Get.
func (s *Signal[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
}

func (s *Signal[T]) unsubscribe(ch chan T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

// offer replaces any unread value in ch with v. Callers hold s.mu, so the
// owner is the only sender and the drain-then-send cannot race another send.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}
