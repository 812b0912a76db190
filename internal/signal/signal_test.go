package signal

import (
	"context"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestSignal_SubscribeReplaysCurrent(t *testing.T) {
	s := NewWith(7)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	if got := recv(t, ch); got != 7 {
		t.Errorf("first value = %d, want 7", got)
	}

	s.Set(8)
	if got := recv(t, ch); got != 8 {
		t.Errorf("second value = %d, want 8", got)
	}
}

func TestSignal_NoValueUntilSet(t *testing.T) {
	s := New[string]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %q before Set", v)
	default:
	}

	s.Set("a")
	if got := recv(t, ch); got != "a" {
		t.Errorf("got %q, want a", got)
	}
}

func TestSignal_SlowReaderSeesLatest(t *testing.T) {
	s := NewWith(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	for i := 1; i <= 100; i++ {
		s.Set(i)
	}

	if got := recv(t, ch); got != 100 {
		t.Errorf("got %d, want latest value 100", got)
	}
}

func TestSignal_UnsubscribeOnCancel(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	// Set after unsubscribe must not panic on a closed channel
	s.Set(1)
}

func TestSignal_Close(t *testing.T) {
	s := NewWith(1)
	ch := s.Subscribe(context.Background())
	recv(t, ch)

	s.Close()
	if _, ok := <-ch; ok {
		t.Error("expected channel closed after Close")
	}

	late := s.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should return a closed channel")
	}

	if v, _ := s.Get(); v != 1 {
		t.Errorf("Get after Close = %d, want 1", v)
	}
}

func TestSignal_Update(t *testing.T) {
	s := NewWith(uint64(0))
	s.Update(func(v uint64) uint64 { return v + 1 })
	s.Update(func(v uint64) uint64 { return v + 1 })
	if v, _ := s.Get(); v != 2 {
		t.Errorf("Get = %d, want 2", v)
	}
}
