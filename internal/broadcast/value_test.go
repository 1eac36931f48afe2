package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func nextWithin(t *testing.T, s *Subscription[int]) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	x, err := s.Next(ctx)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	return x
}

func TestSubscribeStartsWithCurrentValue(t *testing.T) {
	v := New(7)
	s := v.Subscribe()
	defer s.Close()

	if got := nextWithin(t, s); got != 7 {
		t.Errorf("first value = %d, want 7", got)
	}
}

func TestSubscriberSeesEveryValueInOrder(t *testing.T) {
	v := New(0)
	s := v.Subscribe()
	defer s.Close()

	for i := 1; i <= 100; i++ {
		v.Store(i)
	}

	for want := 0; want <= 100; want++ {
		if got := nextWithin(t, s); got != want {
			t.Fatalf("value = %d, want %d", got, want)
		}
	}
}

func TestIndependentSubscribersFromOwnPoint(t *testing.T) {
	v := New(1)
	early := v.Subscribe()
	defer early.Close()

	v.Store(2)
	late := v.Subscribe()
	defer late.Close()
	v.Store(3)

	for _, want := range []int{1, 2, 3} {
		if got := nextWithin(t, early); got != want {
			t.Errorf("early subscriber got %d, want %d", got, want)
		}
	}
	for _, want := range []int{2, 3} {
		if got := nextWithin(t, late); got != want {
			t.Errorf("late subscriber got %d, want %d", got, want)
		}
	}
}

func TestUpdateIsReadModifyWrite(t *testing.T) {
	v := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v.Update(func(x int) int { return x + 1 })
			}
		}()
	}
	wg.Wait()

	if got := v.Load(); got != 5000 {
		t.Errorf("Load() = %d, want 5000 (lost updates)", got)
	}
}

func TestNextRespectsContext(t *testing.T) {
	v := New(0)
	s := v.Subscribe()
	defer s.Close()
	nextWithin(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	v := New(0)
	s := v.Subscribe()
	v.Store(1)
	s.Close()
	s.Close()
	v.Store(2)

	if v.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0 after Close", v.Subscribers())
	}
	for _, want := range []int{0, 1} {
		if got := nextWithin(t, s); got != want {
			t.Errorf("drained value = %d, want %d", got, want)
		}
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after drain error = %v, want ErrClosed", err)
	}
}

func TestCloseWakesBlockedReader(t *testing.T) {
	v := New(0)
	s := v.Subscribe()
	nextWithin(t, s)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("Next() error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after Close")
	}
}
