package opqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEnqueueRunsInOrder(t *testing.T) {
	q := New(nil)
	defer q.Close()

	var order []int
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			i := i
			q.Enqueue(context.Background(), func() (any, error) {
				order = append(order, i)
				return nil, nil
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for operations to run")
	}

	for i, v := range order {
		if v != i {
			t.Errorf("expected strictly increasing enqueue order, got %v", order)
			break
		}
	}
}

func TestFailedOperationDoesNotBlockQueue(t *testing.T) {
	q := New(nil)
	defer q.Close()

	_, err := q.Enqueue(context.Background(), func() (any, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected the failing op's own error back")
	}

	got, err := q.Enqueue(context.Background(), func() (any, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected subsequent operation to run normally, got %v, %v", got, err)
	}
}

func TestOnDoneFiresAfterEachOperation(t *testing.T) {
	var count int32
	q := New(func() { atomic.AddInt32(&count, 1) })
	defer q.Close()

	for i := 0; i < 3; i++ {
		if _, err := q.Enqueue(context.Background(), func() (any, error) { return nil, nil }); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if got := atomic.LoadInt32(&count); got != 3 {
		t.Errorf("expected onDone invoked 3 times, got %d", got)
	}
}

func TestPanicInOperationIsRecovered(t *testing.T) {
	q := New(nil)
	defer q.Close()

	_, err := q.Enqueue(context.Background(), func() (any, error) {
		panic("unexpected")
	})
	if err == nil {
		t.Fatal("expected a panic to surface as an error")
	}

	if _, err := q.Enqueue(context.Background(), func() (any, error) { return "still alive", nil }); err != nil {
		t.Fatalf("expected queue to survive a panicking operation: %v", err)
	}
}

func TestEnqueueAfterCloseFails(t *testing.T) {
	q := New(nil)
	q.Close()

	if _, err := q.Enqueue(context.Background(), func() (any, error) { return nil, nil }); err == nil {
		t.Fatal("expected ErrClosed after Close")
	}
}
