package workerpool

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ExecutesTasks(t *testing.T) {
	pool := New(4, 16, slog.Default())
	defer pool.Shutdown()

	var counter atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		ok := pool.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		})
		if !ok {
			t.Fatal("Submit returned false on a running pool")
		}
	}
	wg.Wait()

	if counter.Load() != 100 {
		t.Errorf("Expected 100 executed tasks, got %d", counter.Load())
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := New(1, 4, slog.Default())
	defer pool.Shutdown()

	done := make(chan struct{})

	pool.Submit(func() {
		panic("boom")
	})
	pool.Submit(func() {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker did not survive a panicking task")
	}
}

func TestPool_TrySubmitFull(t *testing.T) {
	pool := New(1, 1, slog.Default())
	defer pool.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})

	pool.Submit(func() {
		close(started)
		<-block
	})
	<-started

	// occupy the single queue slot
	if !pool.TrySubmit(func() {}) {
		t.Fatal("Expected TrySubmit to fill the free queue slot")
	}

	if pool.TrySubmit(func() {}) {
		t.Error("Expected TrySubmit to fail on a full queue")
	}

	close(block)
}
