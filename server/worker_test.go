package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerDo(t *testing.T) {
	w := NewWorker(2)
	defer w.Stop()

	v, err := w.Do(context.Background(), func() (any, error) { return 42, nil })
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 42 {
		t.Errorf("Do = %v, want 42", v)
	}
}

func TestWorkerReturnsError(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	boom := errors.New("boom")
	if _, err := w.Do(context.Background(), func() (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestWorkerRecoversPanic(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	_, err := w.Do(context.Background(), func() (any, error) { panic("kaboom") })
	if err == nil {
		t.Fatal("expected error from panicking request")
	}

	// the goroutine survives the panic
	v, err := w.Do(context.Background(), func() (any, error) { return "ok", nil })
	if err != nil || v.(string) != "ok" {
		t.Errorf("Do after panic = %v, %v", v, err)
	}
}

func TestWorkerBoundsConcurrency(t *testing.T) {
	const limit = 3
	w := NewWorker(limit)
	defer w.Stop()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Do(context.Background(), func() (any, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > limit {
		t.Errorf("peak concurrency = %d, want <= %d", peak.Load(), limit)
	}
}

func TestWorkerContextCanceled(t *testing.T) {
	w := NewWorker(1)
	defer w.Stop()

	release := make(chan struct{})
	go w.Do(context.Background(), func() (any, error) {
		<-release
		return nil, nil
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond)
	_, err := w.Do(ctx, func() (any, error) { return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewWorker(1)
	w.Stop()
	w.Stop()

	if _, err := w.Do(context.Background(), func() (any, error) { return nil, nil }); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}
