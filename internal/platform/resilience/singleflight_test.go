package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSingleFlight_DeduplicatesConcurrentCalls(t *testing.T) {
	var g SingleFlight
	var executions atomic.Int32

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err, _ := g.Do("key", func() (any, error) {
				executions.Add(1)
				<-release
				return "done", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if value != "done" {
				t.Errorf("unexpected value: %v", value)
			}
		}()
	}

	close(release)
	wg.Wait()

	if got := executions.Load(); got != 1 {
		t.Fatalf("expected single execution, got %d", got)
	}
}

func TestSingleFlight_KeyReusableAfterCompletion(t *testing.T) {
	var g SingleFlight
	var executions atomic.Int32

	for i := 0; i < 2; i++ {
		_, err, shared := g.Do("key", func() (any, error) {
			executions.Add(1)
			return nil, nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if shared {
			t.Fatalf("call %d unexpectedly shared", i)
		}
	}

	if got := executions.Load(); got != 2 {
		t.Fatalf("expected two executions, got %d", got)
	}
}
