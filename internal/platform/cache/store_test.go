package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore(time.Minute)
	ctx := context.Background()

	s.Set(ctx, "k", 42)
	value, ok := s.Get(ctx, "k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if value != 42 {
		t.Fatalf("unexpected value: %v", value)
	}
}

func TestStore_ExpiredEntryMisses(t *testing.T) {
	s := NewStore(time.Nanosecond)
	ctx := context.Background()

	s.Set(ctx, "k", "v")
	time.Sleep(2 * time.Millisecond)

	if _, ok := s.Get(ctx, "k"); ok {
		t.Fatal("expected expired entry to miss")
	}
}

func TestStore_ReplaceSwapsWholesale(t *testing.T) {
	s := NewStore(time.Minute)
	ctx := context.Background()

	s.Set(ctx, "a", 1)
	s.Replace(ctx, map[string]any{"a": 10, "b": 20})

	if value, _ := s.Get(ctx, "a"); value != 10 {
		t.Fatalf("unexpected a: %v", value)
	}
	if value, _ := s.Get(ctx, "b"); value != 20 {
		t.Fatalf("unexpected b: %v", value)
	}
}

func TestStore_GetOrLoadCachesResult(t *testing.T) {
	s := NewStore(time.Minute)
	ctx := context.Background()
	loads := 0

	loader := func(context.Context) (any, error) {
		loads++
		return "loaded", nil
	}

	for i := 0; i < 3; i++ {
		value, err := s.GetOrLoad(ctx, "k", loader)
		if err != nil {
			t.Fatalf("get or load failed: %v", err)
		}
		if value != "loaded" {
			t.Fatalf("unexpected value: %v", value)
		}
	}

	if loads != 1 {
		t.Fatalf("expected one load, got %d", loads)
	}
}

func TestStore_GetOrLoadPropagatesError(t *testing.T) {
	s := NewStore(time.Minute)
	wantErr := errors.New("load failed")

	_, err := s.GetOrLoad(context.Background(), "k", func(context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}
