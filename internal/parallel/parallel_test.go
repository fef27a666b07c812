package parallel

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
)

func TestRangeRunsAll(t *testing.T) {
	var count int64
	err := Range(context.Background(), 50, 4, func(ctx context.Context, i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	if err != nil {
		t.Fatalf("Range returned error: %v", err)
	}
	if count != 50 {
		t.Fatalf("got %d calls, want 50", count)
	}
}

func TestRangePropagatesError(t *testing.T) {
	sentinel := errors.New("boom")
	err := Range(context.Background(), 10, 2, func(ctx context.Context, i int) error {
		if i == 5 {
			return sentinel
		}
		return nil
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want sentinel wrapped", err)
	}
}

func TestMapPreservesOrder(t *testing.T) {
	in := []int{1, 2, 3, 4, 5}
	out, err := Map(context.Background(), in, 3, func(ctx context.Context, v int) (int, error) {
		return v * v, nil
	})
	if err != nil {
		t.Fatalf("Map returned error: %v", err)
	}
	want := []int{1, 4, 9, 16, 25}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], want[i])
		}
	}
}

func TestMapTolerantCollectsPerItemErrors(t *testing.T) {
	in := []int{1, 2, 3}
	out, errs := MapTolerant(context.Background(), in, 2, func(ctx context.Context, v int) (int, error) {
		if v == 2 {
			return 0, errors.New("bad item")
		}
		return v * 10, nil
	})
	if out[0] != 10 || out[2] != 30 {
		t.Errorf("unexpected successful results: %v", out)
	}
	if errs[1] == nil {
		t.Errorf("expected error for item 2")
	}
	if errs[0] != nil || errs[2] != nil {
		t.Errorf("unexpected errors on successful items: %v", errs)
	}
}
