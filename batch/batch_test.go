package batch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRun_Tally(t *testing.T) {
	attempts := map[string]int{}
	fn := func(_ context.Context, item string) error {
		attempts[item]++
		if item == "b" || item == "d" {
			return errors.New("boom")
		}
		return nil
	}

	tally := Runner{}.Run(context.Background(), []string{"a", "b", "c", "d"}, fn)

	if tally.Succeeded != 2 || tally.Failed != 2 {
		t.Errorf("tally = %d/%d, want 2/2", tally.Succeeded, tally.Failed)
	}
	for _, item := range []string{"a", "b", "c", "d"} {
		if attempts[item] != 1 {
			t.Errorf("item %s attempted %d times, want exactly once", item, attempts[item])
		}
	}
	if tally.Errors["b"] != "boom" {
		t.Errorf("error for b = %q, want boom", tally.Errors["b"])
	}
}

func TestRun_FailureDoesNotStopLoop(t *testing.T) {
	var order []string
	fn := func(_ context.Context, item string) error {
		order = append(order, item)
		return errors.New("always")
	}

	tally := Runner{}.Run(context.Background(), []string{"x", "y", "z"}, fn)
	if tally.Failed != 3 || tally.Succeeded != 0 {
		t.Errorf("tally = %d/%d, want 0/3", tally.Succeeded, tally.Failed)
	}
	if len(order) != 3 {
		t.Errorf("attempted %d items, want 3", len(order))
	}
}

func TestRun_DelayBetweenItems(t *testing.T) {
	start := time.Now()
	Runner{Delay: 10 * time.Millisecond}.Run(context.Background(), []string{"a", "b", "c"},
		func(context.Context, string) error { return nil })

	// two gaps between three items
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("run finished in %v, expected at least 20ms of pacing", elapsed)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := 0
	fn := func(_ context.Context, item string) error {
		ran++
		if item == "a" {
			cancel()
		}
		return nil
	}

	tally := Runner{}.Run(ctx, []string{"a", "b", "c"}, fn)
	if ran != 1 {
		t.Errorf("ran %d items after cancel, want 1", ran)
	}
	if tally.Succeeded != 1 || tally.Failed != 2 {
		t.Errorf("tally = %d/%d, want 1/2", tally.Succeeded, tally.Failed)
	}
}
