package batch

import (
	"context"
	"time"
)

// Tally reports one bulk run: every item is attempted exactly once, a
// failing item never stops the loop.
type Tally struct {
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Runner executes bulk operations sequentially with a fixed pause
// between items, so a progress indicator advances visibly instead of
// jumping from zero to done.
type Runner struct {
	Delay time.Duration
}

// Run applies fn to each item in order. A context cancellation counts
// the remaining items as failed rather than leaving them unreported.
func (r Runner) Run(ctx context.Context, items []string, fn func(ctx context.Context, item string) error) Tally {
	tally := Tally{Errors: map[string]string{}}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for _, rest := range items[i:] {
				tally.Failed++
				tally.Errors[rest] = err.Error()
			}
			break
		}

		if err := fn(ctx, item); err != nil {
			tally.Failed++
			tally.Errors[item] = err.Error()
		} else {
			tally.Succeeded++
		}

		if r.Delay > 0 && i < len(items)-1 {
			select {
			case <-time.After(r.Delay):
			case <-ctx.Done():
			}
		}
	}

	if len(tally.Errors) == 0 {
		tally.Errors = nil
	}
	return tally
}
