package dial

import (
	"context"
	"time"
)

type Backoff interface {
	Wait(ctx context.Context) error
}

// FixedBackoff waits the same interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
	After    func(time.Duration) <-chan time.Time
}

func NewFixedBackoff(interval time.Duration) *FixedBackoff {
	return &FixedBackoff{Interval: interval, After: time.After}
}

func (b *FixedBackoff) Wait(ctx context.Context) error {
	after := b.After
	if after == nil {
		after = time.After
	}
	select {
	case <-after(b.Interval):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
