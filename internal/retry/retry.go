// Package retry holds the backoff policy used when polling the ledger.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Clock abstracts time so waits can be driven by tests.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Policy exponential backoff: Base * 2^attempt, capped at Max.
// Jitter in [0,1] spreads each delay by up to that fraction either way.
type Policy struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewPolicy builds a policy. A zero max means uncapped.
func NewPolicy(base, max time.Duration, jitter float64) *Policy {
	if jitter < 0 {
		jitter = 0
	}
	if jitter > 1 {
		jitter = 1
	}
	return &Policy{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait after the given zero-based attempt. Uncapped delays
// saturate at the largest Duration instead of overflowing.
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.Base
	for i := 0; i < attempt && d > 0; i++ {
		if d > math.MaxInt64/2 {
			d = math.MaxInt64
			break
		}
		d *= 2
		if p.Max > 0 && d >= p.Max {
			break
		}
	}
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 && d > 0 {
		p.mu.Lock()
		f := (p.rand.Float64()*2 - 1) * p.Jitter
		p.mu.Unlock()
		jittered := float64(d) * (1 + f)
		switch {
		case jittered >= math.MaxInt64:
			d = math.MaxInt64
		case jittered < 0:
			d = 0
		default:
			d = time.Duration(jittered)
		}
	}
	return d
}

// Wait blocks for d or until ctx is done.
func Wait(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
