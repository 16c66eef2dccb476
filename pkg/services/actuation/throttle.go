package actuation

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Throttled paces live calls to the wrapped actuator. Dry-run calls are never delayed.
type Throttled struct {
	next    Actuator
	limiter *rate.Limiter
}

func Throttle(next Actuator, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (t *Throttled) Actuate(ctx context.Context, req Request) (Response, error) {
	if !req.DryRun {
		if err := t.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("wait for actuation slot: %w", err)
		}
	}
	return t.next.Actuate(ctx, req)
}
