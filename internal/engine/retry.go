package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// pollUntil polls probe on an exponential backoff schedule until it
// returns true, ctx is done, or the schedule gives up, mirroring how a
// reconnection loop backs off between attempts rather than busy-waiting
// on a fixed interval forever. initial and max bound the interval;
// elapsed bounds the whole wait.
func pollUntil(ctx context.Context, initial, max, elapsed time.Duration, probe func() bool) bool {
	if probe() {
		return true
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = max
	bo.MaxElapsedTime = elapsed

	for {
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return false
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if probe() {
			return true
		}
	}
}
