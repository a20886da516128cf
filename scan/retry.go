package scan

import (
	"context"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

type sleepFunc func(ctx context.Context, d time.Duration) error

func realSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDelay is the wait before retry attempt+1: 0.5s, 1s, 2s, ...
func backoffDelay(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt)) * float64(500*time.Millisecond))
}

// withRetry invokes fn up to maxRetries+1 times with exponential backoff.
// The retried call is transparent to callers: a success on the last attempt
// is indistinguishable from an immediate one. On exhaustion (or on a context
// cut short mid-backoff) the last error from fn is returned.
func withRetry(ctx context.Context, name string, maxRetries int, sleep sleepFunc, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}
		delay := backoffDelay(attempt)
		log.WithFields(log.Fields{
			"module":  name,
			"attempt": attempt + 1,
			"delay":   delay,
		}).WithError(err).Warn("check failed, retrying")
		if sleep(ctx, delay) != nil {
			return err
		}
	}
}
