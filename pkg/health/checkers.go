package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds the
// threshold. Useful as a liveness check for goroutine leaks.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// Pinger is anything with a context-aware ping, such as a pgx pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger into a readiness check.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
