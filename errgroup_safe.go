package camnotify

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	panicBackoffStart = 200 * time.Millisecond
	panicBackoffMax   = 30 * time.Second
)

// GroupGoSafe runs fn in an errgroup goroutine. A panic in fn is printed to
// stderr and fn is started again after an exponential backoff; a returned
// error ends the goroutine and is reported by Wait.
//
// Cancelling ctx ends the restart loop, including a pending backoff, so Wait
// returns promptly.
//
// Panics go to stderr rather than the structured logger since the logger may
// be what panicked.
func GroupGoSafe(ctx context.Context, group *errgroup.Group, name string, fn func(context.Context) error) {
	if group == nil || fn == nil {
		return
	}
	group.Go(func() error {
		backoff := panicBackoffStart
		for {
			if ctx.Err() != nil {
				return nil
			}
			recovered, panicked, err := callRecover(ctx, fn)
			if !panicked {
				return err
			}
			_, _ = fmt.Fprintf(os.Stderr, "WARN: %s panicked: %v\n%s\n", name, recovered, debug.Stack())

			jitter := time.Duration(0)
			if half := backoff / 2; half > 0 {
				jitter = time.Duration(time.Now().UnixNano() % int64(half))
			}
			if !sleepContext(ctx, backoff+jitter) {
				return nil
			}
			backoff *= 2
			if backoff > panicBackoffMax {
				backoff = panicBackoffMax
			}
		}
	})
}

func callRecover(ctx context.Context, fn func(context.Context) error) (recovered any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
			panicked = true
		}
	}()
	err = fn(ctx)
	return nil, false, err
}

// sleepContext waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
