package notify

import (
	"context"
	"sync"
	"time"

	"streamguard/internal/logger"
)

// deliverTimeout is the max time allowed for a single async delivery.
const deliverTimeout = 5 * time.Second

// ShutdownDrainTimeout bounds how long the daemon waits for in-flight deliveries on stop.
// Must be >= deliverTimeout.
const ShutdownDrainTimeout = deliverTimeout + time.Second

// Dispatcher runs deliveries in the background and tracks them so shutdown can wait for them.
// The zero value is ready to use.
type Dispatcher struct {
	wg sync.WaitGroup
}

// Go runs NotifyStreamBlocked in a goroutine so the caller is not blocked. Failures are logged.
// The goroutine uses context.Background so cancelling the pass does not abort delivery.
func (d *Dispatcher) Go(n Notifier, log logger.Logger, ev StreamBlocked) {
	if n == nil {
		return
	}
	if log == nil {
		log = logger.NewTestLogger()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := n.NotifyStreamBlocked(ctx, ev); err != nil {
			log.Warn().Err(err).
				Str("user_id", ev.UserID).
				Str("stop_code", ev.StopCode).
				Str("session_history_id", ev.SessionHistoryID).
				Msg("stream blocked notification failed")
		}
	}()
}

// Wait blocks until every delivery started by Go has finished or timeout elapses. It reports
// whether all deliveries finished. Go must not be called concurrently with Wait.
func (d *Dispatcher) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
