package runlock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// KeepAlive extends lease every ttl/3 until stop is called. onLost runs once,
// from the keepalive goroutine, when the lease is gone: Extend reported
// ErrLost, or no extension succeeded for a whole ttl. stop waits for the
// goroutine to exit and is safe to call more than once.
func KeepAlive(ctx context.Context, lease Lease, ttl time.Duration, onLost func(error)) (stop func()) {
	if ttl <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	interval := ttl / 3
	if interval <= 0 {
		interval = ttl
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		lastOK := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			err := lease.Extend(ctx, ttl)
			if err == nil {
				lastOK = time.Now()
				continue
			}
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrLost) || time.Since(lastOK) >= ttl {
				onLost(err)
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
