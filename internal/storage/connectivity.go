package storage

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Connectivity tracks whether the store answered its last ping.
type Connectivity struct {
	connected atomic.Bool
}

// Connected reports the last observed state.
func (c *Connectivity) Connected() bool {
	return c.connected.Load()
}

// WatchConnectivity pings the store every interval until ctx is done,
// logging each transition between connected and disconnected. The first
// ping happens immediately.
func WatchConnectivity(ctx context.Context, s Store, interval time.Duration, log *slog.Logger) *Connectivity {
	c := &Connectivity{}
	c.check(ctx, s, interval, log, true)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.check(ctx, s, interval, log, false)
			}
		}
	}()

	return c
}

func (c *Connectivity) check(ctx context.Context, s Store, timeout time.Duration, log *slog.Logger, first bool) {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.Ping(pingCtx)
	up := err == nil
	prev := c.connected.Swap(up)
	if !first && prev == up {
		return
	}

	if up {
		log.Info("store connected")
	} else {
		log.Warn("store disconnected, retrying", "error", err)
	}
}
