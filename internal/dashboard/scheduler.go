package dashboard

import (
	"context"
	"sync"
	"time"
)

// scheduler runs a callback at a fixed interval. start replaces any running
// loop, so changing the refresh interval is a restart, not a second loop.
type scheduler struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *scheduler) start(ctx context.Context, interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if interval <= 0 {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
