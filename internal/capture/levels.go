package capture

import (
	"context"
	"sync"
	"time"
)

// levelMonitor samples the analyzer on a fixed interval and emits audio
// level notifications. It runs independently of the recorder and must be
// stopped on every teardown path, normal stop or error, so no interval
// outlives its session.
type levelMonitor struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func startLevelMonitor(ctx context.Context, interval time.Duration, analyzer *Analyzer, emit func(level int)) *levelMonitor {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	runCtx, cancel := context.WithCancel(ctx)
	m := &levelMonitor{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				emit(analyzer.Level())
			}
		}
	}()
	return m
}

// Stop cancels the monitor and waits for its final tick to drain.
// Idempotent: overlapping teardown paths may both call it.
func (m *levelMonitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() {
		m.cancel()
		<-m.done
	})
}
