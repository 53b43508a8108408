// Package health runs periodic database health checks behind a cached,
// lock-free status flag so request handlers never do I/O to answer a health
// probe.
package health

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Pinger is the database surface the monitor checks. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

const (
	defaultCheckInterval    = 30 * time.Second
	defaultFailureThreshold = 3
	checkTimeout            = 5 * time.Second
)

// Monitor pings the database on a fixed interval and flips a cached healthy
// flag after a configurable number of consecutive failures. Reads are
// atomic; IsHealthy never blocks.
type Monitor struct {
	db               Pinger
	checkInterval    time.Duration
	failureThreshold int32
	logger           *slog.Logger

	healthy             atomic.Bool
	consecutiveFailures atomic.Int32
}

func NewMonitor(db Pinger, checkInterval time.Duration, failureThreshold int32, log *slog.Logger) *Monitor {
	if checkInterval <= 0 {
		checkInterval = defaultCheckInterval
	}
	if failureThreshold <= 0 {
		failureThreshold = defaultFailureThreshold
	}
	m := &Monitor{
		db:               db,
		checkInterval:    checkInterval,
		failureThreshold: failureThreshold,
		logger:           log,
	}
	m.healthy.Store(true)
	return m
}

// IsHealthy returns the cached status without performing I/O.
func (m *Monitor) IsHealthy() bool {
	if m == nil {
		return true
	}
	return m.healthy.Load()
}

// Run blocks until ctx is cancelled, checking the database on every tick.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := m.db.Ping(pingCtx); err != nil {
		failures := m.consecutiveFailures.Add(1)
		m.logger.Warn("Database health check failed",
			"error", err,
			"consecutive_failures", failures,
			"threshold", m.failureThreshold,
		)
		if failures >= m.failureThreshold && m.healthy.CompareAndSwap(true, false) {
			m.logger.Error("Database marked unhealthy", "consecutive_failures", failures)
		}
		return
	}

	m.consecutiveFailures.Store(0)
	if m.healthy.CompareAndSwap(false, true) {
		m.logger.Info("Database recovered")
	}
}
