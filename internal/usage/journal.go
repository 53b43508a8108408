// Package usage keeps an asynchronous journal of generation activity for
// reporting. The journal is observational: balance correctness lives in the
// ledger, so dropped journal entries under load cost reporting fidelity, not
// money.
package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phuetz/MySoulmate-sub000/internal/utils"
)

// Entry is one journaled generation or stream session.
type Entry struct {
	RequestID   string
	RequesterID string
	Capability  string
	ProviderID  string
	Units       int64
	LatencyMs   int64
	Status      string // success | failure
	CreatedAt   time.Time
}

const (
	defaultQueueSize     = 1024
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
)

// Journal is an asynchronous batching writer for the usage_journal table.
//
// - Non-blocking: Record() never waits; entries are dropped when the queue
//   is full.
// - Batching: entries are flushed in groups or on a timer.
// - Graceful shutdown: Close() drains the queue before returning.
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	queue chan Entry
	wg    sync.WaitGroup

	batchSize     int
	flushInterval time.Duration

	queued  uint64
	written uint64
	dropped uint64
}

// NewJournal creates and starts a Journal.
func NewJournal(pool *pgxpool.Pool, logger *slog.Logger) *Journal {
	j := &Journal{
		pool:          pool,
		logger:        logger,
		queue:         make(chan Entry, defaultQueueSize),
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
	}

	j.wg.Add(1)
	go j.worker()

	return j
}

// Record queues an entry. Never blocks; drops when the queue is full.
func (j *Journal) Record(e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.NowUTC()
	}

	select {
	case j.queue <- e:
		atomic.AddUint64(&j.queued, 1)
	default:
		atomic.AddUint64(&j.dropped, 1)
		j.logger.Warn("Usage journal entry dropped: queue full",
			"request_id", e.RequestID,
			"queue_cap", cap(j.queue),
		)
	}
}

// Close stops the worker after draining the queue.
func (j *Journal) Close() {
	close(j.queue)
	j.wg.Wait()
}

// Stats returns queued/written/dropped counters.
func (j *Journal) Stats() (queued, written, dropped uint64) {
	return atomic.LoadUint64(&j.queued),
		atomic.LoadUint64(&j.written),
		atomic.LoadUint64(&j.dropped)
}

func (j *Journal) worker() {
	defer j.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			j.logger.Error("Usage journal worker panicked", "panic", r)
		}
	}()

	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, j.batchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		j.writeBatch(batch)
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= j.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (j *Journal) writeBatch(batch []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		j.logger.Error("Usage journal batch failed: begin tx", "error", err, "batch_size", len(batch))
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, e := range batch {
		if _, err := tx.Exec(ctx,
			`INSERT INTO usage_journal
			   (request_id, requester_id, capability, provider_id, units,
			    latency_ms, status, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.RequestID, e.RequesterID, e.Capability, e.ProviderID,
			e.Units, e.LatencyMs, e.Status, e.CreatedAt,
		); err != nil {
			j.logger.Error("Usage journal batch failed: insert", "error", err, "request_id", e.RequestID)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		j.logger.Error("Usage journal batch failed: commit", "error", err, "batch_size", len(batch))
		return
	}

	atomic.AddUint64(&j.written, uint64(len(batch)))
	j.logger.Debug("Usage journal batch written", "batch_size", len(batch))
}
