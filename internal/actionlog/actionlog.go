// v0
// actionlog.go
package actionlog

import (
	"context"
	"log/slog"
	"sync"

	"nrgchamp/ctrlcore/internal/domain"
	"nrgchamp/ctrlcore/internal/store"
)

// MaxRetryAttempts bounds how many times a failed write is retried before
// the entry is dropped (spec §4.2).
const MaxRetryAttempts = 10

// queueEntry pairs a record with its retry attempt counter.
type queueEntry struct {
	record  domain.ActionLogRecord
	attempt int
}

// Mirror is the optional best-effort action-log mirror. A nil Mirror
// disables mirroring entirely. Mirroring failures are logged and dropped;
// they never affect durability of the primary store write.
type Mirror interface {
	Publish(ctx context.Context, rec domain.ActionLogRecord) error
}

// Queue is the process-wide Action Log Queue (spec §4.2): a durable,
// bounded-retry write-behind queue in front of the persistent store's
// action log. The Plan Executor enqueues; a drain loop (run by the Control
// Loop or its own ticker) calls Drain to flush.
type Queue struct {
	mu     sync.Mutex
	items  []queueEntry
	store  store.ActionLogStore
	mirror Mirror
	log    *slog.Logger
}

func New(s store.ActionLogStore, mirror Mirror, log *slog.Logger) *Queue {
	return &Queue{store: s, mirror: mirror, log: log}
}

// Enqueue appends rec to the tail of the queue.
func (q *Queue) Enqueue(rec domain.ActionLogRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queueEntry{record: rec})
}

// Size returns the number of entries currently queued.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// DrainResult summarizes one call to Drain.
type DrainResult struct {
	Succeeded int
	Failed    int
	Exhausted int
	Remaining int
}

// Drain attempts to write every currently-queued entry to the persistent
// store, in order. A write failure returns the entry to the head of the
// queue with an incremented attempt counter; after MaxRetryAttempts it is
// dropped with an ERROR log instead of retried again. Mirroring (if
// configured) is attempted only after a successful durable write, and its
// failure does not affect the entry's retry accounting.
func (q *Queue) Drain(ctx context.Context) DrainResult {
	q.mu.Lock()
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	var result DrainResult
	var retry []queueEntry
	for _, e := range pending {
		if err := q.store.AppendActionLog(e.record); err != nil {
			e.attempt++
			if e.attempt >= MaxRetryAttempts {
				result.Exhausted++
				q.log.Error("action log entry exhausted retries, dropping",
					"device", e.record.Device, "attempts", e.attempt, "error", err)
				continue
			}
			result.Failed++
			retry = append(retry, e)
			continue
		}
		result.Succeeded++
		if q.mirror != nil {
			if err := q.mirror.Publish(ctx, e.record); err != nil {
				q.log.Warn("action log mirror publish failed", "device", e.record.Device, "error", err)
			}
		}
	}

	q.mu.Lock()
	q.items = append(retry, q.items...)
	result.Remaining = len(q.items)
	q.mu.Unlock()

	return result
}
