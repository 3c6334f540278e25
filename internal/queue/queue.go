// Package queue implements the Job Queue & Worker (C5): a bounded FIFO of
// pending job keys, deduplicated against itself and the currently running
// key, drained by exactly one worker goroutine (spec.md §4.5).
package queue

import (
	"context"
	"sync"
)

// item is one queued enqueue request. ForceBisync carries the add-sync
// socket's optional force_bisync flag through to the job's force_operation.
type item struct {
	key         string
	forceBisync bool
}

// Queue is the single-worker FIFO described by spec.md §4.5's enqueue
// pseudocode. It owns its own mutex rather than sharing the supervisor's,
// since STATUS only needs a consistent read of queued/running through
// Snapshot.
type Queue struct {
	mu           sync.Mutex
	queuedSet    map[string]bool
	currentKey   string
	running      bool
	shuttingDown bool
	ch           chan item
}

// New returns an empty Queue with room for `capacity` buffered items
// before Enqueue blocks (spec.md describes the queue as a bounded
// channel/FIFO; callers should size this to the expected job count).
func New(capacity int) *Queue {
	return &Queue{
		queuedSet: make(map[string]bool),
		ch:        make(chan item, capacity),
	}
}

// Enqueue applies spec.md §4.5's enqueue policy: reject while shutting
// down; no-op if the key is already queued or currently executing;
// otherwise push it and record the force-bisync flag for the worker to
// apply before running the sync.
func (q *Queue) Enqueue(key string, forceBisync bool) (accepted bool, rejectedShuttingDown bool) {
	q.mu.Lock()
	if q.shuttingDown {
		q.mu.Unlock()
		return false, true
	}
	if q.currentKey == key || q.queuedSet[key] {
		q.mu.Unlock()
		return false, false
	}
	q.queuedSet[key] = true
	q.mu.Unlock()

	q.ch <- item{key: key, forceBisync: forceBisync}
	return true, false
}

// Take blocks until a queued item is available or ctx is cancelled. On
// success it atomically marks the key as currently running and removes
// it from the queued set, satisfying the "never in both places" queue
// invariant.
func (q *Queue) Take(ctx context.Context) (key string, forceBisync bool, ok bool) {
	select {
	case it := <-q.ch:
		q.mu.Lock()
		delete(q.queuedSet, it.key)
		q.currentKey = it.key
		q.running = true
		q.mu.Unlock()
		return it.key, it.forceBisync, true
	case <-ctx.Done():
		return "", false, false
	}
}

// Release clears the currently-running marker once the worker finishes
// processing a key.
func (q *Queue) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentKey = ""
	q.running = false
}

// BeginShutdown marks the queue as shutting down; subsequent Enqueue
// calls are rejected.
func (q *Queue) BeginShutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = true
}

// Drain removes every still-pending item without processing it, called
// once shutdown's grace period has elapsed (spec.md §4.8).
func (q *Queue) Drain() []string {
	var drained []string
	for {
		select {
		case it := <-q.ch:
			q.mu.Lock()
			delete(q.queuedSet, it.key)
			q.mu.Unlock()
			drained = append(drained, it.key)
		default:
			return drained
		}
	}
}

// Snapshot reports the currently-running key (if any) and the set of
// still-queued keys, for STATUS rendering under a single consistent lock
// acquisition (spec.md §5's "STATUS observes a consistent snapshot").
func (q *Queue) Snapshot() (currentKey string, queued []string, running bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued = make([]string, 0, len(q.queuedSet))
	for k := range q.queuedSet {
		queued = append(queued, k)
	}
	return q.currentKey, queued, q.running
}
