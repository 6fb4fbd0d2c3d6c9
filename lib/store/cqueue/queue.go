package cqueue

import (
	"sync"

	"github.com/ValentinKolb/dSync/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("queue")

// DefaultCapacity bounds the number of pending blobs when the caller does
// not configure one.
const DefaultCapacity = 64

// CommitQueue decouples potentially expensive decode/merge work for large
// incoming blobs from the synchronous caller path. A single dedicated worker
// dequeues blobs in submission order and applies them via store.Set.
//
// The queue is bounded: when it is full, Submit blocks the caller until
// space frees up. This is deliberate backpressure, a submitted write is
// applied at least once and never silently dropped.
//
// Only the asynchronous merge path (applying remotely received snapshots)
// goes through the queue; latency sensitive application-facing writes call
// the store directly.
type CommitQueue struct {
	store store.IStore
	blobs chan []byte

	startOnce sync.Once
	done      chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New creates a commit queue for the given store. capacity <= 0 selects
// DefaultCapacity. The worker is not started yet, see Start.
func New(s store.IStore, capacity int) *CommitQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CommitQueue{
		store: s,
		blobs: make(chan []byte, capacity),
		done:  make(chan struct{}),
	}
}

// Start launches the single worker goroutine. Calling Start more than once
// has no effect.
func (q *CommitQueue) Start() {
	q.startOnce.Do(func() {
		go q.work()
		log.Infof("commit queue started (capacity %d)", cap(q.blobs))
	})
}

// Submit enqueues a blob for asynchronous application and returns promptly
// unless the queue is saturated, in which case it blocks until capacity
// frees. Submitting to a closed queue is an invalid operation.
func (q *CommitQueue) Submit(blob []byte) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return store.NewError(store.RetCInvalidOperation, "commit queue is closed")
	}
	q.blobs <- blob
	return nil
}

// Close stops accepting new blobs, waits until every already submitted blob
// has been applied, then stops the worker.
func (q *CommitQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Start the worker if it never ran so the drain below terminates.
	q.Start()
	close(q.blobs)
	<-q.done
}

// work applies queued blobs in submission order until the queue is closed
// and drained
func (q *CommitQueue) work() {
	defer close(q.done)
	for blob := range q.blobs {
		if err := q.store.Set(blob); err != nil {
			// malformed remote data is dropped here, the submitter has
			// long moved on
			log.Warningf("async merge rejected: %v", err)
		}
	}
}
