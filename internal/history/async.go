package history

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned by AsyncRecorder.Record when the write queue has
// no room. The entry is dropped.
var ErrQueueFull = errors.New("history: write queue full")

const (
	// DefaultQueueSize is the queue capacity used when none is given.
	DefaultQueueSize = 256

	// writeTimeout bounds a single queued insert.
	writeTimeout = 2 * time.Second
)

// AsyncRecorder queues entries and writes them to a Repository from a single
// goroutine, so callers never wait on the database.
//
// Usage:
//
//	rec := history.NewAsyncRecorder(repo, 0)
//	rec.SetOnError(func(err error) { log.Warn("history write failed", "error", err) })
//	go rec.Run(ctx)
type AsyncRecorder struct {
	repo  Repository
	queue chan Entry

	mu sync.RWMutex
	// onError is called from the Run goroutine when a queued write fails.
	onError func(err error)
}

// NewAsyncRecorder creates a recorder with room for size entries. A
// non-positive size uses DefaultQueueSize.
func NewAsyncRecorder(repo Repository, size int) *AsyncRecorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncRecorder{
		repo:  repo,
		queue: make(chan Entry, size),
	}
}

// Record queues e without blocking. It returns ErrMissingPath for an
// incomplete entry and ErrQueueFull when the queue is full.
func (a *AsyncRecorder) Record(_ context.Context, e Entry) error {
	if e.DeviceID == "" || e.NodeID == "" || e.PropertyID == "" {
		return ErrMissingPath
	}
	select {
	case a.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run writes queued entries until ctx is cancelled, then writes whatever is
// still queued and returns. Run must be called exactly once.
func (a *AsyncRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return
		case e := <-a.queue:
			a.write(e)
		}
	}
}

func (a *AsyncRecorder) drain() {
	for {
		select {
		case e := <-a.queue:
			a.write(e)
		default:
			return
		}
	}
}

func (a *AsyncRecorder) write(e Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := a.repo.Record(ctx, e); err != nil {
		a.mu.RLock()
		callback := a.onError
		a.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets the callback for failed writes.
func (a *AsyncRecorder) SetOnError(callback func(err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = callback
}

// Pending returns the number of queued entries.
func (a *AsyncRecorder) Pending() int {
	return len(a.queue)
}
