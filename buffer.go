package gazecapture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSourceClosed is returned by NextFrame once the source has stopped.
var ErrSourceClosed = errors.New("gaze-capture: frame source closed")

// frameQueue buffers frames between the acquisition callback and the trial
// machine. Policy: keep the freshest, drop the oldest; a capture must never
// see the past.
//
// Clear draws a watermark in time as well as draining the queue: a frame that
// was already in flight inside the pipeline when Clear ran carries an earlier
// timestamp and is discarded on read. That is what makes clear-then-read
// effectively atomic while acquisition never pauses.
//
// The queue outlives its producer: once closed, push is a no-op, Clear still
// drains and returns promptly, and Next reports ErrSourceClosed.
type frameQueue struct {
	ch chan Frame

	// mu guards watermark and closed, and serializes push against close:
	// a send must never overlap the channel close.
	mu        sync.Mutex
	watermark time.Time
	closed    bool

	drops   atomic.Uint64 // push found the queue full
	drained atomic.Uint64 // frames discarded by Clear or the watermark
	clears  atomic.Uint64
}

func newFrameQueue(depth int) *frameQueue {
	if depth < 1 {
		depth = 1
	}
	return &frameQueue{ch: make(chan Frame, depth)}
}

// push enqueues a frame without ever blocking the acquisition callback.
// When the queue is full the oldest entry is evicted to make room.
//
// Holding mu across the send is safe: every arm below is non-blocking, and
// with other pushers excluded the evict loop frees a slot that nothing can
// refill, so the retried send always lands.
func (q *frameQueue) push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	for {
		select {
		case q.ch <- f:
			return
		default:
		}
		select {
		case <-q.ch:
			q.drops.Add(1)
		default:
		}
	}
}

// Clear drains everything queued and stamps the watermark at now.
//
// On a closed queue the drain stops at the closed channel: a receive there
// is always ready with ok=false, so only the two-value form can tell
// "drained a frame" from "nothing left to drain". The subsequent Next is
// what reports ErrSourceClosed to the caller.
func (q *frameQueue) Clear() {
	q.mu.Lock()
	q.watermark = time.Now()
	q.mu.Unlock()
	q.clears.Add(1)

	for {
		select {
		case _, ok := <-q.ch:
			if !ok {
				return
			}
			q.drained.Add(1)
		default:
			return
		}
	}
}

// Next blocks until a frame stamped after the most recent Clear arrives.
// Stale frames that raced past the drain are discarded here.
func (q *frameQueue) Next(ctx context.Context) (Frame, error) {
	for {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case f, ok := <-q.ch:
			if !ok {
				return Frame{}, ErrSourceClosed
			}
			q.mu.Lock()
			wm := q.watermark
			q.mu.Unlock()
			if !wm.IsZero() && !f.Timestamp.After(wm) {
				q.drained.Add(1)
				continue
			}
			return f, nil
		}
	}
}

// close shuts the queue exactly once; later pushes are dropped silently and
// pending Next calls return ErrSourceClosed. Taking mu means the close can
// land before or after any given push, never inside one.
func (q *frameQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *frameQueue) stats() (drops, drained, clears uint64) {
	return q.drops.Load(), q.drained.Load(), q.clears.Load()
}
