package queue

import (
	"errors"
	"sync"
)

var ErrFull = errors.New("queue is full")
var ErrClosed = errors.New("queue is closed")

// Ref points at one pending ledger row ready for fetch. The queue is pure
// transport: the ledger stays authoritative for completion.
type Ref struct {
	ChannelID int64
	MessageID int64
	Folder    string
}

type refKey struct {
	channelID int64
	messageID int64
}

// Queue is a bounded, dedicated work transport between the scanner/ledger and
// the fetch executor. A ref stays tracked from Enqueue until Done, so rescans
// re-listing a still-queued pending row do not produce duplicate work.
type Queue struct {
	mu     sync.Mutex
	refs   chan Ref
	queued map[refKey]struct{}
	closed bool
}

func New(capacity int) *Queue {
	return &Queue{
		refs:   make(chan Ref, capacity),
		queued: make(map[refKey]struct{}),
	}
}

// Enqueue adds a ref unless it is already queued or in flight; re-enqueueing
// such a ref is a silent no-op.
func (q *Queue) Enqueue(ref Ref) error {
	key := refKey{ref.ChannelID, ref.MessageID}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	if _, ok := q.queued[key]; ok {
		return nil
	}

	select {
	case q.refs <- ref:
		q.queued[key] = struct{}{}
		return nil
	default:
		return ErrFull
	}
}

// TryDequeue removes one ref without blocking. The second return value is
// false when the queue is momentarily empty.
func (q *Queue) TryDequeue() (Ref, bool) {
	select {
	case ref, ok := <-q.refs:
		if !ok {
			return Ref{}, false
		}
		return ref, true
	default:
		return Ref{}, false
	}
}

// Done releases the dedupe guard for a ref after its fetch attempt finished,
// whatever the outcome. A failed attempt's row is still pending in the ledger
// and the next rescan may enqueue it again.
func (q *Queue) Done(ref Ref) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.queued, refKey{ref.ChannelID, ref.MessageID})
}

// Close signals that no more work will arrive. Refs already queued remain
// dequeueable for a graceful drain.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.refs)
	}
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.closed
}

// Len is the number of refs currently waiting in the queue.
func (q *Queue) Len() int {
	return len(q.refs)
}
