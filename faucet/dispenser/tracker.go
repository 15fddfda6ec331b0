package dispenser

import (
	"container/heap"
	"sync"

	"github.com/fuellabs/go-faucet/shared/clock"
	"github.com/pkg/errors"
)

// ErrRateLimited is returned when an identity was already served within the
// rate limit window, or still has a dispense in flight.
var ErrRateLimited = errors.New("Account has already received assets today")

// trackerEntry is a served identity queued for eviction. seq breaks ties
// between entries sharing a timestamp so eviction stays insertion ordered.
type trackerEntry struct {
	ts  uint64
	seq uint64
	id  Identity
}

type evictionQueue []trackerEntry

func (q evictionQueue) Len() int { return len(q) }

func (q evictionQueue) Less(i, j int) bool {
	if q[i].ts != q[j].ts {
		return q[i].ts < q[j].ts
	}
	return q[i].seq < q[j].seq
}

func (q evictionQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *evictionQueue) Push(x interface{}) { *q = append(*q, x.(trackerEntry)) }

func (q *evictionQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// Tracker enforces at most one dispense per identity per rolling window. It
// distinguishes identities that were already served from those whose
// transaction is still in flight, so two concurrent requests can never both
// pass the rate check.
//
// The mutex is only ever held for map and heap operations, never across
// network calls.
type Tracker struct {
	mu         sync.Mutex
	clock      clock.Clock
	served     map[Identity]uint64
	inProgress map[Identity]struct{}
	queue      evictionQueue
	seq        uint64
}

// NewTracker returns an empty tracker reading time from the given clock.
func NewTracker(c clock.Clock) *Tracker {
	return &Tracker{
		clock:      c,
		served:     make(map[Identity]uint64),
		inProgress: make(map[Identity]struct{}),
	}
}

// CheckAndReserve runs the admission sequence atomically: evict entries
// older than the window, reject identities already served or in flight with
// ErrRateLimited, and otherwise mark the identity in progress.
func (t *Tracker) CheckAndReserve(id Identity, window uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.evictExpired(window)
	if _, ok := t.served[id]; ok {
		return ErrRateLimited
	}
	if _, ok := t.inProgress[id]; ok {
		return ErrRateLimited
	}
	t.inProgress[id] = struct{}{}
	return nil
}

// MarkInProgress records that a dispense for the identity was admitted.
func (t *Tracker) MarkInProgress(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inProgress[id] = struct{}{}
}

// Track moves the identity from in progress to served at the current time.
func (t *Tracker) Track(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.inProgress, id)
	now := t.clock.Now()
	t.served[id] = now
	t.seq++
	heap.Push(&t.queue, trackerEntry{ts: now, seq: t.seq, id: id})
}

// RemoveInProgress clears the in flight marker without touching served
// entries, so a failed dispense can be retried immediately.
func (t *Tracker) RemoveInProgress(id Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inProgress, id)
}

// EvictExpired drops every served entry older than the window.
func (t *Tracker) EvictExpired(window uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictExpired(window)
}

func (t *Tracker) evictExpired(window uint64) {
	now := t.clock.Now()
	for t.queue.Len() > 0 {
		oldest := t.queue[0]
		if now-oldest.ts <= window {
			break
		}
		heap.Pop(&t.queue)
		// An identity served again after this queue entry was pushed has a
		// newer timestamp; only the matching entry may erase it.
		if ts, ok := t.served[oldest.id]; ok && ts == oldest.ts {
			delete(t.served, oldest.id)
		}
	}
}

// HasTracked reports whether the identity is recorded as served.
func (t *Tracker) HasTracked(id Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.served[id]
	return ok
}

// IsInProgress reports whether a dispense for the identity is in flight.
func (t *Tracker) IsInProgress(id Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.inProgress[id]
	return ok
}
