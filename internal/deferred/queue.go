// Package deferred holds calls scheduled for delivery at a future tick.
//
// Delivery is single-delivery-per-schedule: Due removes what it returns. There
// is no cancellation; receivers guard against stale or duplicate calls.
package deferred

import (
	"container/heap"
	"sync"

	"QuantSentinel/internal/model"
)

// Call is one scheduled delivery.
type Call struct {
	Ticket  string
	At      model.Tick
	Target  model.Account
	Payload model.Command
	seq     uint64
}

// Queue orders calls by (tick, insertion sequence).
type Queue struct {
	mu    sync.Mutex
	items callHeap
	seq   uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Schedule enqueues a call for delivery at tick at.
func (q *Queue) Schedule(c Call) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	c.seq = q.seq
	heap.Push(&q.items, c)
}

// Due removes and returns every call with At <= now, oldest first.
func (q *Queue) Due(now model.Tick) []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Call
	for q.items.Len() > 0 && q.items[0].At <= now {
		out = append(out, heap.Pop(&q.items).(Call))
	}
	return out
}

// Pending returns a copy of the undelivered calls in delivery order.
func (q *Queue) Pending() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	cp := make(callHeap, len(q.items))
	copy(cp, q.items)
	out := make([]Call, 0, len(cp))
	for cp.Len() > 0 {
		out = append(out, heap.Pop(&cp).(Call))
	}
	return out
}

// Restore replaces the queue contents, keeping the given order for equal ticks.
func (q *Queue) Restore(calls []Call) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
	for _, c := range calls {
		q.seq++
		c.seq = q.seq
		heap.Push(&q.items, c)
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

type callHeap []Call

func (h callHeap) Len() int { return len(h) }
func (h callHeap) Less(i, j int) bool {
	if h[i].At != h[j].At {
		return h[i].At < h[j].At
	}
	return h[i].seq < h[j].seq
}
func (h callHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *callHeap) Push(x any)   { *h = append(*h, x.(Call)) }
func (h *callHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
