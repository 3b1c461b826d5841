package hold

import (
	"container/heap"
	"time"
)

// deadline is one scheduled expiry check.  A hold may have several queued
// deadlines after extensions; the stale ones find the hold not yet past
// expiry and do nothing.
type deadline struct {
	holdID string
	at     time.Time
}

// expiryQueue is a min-heap of deadlines ordered by time.
type expiryQueue []deadline

func (q expiryQueue) Len() int            { return len(q) }
func (q expiryQueue) Less(i, j int) bool  { return q[i].at.Before(q[j].at) }
func (q expiryQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *expiryQueue) Push(x interface{}) { *q = append(*q, x.(deadline)) }

func (q *expiryQueue) Pop() interface{} {
	old := *q
	n := len(old)
	d := old[n-1]
	*q = old[:n-1]
	return d
}

func (q *expiryQueue) schedule(holdID string, at time.Time) {
	heap.Push(q, deadline{holdID: holdID, at: at})
}

// due pops every deadline at or before now.
func (q *expiryQueue) due(now time.Time) []string {
	var ids []string
	for q.Len() > 0 && !(*q)[0].at.After(now) {
		ids = append(ids, heap.Pop(q).(deadline).holdID)
	}
	return ids
}
