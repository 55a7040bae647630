package intake

import (
	"container/heap"
	"time"

	"github.com/onduty-run/sentry-agent/pkg/alert"
)

// queuedAlert wraps an Alert waiting in the intake queue.
type queuedAlert struct {
	alert        alert.Alert
	traceID      string
	enqueuedAt   time.Time
	priorityRank int
}

// less orders lower priority_rank first (P1 before P4); ties broken by
// earlier enqueued_at (FIFO), matching the reference QueuedAlert.__lt__.
func (q *queuedAlert) less(other *queuedAlert) bool {
	if q.priorityRank != other.priorityRank {
		return q.priorityRank < other.priorityRank
	}
	return q.enqueuedAt.Before(other.enqueuedAt)
}

// priorityQueue implements container/heap.Interface over *queuedAlert.
type priorityQueue []*queuedAlert

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].less(pq[j]) }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any) {
	*pq = append(*pq, x.(*queuedAlert))
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

var _ heap.Interface = (*priorityQueue)(nil)
