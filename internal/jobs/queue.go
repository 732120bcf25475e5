package jobs

import (
	"container/heap"
	"sync"

	"github.com/aristath/sentinel/internal/errkind"
	"github.com/aristath/sentinel/internal/queue"
)

// priorityQueue is the in-memory Queue implementation the manager dequeues
// from: higher Priority first, ties broken by earliest AvailableAt.
type priorityQueue struct {
	mu    sync.Mutex
	items jobHeap
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{}
}

func (q *priorityQueue) Enqueue(job *queue.Job) error {
	if job == nil {
		return errkind.New(errkind.Invalid, "job must not be nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, job)
	return nil
}

func (q *priorityQueue) Dequeue() (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, errkind.New(errkind.NotFound, "queue is empty")
	}
	return heap.Pop(&q.items).(*queue.Job), nil
}

func (q *priorityQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

type jobHeap []*queue.Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].AvailableAt.Before(h[j].AvailableAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x interface{}) { *h = append(*h, x.(*queue.Job)) }

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
