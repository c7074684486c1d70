package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// ErrNoReadyJob is returned by Dequeue when the queue has no job whose
// AvailableAt has passed, whether or not it holds unready jobs.
var ErrNoReadyJob = errors.New("queue: no ready job")

// MemoryQueue is an in-process priority queue ordered by Priority
// (descending) and then CreatedAt (ascending, FIFO within a priority tier).
// Jobs whose AvailableAt is still in the future are skipped by Dequeue but
// remain in the queue, so a delayed retry doesn't get lost.
type MemoryQueue struct {
	mu    sync.Mutex
	items jobHeap
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	q := &MemoryQueue{}
	heap.Init(&q.items)
	return q
}

// Enqueue adds a job to the queue.
func (q *MemoryQueue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.items, job)
	return nil
}

// Dequeue removes and returns the highest-priority ready job. It returns
// ErrNoReadyJob if the queue is empty or every job's AvailableAt is still
// in the future.
func (q *MemoryQueue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var deferred []*Job
	var ready *Job
	for q.items.Len() > 0 {
		candidate := heap.Pop(&q.items).(*Job)
		if candidate.AvailableAt.After(now) {
			deferred = append(deferred, candidate)
			continue
		}
		ready = candidate
		break
	}
	for _, job := range deferred {
		heap.Push(&q.items, job)
	}
	if ready == nil {
		return nil, ErrNoReadyJob
	}
	return ready, nil
}

// Size returns the total number of jobs in the queue, ready or not.
func (q *MemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// jobHeap implements container/heap.Interface, ordering by Priority
// descending then CreatedAt ascending.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].CreatedAt.Before(h[j].CreatedAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(*Job))
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
