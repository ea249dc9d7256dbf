package ble

import "sync"

// Queue is an unbounded FIFO of rendered messages shared between the
// notification callback (producer) and the caller (consumer).
type Queue struct {
	mu    sync.Mutex
	items []string
}

// Push appends msg at the tail.
func (q *Queue) Push(msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
}

// Pop removes and returns the oldest message. It never blocks; ok is false
// when the queue is empty.
func (q *Queue) Pop() (msg string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	msg = q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return msg, true
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
