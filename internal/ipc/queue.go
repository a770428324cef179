// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package ipc

import "sync"

// DefaultQueueCapacity is the stock inbound queue size.
const DefaultQueueCapacity = 64

// Queue is a fixed-capacity FIFO ring of decoded messages. Push never
// blocks; it fails when the ring is full.
type Queue struct {
	mu    sync.Mutex
	buf   []Message
	head  int
	count int
}

// NewQueue returns an empty queue holding at most capacity messages.
// A non-positive capacity takes DefaultQueueCapacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{buf: make([]Message, capacity)}
}

// Push appends msg. It returns false, leaving the queue unchanged, when the
// queue is full.
func (q *Queue) Push(msg Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == len(q.buf) {
		return false
	}
	q.buf[(q.head+q.count)%len(q.buf)] = msg
	q.count++
	return true
}

// Pop removes and returns the oldest message.
func (q *Queue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return Message{}, false
	}
	msg := q.buf[q.head]
	q.buf[q.head] = Message{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return msg, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *Queue) Cap() int {
	return len(q.buf)
}

// Clear drops every queued message.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	clear(q.buf)
	q.head = 0
	q.count = 0
}
