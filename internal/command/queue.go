package command

import (
	"context"
	"sync"
)

// Token identifies an asynchronous device command.
type Token string

// Known command tokens.
const (
	Autocal Token = "autocal"
)

// reclaimThreshold is the backing-array capacity above which a fully drained
// queue drops its slice instead of reusing it, so a burst does not pin memory.
const reclaimThreshold = 1024

// Queue is an unbounded FIFO hand-off from any number of producers to one consumer.
// Enqueue never blocks; Dequeue waits for the next token.
type Queue struct {
	mu     sync.Mutex
	items  []Token
	notify chan struct{}
	onLen  func(int)
}

// NewQueue creates an empty queue. onLen, if non-nil, observes the length after every change.
func NewQueue(onLen func(int)) *Queue {
	return &Queue{notify: make(chan struct{}, 1), onLen: onLen}
}

// Enqueue appends tok and wakes the consumer.
func (q *Queue) Enqueue(tok Token) {
	q.mu.Lock()
	q.items = append(q.items, tok)
	n := len(q.items)
	q.mu.Unlock()
	q.observe(n)
	select {
	case q.notify <- struct{}{}:
	default: // a wake-up is already pending
	}
}

// Dequeue returns the oldest token, waiting until one is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (Token, error) {
	for {
		if tok, ok := q.pop(); ok {
			return tok, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// TryDequeue returns the oldest token without waiting.
func (q *Queue) TryDequeue() (Token, bool) { return q.pop() }

// Len returns the number of waiting tokens.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (Token, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return "", false
	}
	tok := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 && cap(q.items) > reclaimThreshold {
		q.items = nil
	}
	n := len(q.items)
	q.mu.Unlock()
	q.observe(n)
	return tok, true
}

func (q *Queue) observe(n int) {
	if q.onLen != nil {
		q.onLen(n)
	}
}
