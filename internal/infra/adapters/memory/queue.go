package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"speech-to-text/internal/domain/ports/adapter"
)

var _ adapter.Queue = (*Queue)(nil)

// Queue is an in-process adapter.Queue. Received messages stay in flight
// until deleted; there is no visibility timeout.
type Queue struct {
	name string

	mu       sync.Mutex
	seq      int
	ready    []adapter.Message
	inflight map[string]adapter.Message
	notify   chan struct{}
}

func NewQueue(name string) *Queue {
	return &Queue{
		name:     name,
		inflight: make(map[string]adapter.Message),
		notify:   make(chan struct{}, 1),
	}
}

func (q *Queue) Name() string { return q.name }

// Send appends body to the queue.
func (q *Queue) Send(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	q.seq++
	id := strconv.Itoa(q.seq)
	q.ready = append(q.ready, adapter.Message{ID: id, Body: append([]byte(nil), body...), Receipt: id})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Receive takes up to max ready messages, waiting up to wait for the first.
func (q *Queue) Receive(ctx context.Context, max int, wait time.Duration) ([]adapter.Message, error) {
	if max < 1 {
		max = 1
	}
	var timer <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timer = t.C
	}
	for {
		if msgs := q.take(max); len(msgs) > 0 {
			return msgs, nil
		}
		if timer == nil {
			return nil, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, nil
		case <-q.notify:
		}
	}
}

func (q *Queue) take(max int) []adapter.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.ready)
	if n > max {
		n = max
	}
	if n == 0 {
		return nil
	}
	out := make([]adapter.Message, n)
	copy(out, q.ready[:n])
	q.ready = q.ready[n:]
	for _, m := range out {
		q.inflight[m.Receipt] = m
	}
	return out
}

// Delete acknowledges an in-flight message. Unknown receipts are ignored.
func (q *Queue) Delete(ctx context.Context, msg adapter.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	delete(q.inflight, msg.Receipt)
	q.mu.Unlock()
	return nil
}

// Len reports ready and in-flight message counts.
func (q *Queue) Len() (ready, inflight int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready), len(q.inflight)
}

// Bodies returns the ready message bodies without receiving them.
func (q *Queue) Bodies() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([][]byte, len(q.ready))
	for i, m := range q.ready {
		out[i] = m.Body
	}
	return out
}
