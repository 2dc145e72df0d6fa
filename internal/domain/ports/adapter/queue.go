package adapter

import (
	"context"
	"time"
)

// Message is one queue message. Receipt is the backend handle needed to
// delete it (SQS receipt handle, or the raw body for Redis lists).
type Message struct {
	ID      string
	Body    []byte
	Receipt string
}

// Queue is the port for the work and completion queues.
type Queue interface {
	// Receive returns at most max messages, waiting up to wait for the first one.
	// Received messages stay invisible to other consumers until deleted or
	// their visibility expires.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	Delete(ctx context.Context, msg Message) error
	Send(ctx context.Context, body []byte) error
	Name() string
}
