package queue

import "context"

// Job handles every message of one Type. Handle runs on a worker goroutine
// and receives a context that is cancelled when the queue stops.
type Job interface {
	Name() string
	Type() string
	Handle(ctx context.Context, payload interface{}) error
}

// HandlerFunc adapts a function to a Job named after its message type.
type HandlerFunc struct {
	MsgType string
	Fn      func(ctx context.Context, payload interface{}) error
}

func (h HandlerFunc) Name() string { return h.MsgType }
func (h HandlerFunc) Type() string { return h.MsgType }
func (h HandlerFunc) Handle(ctx context.Context, payload interface{}) error {
	return h.Fn(ctx, payload)
}
