package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned by AsyncPublisher when the worker falls behind.
var ErrBufferFull = errors.New("audit buffer full")

// AsyncPublisher hands events to a Worker without blocking the request path.
type AsyncPublisher struct {
	inbox chan<- Event
}

func (p *AsyncPublisher) Emit(_ context.Context, event Event) error {
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// Worker drains buffered events into a sink. Sink failures are logged and
// the event dropped; audit delivery is best effort.
type Worker struct {
	sink   Publisher
	inbox  chan Event
	logger *slog.Logger
}

func NewWorker(sink Publisher, buffer int, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sink: sink, inbox: make(chan Event, buffer), logger: logger}
}

// Publisher returns the non-blocking front of this worker.
func (w *Worker) Publisher() *AsyncPublisher {
	return &AsyncPublisher{inbox: w.inbox}
}

// Run delivers events until ctx is done, then flushes what is already queued.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.sink.Emit(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "audit delivery failed",
			"action", event.Action,
			"address", event.Address,
			"error", err,
		)
	}
}
