package broker

import (
	"context"
	"errors"
	"time"

	"shelfmate/backend/internal/metrics"

	"go.uber.org/zap"
)

// ErrQueueFull is returned when the outbound event queue has no room left.
var ErrQueueFull = errors.New("event queue full")

type queued struct {
	subject string
	event   any
}

// Async queues events in memory and hands them to the wrapped Publisher from
// Run, so callers never wait on the broker. Events still queued when Run
// stops are flushed before it returns.
type Async struct {
	next    Publisher
	queue   chan queued
	timeout time.Duration
	logger  *zap.Logger
}

func NewAsync(next Publisher, size int, timeout time.Duration, logger *zap.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Async{
		next:    next,
		queue:   make(chan queued, size),
		timeout: timeout,
		logger:  logger,
	}
}

// Publish enqueues the event without blocking. ctx is not carried over: the
// request that produced the event may finish before it is sent.
func (a *Async) Publish(_ context.Context, subject string, event any) error {
	select {
	case a.queue <- queued{subject: subject, event: event}:
		return nil
	default:
		metrics.DomainEvents.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// Run sends queued events until ctx is cancelled.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.flush()
			return nil
		case q := <-a.queue:
			a.send(q)
		}
	}
}

func (a *Async) flush() {
	for {
		select {
		case q := <-a.queue:
			a.send(q)
		default:
			return
		}
	}
}

func (a *Async) send(q queued) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.next.Publish(ctx, q.subject, q.event); err != nil {
		metrics.DomainEvents.WithLabelValues("error").Inc()
		a.logger.Warn("publish domain event", zap.String("subject", q.subject), zap.Error(err))
		return
	}
	metrics.DomainEvents.WithLabelValues("published").Inc()
}
