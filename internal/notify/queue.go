// Package notify delivers goal notifications outside the transaction that
// produced them. Delivery is best effort: an event is handed to the sender
// at most once and failures are logged, never retried.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/brokeshield/brokeshield/internal/model"
	"golang.org/x/sync/errgroup"
)

// Dispatcher accepts events without blocking the caller.
type Dispatcher interface {
	Emit(ev model.NotificationEvent)
}

const drainTimeout = 5 * time.Second

type Queue struct {
	sender  Sender
	events  chan model.NotificationEvent
	workers int
	log     *slog.Logger
}

func NewQueue(sender Sender, size, workers int, log *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}

	return &Queue{
		sender:  sender,
		events:  make(chan model.NotificationEvent, size),
		workers: workers,
		log:     log,
	}
}

// Emit enqueues ev. When the buffer is full the event is dropped and logged.
func (q *Queue) Emit(ev model.NotificationEvent) {
	select {
	case q.events <- ev:
	default:
		q.log.Warn("notification queue full, dropping event", "kind", ev.Kind, "goal_id", ev.GoalID)
	}
}

// Run delivers events until ctx is cancelled, then drains what is already
// buffered within a short grace period.
func (q *Queue) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range q.workers {
		g.Go(func() error {
			q.work(gctx)
			return nil
		})
	}
	_ = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-q.events:
			q.deliver(drainCtx, ev)
		default:
			return nil
		}
	}
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q.events:
			q.deliver(ctx, ev)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, ev model.NotificationEvent) {
	if ev.RecipientEmail == "" {
		q.log.Warn("notification has no recipient", "kind", ev.Kind, "goal_id", ev.GoalID)
		return
	}

	msg := Message{
		To:      ev.RecipientEmail,
		Subject: ev.Subject,
		Text:    ev.Body,
		HTML:    ev.HTML,
	}
	if err := q.sender.Send(ctx, msg); err != nil {
		q.log.Error("failed to send notification", "error", err, "kind", ev.Kind, "goal_id", ev.GoalID)
		return
	}

	q.log.Debug("notification delivered", "kind", ev.Kind, "goal_id", ev.GoalID)
}
