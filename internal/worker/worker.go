// internal/worker/worker.go
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/Slade66/hourglass/internal/queue"
	"github.com/Slade66/hourglass/pkg/task"
)

// DefaultRetryDelay is the pause after a failed stream read.
const DefaultRetryDelay = 5 * time.Second

// Applier executes a command against the live hourglasses.
type Applier interface {
	Apply(ctx context.Context, cmd task.Command) error
}

// ErrorRecorder publishes why a command was rejected.
type ErrorRecorder interface {
	UpdateError(ctx context.Context, id, errMsg string) error
}

// Worker is the consumer loop that turns stream messages into hourglass operations.
type Worker struct {
	consumer   *queue.Consumer
	applier    Applier
	errors     ErrorRecorder
	log        zerolog.Logger
	retryDelay time.Duration
}

func New(consumer *queue.Consumer, applier Applier, errs ErrorRecorder, log zerolog.Logger) *Worker {
	return &Worker{
		consumer:   consumer,
		applier:    applier,
		errors:     errs,
		log:        log.With().Str("component", "worker").Logger(),
		retryDelay: DefaultRetryDelay,
	}
}

// Run processes commands until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info().Msg("worker listening for commands")
	for {
		if ctx.Err() != nil {
			w.log.Info().Msg("worker stopped")
			return
		}

		msg, err := w.consumer.Read(ctx)
		switch {
		case err == nil:
			w.handle(ctx, msg)
		case errors.Is(err, queue.ErrNoMessage):
		case errors.Is(err, queue.ErrBadPayload):
			// Undecodable commands are acked and skipped so they do not block the group.
			w.log.Error().Err(err).Str("msg_id", msg.ID).Msg("dropping command")
			w.ack(ctx, msg)
		case ctx.Err() != nil:
		default:
			w.log.Error().Err(err).Dur("retry_in", w.retryDelay).Msg("failed to read commands")
			select {
			case <-ctx.Done():
			case <-time.After(w.retryDelay):
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	cmd := msg.Command
	log := w.log.With().
		Str("hourglass_id", cmd.HourglassID.String()).
		Str("action", string(cmd.Action)).
		Logger()
	log.Debug().Str("msg_id", msg.ID).Str("stream", msg.Stream).Msg("command received")

	// Rejected commands are caller mistakes: record them and ack, never retry.
	if err := w.applier.Apply(ctx, cmd); err != nil {
		log.Warn().Err(err).Msg("command rejected")
		if err := w.errors.UpdateError(ctx, cmd.HourglassID.String(), err.Error()); err != nil {
			log.Error().Err(err).Msg("failed to record command error")
		}
	}
	w.ack(ctx, msg)
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.consumer.Ack(ctx, msg); err != nil {
		w.log.Error().Err(err).Str("msg_id", msg.ID).Msg("failed to ack command")
	}
}
