package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ternarybob/meridian/internal/models"
	"github.com/ternarybob/meridian/internal/queue"
)

const statusPollTimeout = 5 * time.Second

// ConsumeStatus blocks, popping StepStatus events off the shared status
// channel and feeding each through HandleStatus until ctx is cancelled.
// It is the single consumer of that channel, which is what makes
// dispatch decisions linearizable with respect to observed events.
// Queue errors are logged and retried after a short backoff; malformed
// envelopes are dropped with a log, never fatal.
func (o *Orchestrator) ConsumeStatus(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg, err := o.queue.Pop(ctx, queue.StatusChannel, statusPollTimeout)
		if err != nil {
			o.logger.Error().Err(err).Str("channel", queue.StatusChannel).Msg("status channel pop failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue
		}

		var event models.StepStatus
		if err := json.Unmarshal(msg.Body, &event); err != nil {
			o.logger.Warn().Err(err).Msg("dropping undecodable status event")
		} else {
			o.HandleStatus(ctx, event)
		}
		if err := msg.Ack(ctx); err != nil {
			o.logger.Warn().Err(err).Msg("failed to ack status event")
		}
	}
}
