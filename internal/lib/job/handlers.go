package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func (j *JobService) handleUserLifecycleTask(ctx context.Context, t *asynq.Task) error {
	var p UserLifecyclePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// A payload that cannot be decoded never will be.
		return fmt.Errorf("failed to unmarshal user lifecycle payload: %w: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", TaskUserLifecycle).
		Str("event", string(p.Event)).
		Int64("user_id", p.UserID).
		Int64("version", p.Version).
		Time("occurred_at", p.OccurredAt).
		Msg("Processing user lifecycle event")

	if j.nrApp != nil {
		j.nrApp.RecordCustomEvent("UserLifecycle", map[string]any{
			"event":   string(p.Event),
			"user_id": p.UserID,
			"version": p.Version,
		})
	}

	return nil
}
