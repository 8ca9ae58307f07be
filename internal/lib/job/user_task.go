package job

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskUserLifecycle = "user:lifecycle"
)

// UserEvent names what happened to a user.
type UserEvent string

const (
	UserCreated UserEvent = "created"
	UserUpdated UserEvent = "updated"
	UserDeleted UserEvent = "deleted"
)

// UserLifecyclePayload is published after a user write commits.
// Version is zero for deletions.
type UserLifecyclePayload struct {
	Event      UserEvent `json:"event"`
	UserID     int64     `json:"user_id"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewUserLifecycleTask(payload UserLifecyclePayload) (*asynq.Task, error) {
	if payload.UserID <= 0 {
		return nil, fmt.Errorf("user lifecycle task: invalid user id %d", payload.UserID)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskUserLifecycle,
		body,
		asynq.MaxRetry(3),
		asynq.Queue("low"),
		asynq.Timeout(30*time.Second),
	), nil
}
