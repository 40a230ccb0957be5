package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskContactTypesWarmup refreshes the cached contact-type catalogue.
	TaskContactTypesWarmup = "contact_types:warmup"
)

// ContactTypesWarmupPayload parameterises a catalogue refresh.
type ContactTypesWarmupPayload struct {
	Reason string `json:"reason"`
}

// NewContactTypesWarmupTask constructs an Asynq task.
func NewContactTypesWarmupTask(payload ContactTypesWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskContactTypesWarmup, data), nil
}
