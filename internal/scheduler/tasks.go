package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskLeadDecisionTimeout fires when an incoming lead's operator decision
// window has elapsed without an answer, rejection or spam flag.
const TaskLeadDecisionTimeout = "leads.decision.timeout"

type LeadDecisionTimeoutPayload struct {
	LeadID string `json:"leadId"`
}

func NewLeadDecisionTimeoutTask(payload LeadDecisionTimeoutPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadDecisionTimeout, data), nil
}

func ParseLeadDecisionTimeoutPayload(task *asynq.Task) (LeadDecisionTimeoutPayload, error) {
	var payload LeadDecisionTimeoutPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadDecisionTimeoutPayload{}, err
	}
	return payload, nil
}
