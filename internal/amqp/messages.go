package amqp

import (
	"encoding/json"
	"time"
)

// RunCompletedMessage is the notification published after a successful
// pipeline run. Consumers fetch the full report from the warehouse by id.
type RunCompletedMessage struct {
	RunID        string    `json:"run_id"`
	Variant      string    `json:"variant"`
	TotalRevenue string    `json:"total_revenue"`
	PeriodCount  int       `json:"period_count"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewRunCompletedMessage(runID, variant, totalRevenue string, periodCount int) *RunCompletedMessage {
	return &RunCompletedMessage{
		RunID:        runID,
		Variant:      variant,
		TotalRevenue: totalRevenue,
		PeriodCount:  periodCount,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunCompletedMessageFromJSON creates a message from JSON bytes.
func RunCompletedMessageFromJSON(data []byte) (*RunCompletedMessage, error) {
	var msg RunCompletedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
