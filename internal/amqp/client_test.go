package amqp

import (
	"testing"
	"time"
)

func TestNewRunCompletedMessage(t *testing.T) {
	msg := NewRunCompletedMessage("run-1", "total", "370", 3)

	if msg.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", msg.RunID)
	}
	if msg.Variant != "total" {
		t.Errorf("Variant = %q, want total", msg.Variant)
	}
	if msg.TotalRevenue != "370" {
		t.Errorf("TotalRevenue = %q, want 370", msg.TotalRevenue)
	}
	if msg.PeriodCount != 3 {
		t.Errorf("PeriodCount = %d, want 3", msg.PeriodCount)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestRunCompletedMessageJSON(t *testing.T) {
	msg := &RunCompletedMessage{
		RunID:        "run-2",
		Variant:      "membership",
		TotalRevenue: "1024.50",
		PeriodCount:  4,
		Timestamp:    time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	parsed, err := RunCompletedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("RunCompletedMessageFromJSON: %v", err)
	}
	if parsed.RunID != msg.RunID || parsed.Variant != msg.Variant ||
		parsed.TotalRevenue != msg.TotalRevenue || parsed.PeriodCount != msg.PeriodCount {
		t.Errorf("round trip mismatch: got %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestRunCompletedMessageInvalidJSON(t *testing.T) {
	if _, err := RunCompletedMessageFromJSON([]byte(`{"period_count": "three"}`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
