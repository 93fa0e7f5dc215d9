package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event names reserved by the streaming protocol. Any other name comes
// from the agent itself via the emitter.
const (
	EventNameLog    = "log"
	EventNameStatus = "status"
)

// StreamEvent is one named, JSON-encoded event delivered to a stream consumer.
type StreamEvent struct {
	Name string
	Data json.RawMessage
}

// EventEmitter is the capability handed to the agent body for progress
// reporting. The record is durable in the task log before Emit returns.
type EventEmitter interface {
	Emit(eventType string, data any)
}

// EncodeEventMessage serializes a structured event into the log message
// convention: the event type in brackets, one space, then the JSON payload.
func EncodeEventMessage(eventType string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event data: %w", err)
	}
	return fmt.Sprintf("[%s] %s", eventType, payload), nil
}

// DecodeEventMessage attempts to parse a log message as a structured event.
// A message that does not follow the convention, or whose payload is not
// valid JSON, is reported as not structured; the caller falls back to the
// generic log event.
func DecodeEventMessage(msg string) (eventType string, data json.RawMessage, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", nil, false
	}

	end := strings.Index(msg, "]")
	if end < 0 {
		return "", nil, false
	}

	eventType = msg[1:end]
	if eventType == "" || end+2 > len(msg) {
		return "", nil, false
	}

	payload := []byte(msg[end+2:])
	if !json.Valid(payload) {
		return "", nil, false
	}

	return eventType, json.RawMessage(payload), true
}

// LogEventData is the payload of the generic "log" event.
type LogEventData struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// StatusEventData is the payload of the terminal "status" event, always the
// last event of a stream.
type StatusEventData struct {
	Status       TaskStatus `json:"status"`
	FinishedAt   *time.Time `json:"finished_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}
