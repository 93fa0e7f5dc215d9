package domain

import "time"

// LogRecord is one timestamped entry in a task's append-only progress log.
type LogRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// LogEntry is the externally published form of a log record
// (mirrored to the logs topic when the mirror is enabled).
type LogEntry struct {
	TaskID    string    `json:"task_id"`
	AgentID   string    `json:"agent_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
