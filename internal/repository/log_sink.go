package repository

import (
	"context"
	"fmt"

	"ozzus/ai-taskd/internal/domain"
	"ozzus/ai-taskd/internal/repository/kafka"
)

// LogSink mirrors task log entries to an external collector. The in-memory
// log repository stays the source of truth; the sink is best-effort.
type LogSink interface {
	SendLog(ctx context.Context, logEntry domain.LogEntry) error
}

type KafkaLogSink struct {
	logsProducer *kafka.Producer
}

func NewKafkaLogSink(logsProducer *kafka.Producer) LogSink {
	return &KafkaLogSink{
		logsProducer: logsProducer,
	}
}

func (r *KafkaLogSink) SendLog(ctx context.Context, logEntry domain.LogEntry) error {
	key := fmt.Sprintf("%s-%d", logEntry.TaskID, logEntry.Timestamp.UnixNano())
	if err := r.logsProducer.PublishEvent(ctx, key, logEntry); err != nil {
		return fmt.Errorf("failed to publish log: %w", err)
	}
	return nil
}

// NoopLogSink is used when the Kafka mirror is disabled.
type NoopLogSink struct{}

func NewNoopLogSink() LogSink {
	return NoopLogSink{}
}

func (NoopLogSink) SendLog(context.Context, domain.LogEntry) error { return nil }
