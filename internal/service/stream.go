package service

import (
	"context"
	"encoding/json"
	"time"

	"ozzus/ai-taskd/internal/domain"
)

// Stream relays the task's log to one client as a live, ordered event
// sequence. Each decodable record surfaces under its declared event type;
// anything else becomes a generic "log" event. Once the task is terminal the
// relay emits a final "status" event and returns.
//
// Every call maintains its own read offset, so concurrent streams over the
// same task are fully independent. The relay never writes: a client
// disconnect (ctx cancellation) stops this loop and nothing else.
func (s *TaskService) Stream(ctx context.Context, taskID string, send func(domain.StreamEvent) error) error {
	if _, err := s.taskRepo.Get(taskID); err != nil {
		return err
	}

	offset := 0

	for {
		// Snapshot the status before draining the log: records are always
		// appended before the terminal transition, so a terminal snapshot
		// guarantees the drain below sees every record.
		snapshot, err := s.taskRepo.Get(taskID)
		if err != nil {
			return err
		}

		records, next := s.logRepo.ReadFrom(taskID, offset)
		for _, record := range records {
			if err := send(decodeRecord(record)); err != nil {
				return err
			}
		}
		offset = next

		if snapshot.Status.IsTerminal() {
			return send(statusEvent(snapshot))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

func decodeRecord(record domain.LogRecord) domain.StreamEvent {
	if eventType, data, ok := domain.DecodeEventMessage(record.Message); ok {
		return domain.StreamEvent{Name: eventType, Data: data}
	}

	// Not a structured event (or a malformed one): deliver as plain log
	// rather than failing the stream.
	payload, _ := json.Marshal(domain.LogEventData{
		Timestamp: record.Timestamp,
		Message:   record.Message,
	})

	return domain.StreamEvent{Name: domain.EventNameLog, Data: payload}
}

func statusEvent(task domain.Task) domain.StreamEvent {
	payload, _ := json.Marshal(domain.StatusEventData{
		Status:       task.Status,
		FinishedAt:   task.FinishedAt,
		ErrorMessage: task.ErrorMessage,
	})

	return domain.StreamEvent{Name: domain.EventNameStatus, Data: payload}
}
