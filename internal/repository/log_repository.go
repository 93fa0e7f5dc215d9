package repository

import (
	"sync"
	"time"

	"ozzus/ai-taskd/internal/domain"
)

type LogRepository interface {
	Append(taskID string, message string)
	ReadFrom(taskID string, offset int) ([]domain.LogRecord, int)
	Close(taskID string)
}

// InMemoryLogRepository holds one append-only record sequence per task.
// One writer per task (its runner goroutine), any number of readers.
type InMemoryLogRepository struct {
	mu      sync.RWMutex
	records map[string][]domain.LogRecord
	closed  map[string]bool
}

func NewInMemoryLogRepository() *InMemoryLogRepository {
	return &InMemoryLogRepository{
		records: make(map[string][]domain.LogRecord),
		closed:  make(map[string]bool),
	}
}

var _ LogRepository = (*InMemoryLogRepository)(nil)

// Append records a message with the current timestamp. Appends to a closed
// log are dropped: a task body straggling past its terminal transition must
// not grow the sequence any further.
func (r *InMemoryLogRepository) Append(taskID string, message string) {
	record := domain.LogRecord{
		Timestamp: time.Now().UTC(),
		Message:   message,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed[taskID] {
		return
	}

	r.records[taskID] = append(r.records[taskID], record)
}

// ReadFrom returns all records at position >= offset plus the next offset.
// An unknown task id yields an empty sequence, not an error.
func (r *InMemoryLogRepository) ReadFrom(taskID string, offset int) ([]domain.LogRecord, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.records[taskID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return nil, len(records)
	}

	tail := make([]domain.LogRecord, len(records)-offset)
	copy(tail, records[offset:])

	return tail, len(records)
}

// Close seals the sequence. Called by the runner together with the task's
// terminal transition.
func (r *InMemoryLogRepository) Close(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed[taskID] = true
}
