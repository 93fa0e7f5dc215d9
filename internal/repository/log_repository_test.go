package repository_test

import (
	"fmt"
	"sync"
	"testing"

	"ozzus/ai-taskd/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRepository_AppendAndReadFrom(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()

	repo.Append("task-1", "first")
	repo.Append("task-1", "second")
	repo.Append("task-1", "third")

	records, next := repo.ReadFrom("task-1", 0)
	require.Len(t, records, 3)
	assert.Equal(t, 3, next)
	assert.Equal(t, "first", records[0].Message)
	assert.Equal(t, "second", records[1].Message)
	assert.Equal(t, "third", records[2].Message)

	for _, record := range records {
		assert.False(t, record.Timestamp.IsZero())
	}
}

func TestLogRepository_ReadFromOffset(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()

	repo.Append("task-1", "first")
	repo.Append("task-1", "second")

	records, next := repo.ReadFrom("task-1", 1)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Message)
	assert.Equal(t, 2, next)

	// reading at the tail yields nothing and keeps the offset
	records, next = repo.ReadFrom("task-1", next)
	assert.Empty(t, records)
	assert.Equal(t, 2, next)
}

func TestLogRepository_UnknownTaskYieldsEmpty(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()

	records, next := repo.ReadFrom("no-such-task", 0)
	assert.Empty(t, records)
	assert.Equal(t, 0, next)
}

func TestLogRepository_TasksAreIsolated(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()

	repo.Append("task-1", "one")
	repo.Append("task-2", "two")

	records, _ := repo.ReadFrom("task-1", 0)
	require.Len(t, records, 1)
	assert.Equal(t, "one", records[0].Message)
}

func TestLogRepository_AppendAfterCloseIsDropped(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()

	repo.Append("task-1", "before")
	repo.Close("task-1")
	repo.Append("task-1", "straggler")

	records, next := repo.ReadFrom("task-1", 0)
	require.Len(t, records, 1)
	assert.Equal(t, "before", records[0].Message)
	assert.Equal(t, 1, next)
}

// One writer, many readers: every reader must observe a strictly growing
// prefix of the append order, never a torn or reordered record.
func TestLogRepository_ConcurrentAppendAndRead(t *testing.T) {
	repo := repository.NewInMemoryLogRepository()
	const total = 500

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			repo.Append("task-1", fmt.Sprintf("record-%d", i))
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			offset := 0
			seen := 0
			for seen < total {
				records, next := repo.ReadFrom("task-1", offset)
				for _, record := range records {
					assert.Equal(t, fmt.Sprintf("record-%d", seen), record.Message)
					seen++
				}
				offset = next
			}
		}()
	}

	<-done
	wg.Wait()
}
