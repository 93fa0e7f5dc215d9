package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"ozzus/ai-taskd/internal/domain"
	"ozzus/ai-taskd/internal/repository"
	"ozzus/ai-taskd/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamFixture drives the repositories directly, playing the runner's role,
// so relay behavior can be tested against precise log/transition interleavings.
type streamFixture struct {
	taskRepo *repository.InMemoryTaskRepository
	logRepo  *repository.InMemoryLogRepository
	svc      *service.TaskService
}

func newStreamFixture(t *testing.T) *streamFixture {
	t.Helper()

	taskRepo := repository.NewInMemoryTaskRepository()
	logRepo := repository.NewInMemoryLogRepository()

	idle := agentFunc(func(context.Context, domain.Task, domain.EventEmitter) error {
		t.Fatal("the relay must never invoke the agent")
		return nil
	})

	svc := service.NewTaskService(
		taskRepo,
		logRepo,
		repository.NewNoopLogSink(),
		idle,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		service.Config{
			AgentID:      "test-agent",
			PollInterval: 10 * time.Millisecond,
		},
	)

	return &streamFixture{taskRepo: taskRepo, logRepo: logRepo, svc: svc}
}

func (f *streamFixture) finish(t *testing.T, taskID string) {
	t.Helper()
	require.NoError(t, f.taskRepo.Succeed(taskID))
	f.logRepo.Close(taskID)
}

func TestStreamUnknownTask(t *testing.T) {
	f := newStreamFixture(t)

	err := f.svc.Stream(context.Background(), "no-such-task", func(domain.StreamEvent) error {
		t.Fatal("no event expected")
		return nil
	})
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestStreamEmitsStatusEvenWithoutRecords(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))
	f.finish(t, task.ID)

	var events []domain.StreamEvent
	err := f.svc.Stream(context.Background(), task.ID, func(event domain.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventNameStatus, events[0].Name)
}

func TestStreamPreservesAppendOrder(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))

	const total = 20
	for i := 0; i < total; i++ {
		message, err := domain.EncodeEventMessage("progress", map[string]int{"seq": i})
		require.NoError(t, err)
		f.logRepo.Append(task.ID, message)
	}
	f.finish(t, task.ID)

	var events []domain.StreamEvent
	err := f.svc.Stream(context.Background(), task.ID, func(event domain.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, total+1)
	for i := 0; i < total; i++ {
		assert.Equal(t, "progress", events[i].Name)
		assert.JSONEq(t, fmt.Sprintf(`{"seq":%d}`, i), string(events[i].Data))
	}
	assert.Equal(t, domain.EventNameStatus, events[total].Name)
}

func TestStreamMalformedRecordFallsBackToLog(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))

	f.logRepo.Append(task.ID, "[tool_calls] not-json")
	f.logRepo.Append(task.ID, "plain progress line")
	f.finish(t, task.ID)

	var events []domain.StreamEvent
	err := f.svc.Stream(context.Background(), task.ID, func(event domain.StreamEvent) error {
		events = append(events, event)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 3)

	assert.Equal(t, domain.EventNameLog, events[0].Name)
	var logData domain.LogEventData
	require.NoError(t, json.Unmarshal(events[0].Data, &logData))
	assert.Equal(t, "[tool_calls] not-json", logData.Message)
	assert.False(t, logData.Timestamp.IsZero())

	assert.Equal(t, domain.EventNameLog, events[1].Name)
	assert.Equal(t, domain.EventNameStatus, events[2].Name)
}

// The relay must pick up records appended while it is already polling, and
// the terminal status event must arrive after every record that preceded the
// transition.
func TestStreamObservesLiveAppends(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))

	events := make(chan domain.StreamEvent, 16)
	done := make(chan error, 1)
	go func() {
		done <- f.svc.Stream(context.Background(), task.ID, func(event domain.StreamEvent) error {
			events <- event
			return nil
		})
	}()

	f.logRepo.Append(task.ID, `[progress] {"pct":25}`)

	first := <-events
	assert.Equal(t, "progress", first.Name)

	f.logRepo.Append(task.ID, `[progress] {"pct":75}`)
	f.finish(t, task.ID)

	second := <-events
	assert.Equal(t, "progress", second.Name)
	assert.JSONEq(t, `{"pct":75}`, string(second.Data))

	last := <-events
	assert.Equal(t, domain.EventNameStatus, last.Name)

	require.NoError(t, <-done)
}

func TestTwoStreamsAreIndependent(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))
	f.logRepo.Append(task.ID, `[progress] {"pct":10}`)

	collect := func(ctx context.Context) (<-chan []domain.StreamEvent, context.CancelFunc) {
		ctx, cancel := context.WithCancel(ctx)
		out := make(chan []domain.StreamEvent, 1)
		go func() {
			var events []domain.StreamEvent
			_ = f.svc.Stream(ctx, task.ID, func(event domain.StreamEvent) error {
				events = append(events, event)
				return nil
			})
			out <- events
		}()
		return out, cancel
	}

	firstOut, firstCancel := collect(context.Background())
	secondOut, secondCancel := collect(context.Background())
	defer secondCancel()

	// give both relays a poll cycle, then drop the first client mid-stream
	time.Sleep(50 * time.Millisecond)
	firstCancel()
	firstEvents := <-firstOut

	f.logRepo.Append(task.ID, `[progress] {"pct":90}`)
	f.finish(t, task.ID)

	secondEvents := <-secondOut

	// the surviving relay sees the full sequence
	require.Len(t, secondEvents, 3)
	assert.Equal(t, "progress", secondEvents[0].Name)
	assert.JSONEq(t, `{"pct":10}`, string(secondEvents[0].Data))
	assert.JSONEq(t, `{"pct":90}`, string(secondEvents[1].Data))
	assert.Equal(t, domain.EventNameStatus, secondEvents[2].Name)

	// the canceled relay saw a prefix, and the task kept running regardless
	require.NotEmpty(t, firstEvents)
	assert.Equal(t, "progress", firstEvents[0].Name)
}

func TestStreamStopsOnClientDisconnect(t *testing.T) {
	f := newStreamFixture(t)

	task := f.taskRepo.Create("echo-test", false)
	require.NoError(t, f.taskRepo.Start(task.ID))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- f.svc.Stream(ctx, task.ID, func(domain.StreamEvent) error {
			return nil
		})
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after disconnect")
	}

	// the task itself is untouched
	snapshot, err := f.taskRepo.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, snapshot.Status)
}
