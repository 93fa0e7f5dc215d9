package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ozzus/ai-taskd/internal/domain"
	"ozzus/ai-taskd/internal/repository"
)

// Agent is the task body. It runs to completion or returns an error, and may
// report progress through the emitter any number of times along the way.
type Agent interface {
	Run(ctx context.Context, task domain.Task, emit domain.EventEmitter) error
}

// Notifier receives the terminal snapshot of every finished task.
type Notifier interface {
	NotifyTaskFinished(ctx context.Context, task domain.Task) error
}

type TaskService struct {
	taskRepo repository.TaskRepository
	logRepo  repository.LogRepository
	logSink  repository.LogSink
	agent    Agent
	notifier Notifier
	log      *slog.Logger

	agentID      string
	pollInterval time.Duration
	startedAt    time.Time
}

type Config struct {
	AgentID      string
	PollInterval time.Duration
}

func NewTaskService(
	taskRepo repository.TaskRepository,
	logRepo repository.LogRepository,
	logSink repository.LogSink,
	agent Agent,
	log *slog.Logger,
	config Config,
) *TaskService {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}

	return &TaskService{
		taskRepo:     taskRepo,
		logRepo:      logRepo,
		logSink:      logSink,
		agent:        agent,
		log:          log,
		agentID:      config.AgentID,
		pollInterval: config.PollInterval,
		startedAt:    time.Now().UTC(),
	}
}

// WithNotifier enables the backend completion webhook.
func (s *TaskService) WithNotifier(notifier Notifier) {
	s.notifier = notifier
}

// Submit creates a PENDING task, schedules its runner goroutine and returns
// the snapshot immediately. The caller never waits on the body.
func (s *TaskService) Submit(initPrompt string, verbose bool) domain.Task {
	task := s.taskRepo.Create(initPrompt, verbose)

	go s.run(task)

	s.log.Info("task submitted",
		"task_id", task.ID,
		"verbose", task.Verbose,
	)

	return task
}

func (s *TaskService) Get(taskID string) (domain.Task, error) {
	return s.taskRepo.Get(taskID)
}

func (s *TaskService) List() domain.TaskList {
	tasks := s.taskRepo.List()
	return domain.TaskList{
		Tasks: tasks,
		Total: len(tasks),
	}
}

// run executes the task body detached from any caller. It is the sole writer
// for this task: every progress callback lands in the log before control
// returns to the body, and the terminal transition happens exactly once.
func (s *TaskService) run(task domain.Task) {
	ctx := context.Background()

	if err := s.taskRepo.Start(task.ID); err != nil {
		s.log.Error("failed to start task", "task_id", task.ID, "error", err)
		return
	}

	if task.Verbose {
		s.appendLog(ctx, task.ID, domain.LogLevelInfo,
			fmt.Sprintf("agent started, init_prompt: %s", truncate(task.InitPrompt, 100)))
	}

	emitter := &logEmitter{service: s, taskID: task.ID, ctx: ctx}
	err := s.invoke(ctx, task, emitter)

	if err != nil {
		message := fmt.Sprintf("agent execution failed: %v", err)
		if task.Verbose {
			s.appendLog(ctx, task.ID, domain.LogLevelError, message)
		}

		if trErr := s.taskRepo.Fail(task.ID, message); trErr != nil {
			s.log.Error("failed to mark task failed", "task_id", task.ID, "error", trErr)
		}
	} else {
		if task.Verbose {
			s.appendLog(ctx, task.ID, domain.LogLevelInfo, "agent execution finished")
		}

		if trErr := s.taskRepo.Succeed(task.ID); trErr != nil {
			s.log.Error("failed to mark task succeeded", "task_id", task.ID, "error", trErr)
		}
	}

	// The sequence is sealed together with the terminal transition; a body
	// goroutine straggling past this point can no longer grow the log.
	s.logRepo.Close(task.ID)

	s.log.Info("task finished", "task_id", task.ID, "failed", err != nil)

	s.notifyFinished(ctx, task.ID)
}

// invoke contains the body's failure to this boundary: an error return and a
// panic are both converted to data, never re-raised towards the scheduler.
func (s *TaskService) invoke(ctx context.Context, task domain.Task, emit domain.EventEmitter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent panicked: %v", r)
		}
	}()

	return s.agent.Run(ctx, task, emit)
}

func (s *TaskService) notifyFinished(ctx context.Context, taskID string) {
	if s.notifier == nil {
		return
	}

	snapshot, err := s.taskRepo.Get(taskID)
	if err != nil {
		s.log.Error("failed to load task for notification", "task_id", taskID, "error", err)
		return
	}

	notifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.notifier.NotifyTaskFinished(notifyCtx, snapshot); err != nil {
		s.log.Warn("backend notification failed", "task_id", taskID, "error", err)
	}
}

func (s *TaskService) appendLog(ctx context.Context, taskID string, level domain.LogLevel, message string) {
	s.logRepo.Append(taskID, message)

	entry := domain.LogEntry{
		TaskID:    taskID,
		AgentID:   s.agentID,
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}

	if err := s.logSink.SendLog(ctx, entry); err != nil {
		s.log.Warn("failed to mirror log entry", "task_id", taskID, "error", err)
	}
}

// logEmitter implements domain.EventEmitter on top of the task log. The
// append completes before Emit returns, so observers see progress as it
// happens rather than after completion.
type logEmitter struct {
	service *TaskService
	taskID  string
	ctx     context.Context
}

func (e *logEmitter) Emit(eventType string, data any) {
	message, err := domain.EncodeEventMessage(eventType, data)
	if err != nil {
		e.service.log.Warn("failed to encode event, logging as plain text",
			"task_id", e.taskID,
			"event_type", eventType,
			"error", err,
		)
		message = fmt.Sprintf("[%s] %v", eventType, data)
	}

	e.service.appendLog(e.ctx, e.taskID, domain.LogLevelInfo, message)
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if s.agent == nil {
		return fmt.Errorf("no agent registered")
	}

	return nil
}

func (s *TaskService) GetStatus() map[string]interface{} {
	counts := map[domain.TaskStatus]int{}
	for _, task := range s.taskRepo.List() {
		counts[task.Status]++
	}

	return map[string]interface{}{
		"agent_id":      s.agentID,
		"uptime":        time.Since(s.startedAt).String(),
		"poll_interval": s.pollInterval.String(),
		"tasks": map[string]interface{}{
			"pending": counts[domain.StatusPending],
			"running": counts[domain.StatusRunning],
			"success": counts[domain.StatusSuccess],
			"failed":  counts[domain.StatusFailed],
		},
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
