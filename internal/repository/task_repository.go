package repository

import (
	"fmt"
	"sync"
	"time"

	"ozzus/ai-taskd/internal/domain"

	"github.com/google/uuid"
)

type TaskRepository interface {
	Create(initPrompt string, verbose bool) domain.Task
	Get(taskID string) (domain.Task, error)
	List() []domain.Task
	Start(taskID string) error
	Succeed(taskID string) error
	Fail(taskID string, errorMessage string) error
}

// InMemoryTaskRepository keeps tasks for the lifetime of the process.
// There is no eviction: completed tasks stay queryable until restart.
type InMemoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
	order []string
}

func NewInMemoryTaskRepository() *InMemoryTaskRepository {
	return &InMemoryTaskRepository{
		tasks: make(map[string]*domain.Task),
	}
}

var _ TaskRepository = (*InMemoryTaskRepository)(nil)

func (r *InMemoryTaskRepository) Create(initPrompt string, verbose bool) domain.Task {
	task := &domain.Task{
		ID:         uuid.NewString(),
		Status:     domain.StatusPending,
		InitPrompt: initPrompt,
		Verbose:    verbose,
		CreatedAt:  time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)

	return *task
}

// Get returns a snapshot of the task. The stored record is never handed out
// directly, so callers cannot observe a transition half-applied.
func (r *InMemoryTaskRepository) Get(taskID string) (domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return domain.Task{}, fmt.Errorf("task %q: %w", taskID, domain.ErrTaskNotFound)
	}

	return *task, nil
}

func (r *InMemoryTaskRepository) List() []domain.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := make([]domain.Task, 0, len(r.order))
	for _, id := range r.order {
		tasks = append(tasks, *r.tasks[id])
	}

	return tasks
}

func (r *InMemoryTaskRepository) Start(taskID string) error {
	return r.transition(taskID, domain.StatusPending, func(task *domain.Task) {
		now := time.Now().UTC()
		task.Status = domain.StatusRunning
		task.StartedAt = &now
	})
}

func (r *InMemoryTaskRepository) Succeed(taskID string) error {
	return r.transition(taskID, domain.StatusRunning, func(task *domain.Task) {
		now := time.Now().UTC()
		task.Status = domain.StatusSuccess
		task.FinishedAt = &now
	})
}

func (r *InMemoryTaskRepository) Fail(taskID string, errorMessage string) error {
	return r.transition(taskID, domain.StatusRunning, func(task *domain.Task) {
		now := time.Now().UTC()
		task.Status = domain.StatusFailed
		task.FinishedAt = &now
		task.ErrorMessage = errorMessage
	})
}

// transition applies mutate under the lock iff the task is currently in the
// expected state. The status change and its accompanying fields are therefore
// atomic from any reader's point of view, and a terminal state can be entered
// at most once.
func (r *InMemoryTaskRepository) transition(taskID string, from domain.TaskStatus, mutate func(*domain.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, domain.ErrTaskNotFound)
	}

	if task.Status != from {
		return fmt.Errorf("task %q is %s: %w", taskID, task.Status, domain.ErrInvalidTransition)
	}

	mutate(task)

	return nil
}
