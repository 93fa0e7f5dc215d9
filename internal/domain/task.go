package domain

import (
	"errors"
	"time"
)

// статус жизненного цикла задачи

type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
)

// IsTerminal reports whether no further transition or log append may follow.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task status transition")
)

type Task struct {
	ID           string     `json:"task_id"`
	Status       TaskStatus `json:"status"`
	InitPrompt   string     `json:"init_prompt"`
	Verbose      bool       `json:"verbose"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Список задач
type TaskList struct {
	Tasks []Task `json:"tasks"`
	Total int    `json:"total"`
}
