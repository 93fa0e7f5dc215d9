package http

import (
	"context"
	"errors"
	"net/http"

	"ozzus/ai-taskd/internal/domain"
	"ozzus/ai-taskd/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskController struct {
	taskService *service.TaskService
}

func NewTaskController(taskService *service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

type RunRequest struct {
	InitPrompt string `json:"init_prompt" binding:"required"`
	Verbose    *bool  `json:"verbose"`
}

type RunResponse struct {
	TaskID  string            `json:"task_id"`
	Status  domain.TaskStatus `json:"status"`
	Message string            `json:"message"`
}

// Run accepts a prompt and schedules the agent in the background. The task id
// comes back immediately; progress is available via /tasks/:id/stream.
func (t *TaskController) Run(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	verbose := true
	if req.Verbose != nil {
		verbose = *req.Verbose
	}

	task := t.taskService.Submit(req.InitPrompt, verbose)

	c.JSON(http.StatusOK, RunResponse{
		TaskID:  task.ID,
		Status:  task.Status,
		Message: "task accepted, agent running in background",
	})
}

func (t *TaskController) GetTask(c *gin.Context) {
	task, err := t.taskService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (t *TaskController) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, t.taskService.List())
}

// StreamTask serves the task's log as Server-Sent Events until the task
// reaches a terminal state. The final event is always "status".
func (t *TaskController) StreamTask(c *gin.Context) {
	taskID := c.Param("id")

	if _, err := t.taskService.Get(taskID); err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // for Nginx proxy

	err := t.taskService.Stream(c.Request.Context(), taskID, func(event domain.StreamEvent) error {
		c.SSEvent(event.Name, string(event.Data))
		c.Writer.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		// A dropped connection just ends this relay; anything else is worth a log line.
		_ = c.Error(err)
	}
}
