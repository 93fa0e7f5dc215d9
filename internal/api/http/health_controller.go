package http

import (
	"net/http"
	"time"

	"ozzus/ai-taskd/internal/domain"
	"ozzus/ai-taskd/internal/service"

	"github.com/gin-gonic/gin"
)

type HealthController struct {
	taskService *service.TaskService
	agentID     string
}

func NewHealthController(taskService *service.TaskService, agentID string) *HealthController {
	return &HealthController{
		taskService: taskService,
		agentID:     agentID,
	}
}

// Health handler для проверки работоспособности сервиса
func (h *HealthController) Health(c *gin.Context) {

	if err := h.taskService.HealthCheck(c.Request.Context()); err != nil {
		response := domain.HealthResponse{
			Status:    domain.HealthStatusUnhealthy,
			Timestamp: time.Now(),
			AgentID:   h.agentID,
			Message:   err.Error(),
		}
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response := domain.HealthResponse{
		Status:    domain.HealthStatusHealthy,
		Timestamp: time.Now(),
		AgentID:   h.agentID,
		Message:   "Service is running",
	}
	c.JSON(http.StatusOK, response)
}

// Status handler для получения детального статуса сервиса
func (h *HealthController) Status(c *gin.Context) {
	status := h.taskService.GetStatus()
	c.JSON(http.StatusOK, status)
}

// Ready handler для проверки готовности принимать задачи
func (h *HealthController) Ready(c *gin.Context) {
	if err := h.taskService.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"agent":     h.agentID,
			"message":   err.Error(),
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"agent":     h.agentID,
		"message":   "Service is ready to accept tasks",
		"timestamp": time.Now(),
	})
}

// Info handler для получения общей информации о сервисе
func (h *HealthController) Info(c *gin.Context) {
	status := h.taskService.GetStatus()

	info := gin.H{
		"agent_id":  h.agentID,
		"status":    status,
		"version":   "1.0.0",
		"timestamp": time.Now(),
		"components": []string{
			"task_store",
			"event_log",
			"background_runner",
			"stream_relay",
		},
	}

	c.JSON(http.StatusOK, info)
}
