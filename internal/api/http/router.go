package http

import (
	"log/slog"

	"ozzus/ai-taskd/internal/api/http/middleware"

	"github.com/gin-gonic/gin"
)

func NewRouter(taskController *TaskController, healthController *HealthController, log *slog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(log), gin.Recovery())

	router.POST("/run", taskController.Run)
	router.GET("/tasks", taskController.ListTasks)
	router.GET("/tasks/:id", taskController.GetTask)
	router.GET("/tasks/:id/stream", taskController.StreamTask)

	router.GET("/health", healthController.Health)
	router.GET("/status", healthController.Status)
	router.GET("/ready", healthController.Ready)
	router.GET("/info", healthController.Info)

	return router
}
