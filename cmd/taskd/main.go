package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ozzus/ai-taskd/internal/agent"
	apihttp "ozzus/ai-taskd/internal/api/http"
	"ozzus/ai-taskd/internal/backend"
	"ozzus/ai-taskd/internal/config"
	"ozzus/ai-taskd/internal/lib/logger/slogpretty"
	"ozzus/ai-taskd/internal/repository"
	"ozzus/ai-taskd/internal/repository/kafka"
	"ozzus/ai-taskd/internal/service"

	"github.com/joho/godotenv"
)

func main() {

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log := setupLogger(cfg.Env)

	log.Info("starting application",
		"env", cfg.Env,
		"agent", cfg.Agent.Name,
	)

	taskRepo := repository.NewInMemoryTaskRepository()
	logRepo := repository.NewInMemoryLogRepository()

	logSink := repository.NewNoopLogSink()
	if cfg.Kafka.Enabled {
		log.Info("initializing Kafka log mirror", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topics.Logs)

		logsProducer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Logs)
		defer logsProducer.Close()

		logSink = repository.NewKafkaLogSink(logsProducer)
	}

	taskAgent := agent.NewScripted(cfg.Agent.Steps, cfg.GetStepDelay())

	taskService := service.NewTaskService(
		taskRepo,
		logRepo,
		logSink,
		taskAgent,
		log,
		service.Config{
			AgentID:      cfg.Agent.Name,
			PollInterval: cfg.GetPollInterval(),
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	if cfg.Backend.Enabled {
		backendClient, err := backend.NewClient(cfg.Backend.URL, cfg.Agent.Name, cfg.Backend.Token)
		if err != nil {
			log.Error("failed to initialize backend client", "error", err)
			os.Exit(1)
		}

		taskService.WithNotifier(backendClient)
		startHeartbeat(ctx, &wg, backendClient, log, heartbeatInterval)
	}

	taskController := apihttp.NewTaskController(taskService)
	healthController := apihttp.NewHealthController(taskService, cfg.Agent.Name)

	router := apihttp.NewRouter(taskController, healthController, log)

	httpServer := &nethttp.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting http server", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("application started and ready",
		"port", cfg.Server.Port,
		"agent_id", cfg.Agent.Name,
	)

	<-quit
	log.Info("shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}

	wg.Wait()
	log.Info("service stopped gracefully")
}

const (
	envLocal          = "local"
	envDev            = "dev"
	envProd           = "prod"
	heartbeatInterval = 30 * time.Second
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func startHeartbeat(ctx context.Context, wg *sync.WaitGroup, client *backend.Client, log *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	send := func() {
		hbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := client.Heartbeat(hbCtx); err != nil {
			log.Error("heartbeat failed", "error", err.Error())
			return
		}

		log.Debug("heartbeat sent")
	}

	if wg != nil {
		wg.Add(1)
	}

	go func() {
		if wg != nil {
			defer wg.Done()
		}

		send()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				send()
			case <-ctx.Done():
				log.Debug("heartbeat loop stopped")
				return
			}
		}
	}()
}
