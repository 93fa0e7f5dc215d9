package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ozzus/ai-taskd/internal/domain"
)

// failPrefix makes the scripted agent return an error, so the FAILED path
// can be exercised end to end without a real model behind it.
const failPrefix = "fail:"

// Scripted is a deterministic task body. It stands in for the model-backed
// agent in local runs and tests: a few progress events, then a result that
// echoes the prompt.
type Scripted struct {
	steps     int
	stepDelay time.Duration
}

func NewScripted(steps int, stepDelay time.Duration) *Scripted {
	if steps <= 0 {
		steps = 4
	}

	return &Scripted{
		steps:     steps,
		stepDelay: stepDelay,
	}
}

func (a *Scripted) Run(ctx context.Context, task domain.Task, emit domain.EventEmitter) error {
	if reason, ok := strings.CutPrefix(task.InitPrompt, failPrefix); ok {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			reason = "scripted failure"
		}
		return errors.New(reason)
	}

	for step := 1; step <= a.steps; step++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("scripted agent interrupted: %w", err)
		}

		emit.Emit("progress", map[string]any{
			"step":  step,
			"total": a.steps,
			"pct":   step * 100 / a.steps,
		})

		if a.stepDelay > 0 {
			time.Sleep(a.stepDelay)
		}
	}

	emit.Emit("result", map[string]any{
		"echo": task.InitPrompt,
	})

	return nil
}
