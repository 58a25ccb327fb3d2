// Package summary runs the conversation summarization task: it registers the
// prompt task once, submits batches and retries malformed answers.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
)

const (
	DefaultTaskName    = "flux-synergy-task"
	DefaultMaxAttempts = 5
	// defaultModelID lets the platform pick its configured model.
	defaultModelID = "default"
)

type TaskManager struct {
	AI          platform.AI
	TaskName    string
	Prompt      string
	Examples    []platform.TaskExample
	MaxAttempts int
	Log         *logger.Logger

	mu     sync.Mutex
	taskID string
}

// NewTaskManager uses the built-in prompt when prompt is empty.
func NewTaskManager(ai platform.AI, taskName, prompt string, maxAttempts int, log *logger.Logger) *TaskManager {
	if taskName == "" {
		taskName = DefaultTaskName
	}
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &TaskManager{
		AI:          ai,
		TaskName:    taskName,
		Prompt:      prompt,
		Examples:    DefaultExamples,
		MaxAttempts: maxAttempts,
		Log:         logger.OrNop(log).With("component", "summary"),
	}
}

// EnsureTask returns the id of the task named TaskName, creating it if no
// task of that name exists yet.
func (m *TaskManager) EnsureTask(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taskID != "" {
		return m.taskID, nil
	}

	tasks, err := m.AI.Tasks(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, t := range tasks {
		if t.Name == m.TaskName {
			m.taskID = t.ID
			return m.taskID, nil
		}
	}

	task, err := m.AI.AddTask(ctx, m.TaskName, defaultModelID, m.Prompt, m.Examples)
	if err != nil {
		return "", fmt.Errorf("failed to create task %s: %w", m.TaskName, err)
	}
	m.Log.Info("created summarization task", "task_id", task.ID)
	m.taskID = task.ID
	return m.taskID, nil
}

// Process submits the batch, retrying up to MaxAttempts while the answer
// fails to parse. Each retry carries the previous parse error. When every
// attempt fails, the empty result is returned with a nil error; transport
// errors are returned as is.
func (m *TaskManager) Process(ctx context.Context, input model.BatchInput) (model.BatchResult, error) {
	taskID, err := m.EnsureTask(ctx)
	if err != nil {
		return model.BatchResult{}, err
	}

	input.JSONParseError = ""
	for attempt := 1; attempt <= m.MaxAttempts; attempt++ {
		payload, err := json.Marshal(input)
		if err != nil {
			return model.BatchResult{}, fmt.Errorf("failed to encode batch: %w", err)
		}

		raw, err := m.AI.Prompt(ctx, taskID, string(payload))
		if err != nil {
			return model.BatchResult{}, fmt.Errorf("failed to prompt task: %w", err)
		}

		result, err := Parse(raw)
		if err == nil {
			return result, nil
		}

		var perr *ParseError
		if !errors.As(err, &perr) {
			return model.BatchResult{}, err
		}
		m.Log.Warn("unparseable model response", "attempt", attempt, "error", perr.Err)
		input.JSONParseError = perr.Err.Error()
	}

	m.Log.Error("giving up on model response", "attempts", m.MaxAttempts)
	return model.EmptyBatchResult(), nil
}
