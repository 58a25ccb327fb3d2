package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agenthands/synergy/internal/platform"
)

// TaskRunner implements platform.AI on top of a generation client and an
// optional embedder. Tasks live in memory for the lifetime of the process.
type TaskRunner struct {
	LLM      LLMClient
	Embedder EmbedderClient

	mu    sync.Mutex
	tasks []platform.Task
}

func NewTaskRunner(llm LLMClient, embedder EmbedderClient) *TaskRunner {
	return &TaskRunner{LLM: llm, Embedder: embedder}
}

func (r *TaskRunner) Tasks(ctx context.Context) ([]platform.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]platform.Task(nil), r.tasks...), nil
}

func (r *TaskRunner) AddTask(ctx context.Context, name, modelID, prompt string, examples []platform.TaskExample) (platform.Task, error) {
	task := platform.Task{
		ID:       uuid.New().String(),
		Name:     name,
		ModelID:  modelID,
		Prompt:   prompt,
		Examples: append([]platform.TaskExample(nil), examples...),
	}
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
	return task, nil
}

func (r *TaskRunner) Prompt(ctx context.Context, taskID, input string) (string, error) {
	task, ok := r.task(taskID)
	if !ok {
		return "", fmt.Errorf("unknown task %s", taskID)
	}
	if r.LLM == nil {
		return "", fmt.Errorf("no llm client configured")
	}
	out, err := r.LLM.Generate(ctx, RenderTask(task, input))
	if err != nil {
		return "", fmt.Errorf("failed to run task %s: %w", task.Name, err)
	}
	return out, nil
}

// Embed ignores model; the embedder is bound to its configured model.
func (r *TaskRunner) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if r.Embedder == nil {
		return nil, ErrEmbeddingsUnsupported
	}
	vec, err := r.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return vec, nil
}

func (r *TaskRunner) task(id string) (platform.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return platform.Task{}, false
}

// RenderTask lays out the system prompt, the few-shot examples and the input
// as a single completion prompt.
func RenderTask(task platform.Task, input string) string {
	var b strings.Builder
	b.WriteString(task.Prompt)
	b.WriteString("\n\n")
	for i, ex := range task.Examples {
		fmt.Fprintf(&b, "Example %d\nInput:\n%s\nOutput:\n%s\n\n", i+1, ex.Input, ex.Output)
	}
	b.WriteString("Input:\n")
	b.WriteString(input)
	b.WriteString("\nOutput:\n")
	return b.String()
}
