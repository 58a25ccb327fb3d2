package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/platform"
)

type MockLLM struct {
	Prompts  []string
	Response string
	Err      error
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	return m.Response, m.Err
}

type MockEmbedder struct {
	Texts []string
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.Texts = append(m.Texts, text)
	return []float32{0.1, 0.2}, nil
}

func TestTaskRunner_AddAndPrompt(t *testing.T) {
	ctx := context.Background()
	mock := &MockLLM{Response: `{"ok":true}`}
	runner := NewTaskRunner(mock, nil)

	task, err := runner.AddTask(ctx, "flux-synergy-task", "model-1", "Summarize.", []platform.TaskExample{
		{Input: "in-1", Output: "out-1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)

	tasks, err := runner.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "flux-synergy-task", tasks[0].Name)

	out, err := runner.Prompt(ctx, task.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	require.Len(t, mock.Prompts, 1)
	assert.Contains(t, mock.Prompts[0], "Summarize.")
	assert.Contains(t, mock.Prompts[0], "out-1")
	assert.Contains(t, mock.Prompts[0], "Input:\nhello\nOutput:\n")
}

func TestTaskRunner_UnknownTask(t *testing.T) {
	runner := NewTaskRunner(&MockLLM{}, nil)

	_, err := runner.Prompt(context.Background(), "missing", "x")
	assert.Error(t, err)
}

func TestTaskRunner_GenerateError(t *testing.T) {
	ctx := context.Background()
	runner := NewTaskRunner(&MockLLM{Err: errors.New("rate limited")}, nil)
	task, err := runner.AddTask(ctx, "t", "", "p", nil)
	require.NoError(t, err)

	_, err = runner.Prompt(ctx, task.ID, "x")
	assert.ErrorContains(t, err, "rate limited")
}

func TestTaskRunner_Embed(t *testing.T) {
	ctx := context.Background()

	_, err := NewTaskRunner(&MockLLM{}, nil).Embed(ctx, "bert", "text")
	assert.ErrorIs(t, err, ErrEmbeddingsUnsupported)

	emb := &MockEmbedder{}
	vec, err := NewTaskRunner(&MockLLM{}, emb).Embed(ctx, "bert", "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
	assert.Equal(t, []string{"text"}, emb.Texts)
}
