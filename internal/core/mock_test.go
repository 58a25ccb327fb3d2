package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/perspective"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/signal"
	"github.com/agenthands/synergy/internal/subject"
)

const channel = "flux://channel-1"

// MockAI answers every prompt with Respond applied to the decoded batch.
type MockAI struct {
	mu      sync.Mutex
	tasks   []platform.Task
	Respond func(in model.BatchInput) string
	Inputs  []model.BatchInput
}

func (m *MockAI) Tasks(ctx context.Context) ([]platform.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]platform.Task(nil), m.tasks...), nil
}

func (m *MockAI) AddTask(ctx context.Context, name, modelID, prompt string, examples []platform.TaskExample) (platform.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := platform.Task{ID: "task-1", Name: name, ModelID: modelID, Prompt: prompt, Examples: examples}
	m.tasks = append(m.tasks, t)
	return t, nil
}

func (m *MockAI) Prompt(ctx context.Context, taskID, input string) (string, error) {
	var in model.BatchInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.Inputs = append(m.Inputs, in)
	respond := m.Respond
	m.mu.Unlock()
	if respond == nil {
		return "not json", nil
	}
	return respond(in), nil
}

func (m *MockAI) Embed(ctx context.Context, modelName, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (m *MockAI) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) tick() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// network is a converged replica shared by peers that signal over one hub.
type network struct {
	replica *perspective.Replica
	hub     *signal.Hub
	clock   *clock
}

type peer struct {
	did  string
	syn  *Synergy
	ai   *MockAI
	repo *subject.Repository
}

func newNetwork(t *testing.T) *network {
	t.Helper()
	replica, err := perspective.NewReplica("did:observer")
	require.NoError(t, err)
	clk := &clock{t: time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)}
	replica.Now = clk.tick
	return &network{replica: replica, hub: signal.NewHub(), clock: clk}
}

func testConfig() config.SynergyConfig {
	cfg := config.Default().Synergy
	cfg.ResponseTimeout.Duration = 100 * time.Millisecond
	return cfg
}

// join starts a Synergy node for did. An empty defaultModel means the agent
// cannot process items.
func (n *network) join(t *testing.T, did, defaultModel string) *peer {
	t.Helper()
	store := n.replica.As(did)
	nb := n.hub.Join(did)
	ai := &MockAI{}

	syn := NewSynergy(Deps{
		Store:         store,
		Agent:         platform.StaticAgent{DID: did, Model: defaultModel},
		Neighbourhood: nb,
		AI:            ai,
		Embedder:      ai,
	}, testConfig(), "", nil)
	syn.Accretion.Now = n.clock.now

	t.Cleanup(func() {
		syn.Close()
		require.NoError(t, nb.Close())
	})
	return &peer{did: did, syn: syn, ai: ai, repo: subject.NewRepository(store)}
}

func (p *peer) post(t *testing.T, text string) string {
	t.Helper()
	e, err := p.repo.Create(context.Background(), subject.TypeMessage, channel, map[string]string{"body": text})
	require.NoError(t, err)
	return e.ID
}

func (p *peer) coordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := p.syn.Coordinator(channel)
	require.NoError(t, err)
	return c
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
