package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/core"
	"github.com/agenthands/synergy/internal/llm"
	"github.com/agenthands/synergy/internal/perspective"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/signal"
)

type MockLLM struct {
	Response string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return m.Response, nil
}

const llmResponse = `{
  "conversationData": {"name": "Standup", "summary": "Daily standup notes."},
  "currentSubgroup": null,
  "newSubgroup": {"name": "Updates", "summary": "Status updates.", "topics": [{"name": "standup", "relevance": 100}]}
}`

func setupServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	replica, err := perspective.NewReplica("did:alice")
	require.NoError(t, err)
	peer := signal.NewHub().Join("did:alice")
	t.Cleanup(func() { _ = peer.Close() })

	runner := llm.NewTaskRunner(&MockLLM{Response: llmResponse}, nil)
	syn := core.NewSynergy(core.Deps{
		Store:         replica,
		Agent:         platform.StaticAgent{DID: "did:alice", Model: "llama"},
		Neighbourhood: peer,
		AI:            runner,
	}, config.Default().Synergy, "", nil)
	t.Cleanup(syn.Close)

	return NewServer(syn, nil).SetupRouter()
}

func do(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := setupServer(t)

	w := do(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddItem_Validation(t *testing.T) {
	r := setupServer(t)

	w := do(t, r, http.MethodPost, "/channels/general/items", map[string]string{"type": "poll"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/channels/general/items", bytes.NewBufferString("{"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcessingFlow(t *testing.T) {
	r := setupServer(t)

	for i := 0; i < 6; i++ {
		w := do(t, r, http.MethodPost, "/channels/general/items", map[string]string{"type": "message", "body": "yesterday I fixed the build"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w := do(t, r, http.MethodPost, "/channels/general/items", map[string]string{"type": "post", "title": "Release notes"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(t, r, http.MethodPost, "/channels/general/items", map[string]string{"type": "task", "name": "Ship it"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, r, http.MethodGet, "/channels/general/unprocessed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue struct {
		Items []json.RawMessage `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	assert.Len(t, queue.Items, 8)

	w = do(t, r, http.MethodPost, "/channels/general/check", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res core.CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Responsible)
	assert.Len(t, res.Processed, 5)

	w = do(t, r, http.MethodGet, "/channels/general/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var convs struct {
		Conversations []core.ConversationView `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &convs))
	require.Len(t, convs.Conversations, 1)
	assert.Equal(t, "Standup", convs.Conversations[0].Name)
	require.Len(t, convs.Conversations[0].Subgroups, 1)
	assert.Len(t, convs.Conversations[0].Subgroups[0].Items, 5)

	w = do(t, r, http.MethodGet, "/channels/general/processing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"processing": false, "in_flight": null}`, w.Body.String())

	w = do(t, r, http.MethodPost, "/channels/general/probe", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
}
