//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/core"
	"github.com/agenthands/synergy/internal/driver"
	"github.com/agenthands/synergy/internal/llm"
	"github.com/agenthands/synergy/internal/perspective"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/signal"
	"github.com/agenthands/synergy/internal/subject"
)

type fixedLLM struct{}

func (fixedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return `{"conversationData": {"name": "Ramen", "summary": "Planning a ramen dinner."},
	"currentSubgroup": null,
	"newSubgroup": {"name": "Dinner plans", "summary": "Picking a ramen place.", "topics": [{"name": "ramen", "relevance": 90}]}}`, nil
}

func (fixedLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func TestMemgraphFullFlow(t *testing.T) {
	_ = godotenv.Load("../../.env")

	uri := os.Getenv("MEMGRAPH_URI")
	if uri == "" {
		t.Skip("Skipping integration test: MEMGRAPH_URI not set")
	}
	ctx := context.Background()

	d, err := driver.NewMemgraphDriver(ctx, uri, os.Getenv("MEMGRAPH_USER"), os.Getenv("MEMGRAPH_PASSWORD"), nil)
	require.NoError(t, err)
	defer d.Close(context.Background())
	require.NoError(t, d.BuildIndices(ctx))

	neighbourhood := fmt.Sprintf("test-%s", uuid.New().String())
	store := perspective.NewMemgraph(d, neighbourhood, "did:alice")
	peer := signal.NewHub().Join("did:alice")
	defer peer.Close()

	runner := llm.NewTaskRunner(fixedLLM{}, fixedLLM{})
	syn := core.NewSynergy(core.Deps{
		Store:         store,
		Agent:         platform.StaticAgent{DID: "did:alice", Model: "fixed"},
		Neighbourhood: peer,
		AI:            runner,
		Embedder:      runner,
	}, config.Default().Synergy, "", nil)
	defer syn.Close()

	channel := "channel-" + uuid.New().String()
	for i := 0; i < 8; i++ {
		_, err := syn.Repo.Create(ctx, subject.TypeMessage, channel, map[string]string{"body": fmt.Sprintf("ramen message %d", i)})
		require.NoError(t, err)
	}

	coord, err := syn.Coordinator(channel)
	require.NoError(t, err)
	res, err := coord.RunProcessingCheck(ctx)
	require.NoError(t, err)
	assert.True(t, res.Responsible)
	assert.Len(t, res.Processed, 5)

	views, err := syn.Conversations(ctx, channel)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Ramen", views[0].Name)
	require.Len(t, views[0].Subgroups, 1)
	assert.Len(t, views[0].Subgroups[0].Items, 5)

	left, err := coord.Unprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, left, 3)

	// Cleanup
	_, _ = d.ExecuteQuery(ctx, `MATCH (n {perspective: $p}) DETACH DELETE n`, map[string]interface{}{"p": neighbourhood})
}
