package election

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/platform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const me = "did:me"

// MockNeighbourhood records probes and answers them for the agents in live.
type MockNeighbourhood struct {
	mu         sync.Mutex
	Sent       []string
	Live       map[string]bool
	Correlator *Correlator
}

func (m *MockNeighbourhood) SendSignal(ctx context.Context, recipient string, link platform.Link) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, recipient)
	live := m.Live[recipient]
	m.mu.Unlock()
	if live && link.Predicate == model.CanYouProcessItems {
		m.Correlator.Resolve(link.Target)
	}
	return nil
}

func (m *MockNeighbourhood) Broadcast(ctx context.Context, link platform.Link) error {
	return nil
}

func (m *MockNeighbourhood) Subscribe(fn func(platform.Signal)) func() {
	return func() {}
}

func newResolver(live map[string]bool) (*Resolver, *MockNeighbourhood) {
	c := NewCorrelator()
	nb := &MockNeighbourhood{Live: live, Correlator: c}
	r := NewResolver(platform.StaticAgent{DID: me, Model: "m"}, nb, c, 5, 3, 20*time.Millisecond, nil)
	return r, nb
}

func queue(authors ...string) []model.Item {
	items := make([]model.Item, len(authors))
	for i, a := range authors {
		items[i] = model.Item{ID: string(rune('a' + i)), Author: a}
	}
	return items
}

func alternating(n int, first, second string) []model.Item {
	authors := make([]string, n)
	for i := range authors {
		if i%2 == 0 {
			authors[i] = first
		} else {
			authors[i] = second
		}
	}
	return queue(authors...)
}

func TestResponsible_BelowThreshold(t *testing.T) {
	r, nb := newResolver(nil)

	ok, err := r.Responsible(context.Background(), queue(me, me, me, me, me, me, me))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, nb.Sent)
}

func TestResponsible_EvaluatesFifthItem(t *testing.T) {
	r, nb := newResolver(nil)

	ok, err := r.Responsible(context.Background(), queue("did:x", "did:x", "did:x", "did:x", me, "did:x", "did:x", "did:x"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, nb.Sent)
}

func TestResponsible_DefersToLiveAuthor(t *testing.T) {
	r, nb := newResolver(map[string]bool{"did:bob": true})

	ok, err := r.Responsible(context.Background(), alternating(9, "did:bob", me))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"did:bob"}, nb.Sent)
	assert.Zero(t, r.Correlator.Len())
}

func TestResponsible_SilentAuthorIsSkipped(t *testing.T) {
	r, nb := newResolver(nil)

	ok, err := r.Responsible(context.Background(), alternating(9, "did:bob", me))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"did:bob"}, nb.Sent)
}

func TestResponsible_QueueExhaustedAfterRetry(t *testing.T) {
	r, nb := newResolver(nil)

	ok, err := r.Responsible(context.Background(), alternating(8, "did:bob", me))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"did:bob"}, nb.Sent)
}

func TestResponsible_NeverForRemoteAuthors(t *testing.T) {
	r, nb := newResolver(nil)

	ok, err := r.Responsible(context.Background(), alternating(12, "did:bob", "did:carol"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"did:bob", "did:carol", "did:bob", "did:carol", "did:bob"}, nb.Sent)
}

func TestResponsible_ContextCancelled(t *testing.T) {
	r, _ := newResolver(nil)
	r.Timeout = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Responsible(ctx, alternating(9, "did:bob", me))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCorrelator(t *testing.T) {
	c := NewCorrelator()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	assert.False(t, c.Resolve("unknown"))

	done, forget := c.Register("t1", time.Second)
	assert.True(t, c.Resolve("t1"))
	<-done
	assert.False(t, c.Resolve("t1"), "duplicate responses are not matched twice")
	forget()

	_, forget = c.Register("t2", time.Second)
	forget()
	assert.False(t, c.Resolve("t2"), "late responses are ignored")

	c.Register("t3", time.Second)
	c.Register("t4", time.Minute)
	now = now.Add(2 * time.Second)
	assert.False(t, c.Resolve("t3"))
	assert.Equal(t, 1, c.Len())

	c.Register("t5", time.Second)
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, c.Prune())
	assert.Zero(t, c.Len())
}
