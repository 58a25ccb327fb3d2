package items

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/perspective"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/subject"
)

type fixture struct {
	repo    *subject.Repository
	replica *perspective.Replica
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	replica, err := perspective.NewReplica("did:alice")
	require.NoError(t, err)
	f := &fixture{replica: replica, now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	replica.Now = func() time.Time { return f.now }
	f.repo = subject.NewRepository(replica)
	return f
}

func (f *fixture) create(t *testing.T, entityType, source string, props map[string]string) string {
	t.Helper()
	e, err := f.repo.Create(context.Background(), entityType, source, props)
	require.NoError(t, err)
	return e.ID
}

func TestAggregator_NormalizesAndOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	post := f.create(t, subject.TypePost, "channel", map[string]string{"title": "", "body": "post body"})
	f.now = f.now.Add(time.Minute)
	msg := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "hello"})
	f.now = f.now.Add(-2 * time.Minute)
	task := f.create(t, subject.TypeTask, "channel", map[string]string{"name": "do it"})

	got, err := NewAggregator(f.repo).Items(ctx, "channel")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, task, got[0].ID)
	assert.Equal(t, "kanban", got[0].Icon)
	assert.Equal(t, "do it", got[0].Text)

	assert.Equal(t, post, got[1].ID)
	assert.Equal(t, "postcard", got[1].Icon)
	assert.Equal(t, "post body", got[1].Text)

	assert.Equal(t, msg, got[2].ID)
	assert.Equal(t, model.ItemMessage, got[2].Type)
	assert.Equal(t, "did:alice", got[2].Author)
}

func TestAggregator_TiesKeepLinkOrderAndDeduplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// every entity shares the same timestamp
	m1 := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "1"})
	p1 := f.create(t, subject.TypePost, "channel", map[string]string{"title": "2"})
	m2 := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "3"})
	_, err := f.replica.AddLinks(ctx, []platform.Link{{Source: "channel", Predicate: platform.HasChild, Target: m1}})
	require.NoError(t, err)

	agg := NewAggregator(f.repo)
	first, err := agg.Items(ctx, "channel")
	require.NoError(t, err)
	assert.Equal(t, []string{m1, p1, m2}, model.ItemIDs(first))

	second, err := agg.Items(ctx, "channel")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregator_EmptyParent(t *testing.T) {
	f := newFixture(t)

	got, err := NewAggregator(f.repo).Items(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilter_Unprocessed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	conv := f.create(t, subject.TypeConversation, "channel", map[string]string{"conversation_name": "c"})
	sub := f.create(t, subject.TypeConversationSubgroup, conv, map[string]string{"subgroup_name": "s"})
	processed := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "done"})
	// linked to the conversation only, not yet claimed by a subgroup
	pending := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "pending"})
	fresh := f.create(t, subject.TypeMessage, "channel", map[string]string{"body": "fresh"})
	_, err := f.replica.AddLinks(ctx, []platform.Link{
		{Source: sub, Predicate: platform.HasChild, Target: processed},
		{Source: conv, Predicate: platform.HasChild, Target: pending},
	})
	require.NoError(t, err)

	filter := NewFilter(f.repo)
	ids, err := filter.SubgroupIDs(ctx, "channel")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{sub: true}, ids)

	all, err := NewAggregator(f.repo).Items(ctx, "channel")
	require.NoError(t, err)
	got, err := filter.Unprocessed(ctx, all, ids)
	require.NoError(t, err)
	assert.Equal(t, []string{pending, fresh}, model.ItemIDs(got))

	// nothing returned as unprocessed is a child of a known subgroup
	children, err := f.replica.ChildrenOfType(ctx, sub, subject.TypeMessage)
	require.NoError(t, err)
	for _, it := range got {
		assert.NotContains(t, children, it.ID)
	}
}

func TestWithout(t *testing.T) {
	all := []model.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	assert.Equal(t, all, Without(all, nil))
	assert.Equal(t, []string{"a", "c"}, model.ItemIDs(Without(all, map[string]bool{"b": true})))
}
