package perspective

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/synergy/internal/platform"
)

func fixedClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestReplica_QueryWildcards(t *testing.T) {
	ctx := context.Background()
	r, err := NewReplica("did:alice")
	require.NoError(t, err)
	r.Now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err = r.AddLinks(ctx, []platform.Link{
		{Source: "channel", Predicate: platform.HasChild, Target: "m1"},
		{Source: "channel", Predicate: platform.HasChild, Target: "m2"},
		{Source: "m1", Predicate: "flux://body", Target: "literal://string:hi"},
	})
	require.NoError(t, err)

	all, err := r.Query(ctx, platform.LinkQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	children, err := r.Query(ctx, platform.LinkQuery{Source: "channel", Predicate: platform.HasChild})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "m1", children[0].Data.Target)
	assert.Equal(t, "m2", children[1].Data.Target)
	assert.Equal(t, "did:alice", children[0].Author)

	parents, err := r.Query(ctx, platform.LinkQuery{Predicate: platform.HasChild, Target: "m2"})
	require.NoError(t, err)
	require.Len(t, parents, 1)
	assert.Equal(t, "channel", parents[0].Data.Source)
}

func TestReplica_ViewsShareFacts(t *testing.T) {
	ctx := context.Background()
	alice, err := NewReplica("did:alice")
	require.NoError(t, err)
	bob := alice.As("did:bob")

	_, err = bob.AddLinks(ctx, []platform.Link{{Source: "a", Predicate: "p", Target: "b"}})
	require.NoError(t, err)

	links, err := alice.Query(ctx, platform.LinkQuery{Source: "a"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "did:bob", links[0].Author)
}

func TestReplica_RemoveLinks(t *testing.T) {
	ctx := context.Background()
	r, err := NewReplica("did:alice")
	require.NoError(t, err)

	added, err := r.AddLinks(ctx, []platform.Link{
		{Source: "a", Predicate: "p", Target: "b"},
		{Source: "a", Predicate: "p", Target: "c"},
	})
	require.NoError(t, err)

	require.NoError(t, r.RemoveLinks(ctx, added[:1]))

	links, err := r.Query(ctx, platform.LinkQuery{Source: "a"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "c", links[0].Data.Target)
}

func TestReplica_ChildrenOfType(t *testing.T) {
	ctx := context.Background()
	r, err := NewReplica("did:alice")
	require.NoError(t, err)
	r.Now = fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	add := func(links ...platform.Link) {
		_, err := r.AddLinks(ctx, links)
		require.NoError(t, err)
	}
	add(platform.Link{Source: "m1", Predicate: platform.EntryType, Target: "flux://message"})
	add(platform.Link{Source: "p1", Predicate: platform.EntryType, Target: "flux://post"})
	add(platform.Link{Source: "m2", Predicate: platform.EntryType, Target: "flux://message"})
	add(platform.Link{Source: "channel", Predicate: platform.HasChild, Target: "m2"})
	add(platform.Link{Source: "channel", Predicate: platform.HasChild, Target: "p1"})
	add(platform.Link{Source: "channel", Predicate: platform.HasChild, Target: "m1"})
	// a second path to the same message must not duplicate it
	add(platform.Link{Source: "channel", Predicate: platform.HasChild, Target: "m2"})
	add(platform.Link{Source: "other", Predicate: platform.HasChild, Target: "m1"})

	ids, err := r.ChildrenOfType(ctx, "channel", "flux://message")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m1"}, ids)

	posts, err := r.ChildrenOfType(ctx, "channel", "flux://post")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, posts)

	none, err := r.ChildrenOfType(ctx, "empty", "flux://message")
	require.NoError(t, err)
	assert.Empty(t, none)
}
