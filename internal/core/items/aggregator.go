// Package items collects the messages, posts and tasks under a node and
// tells processed items from unprocessed ones.
package items

import (
	"context"
	"fmt"
	"sort"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/subject"
)

var itemTypes = []struct {
	entityType string
	itemType   string
}{
	{subject.TypeMessage, model.ItemMessage},
	{subject.TypePost, model.ItemPost},
	{subject.TypeTask, model.ItemTask},
}

type Aggregator struct {
	Repo *subject.Repository
}

func NewAggregator(repo *subject.Repository) *Aggregator {
	return &Aggregator{Repo: repo}
}

// Items returns every item linked under parentID, once each, ordered by
// timestamp with ties kept in link order. A parent without children yields
// an empty slice.
func (a *Aggregator) Items(ctx context.Context, parentID string) ([]model.Item, error) {
	childLinks, err := a.Repo.Store.Query(ctx, platform.LinkQuery{Source: parentID, Predicate: platform.HasChild})
	if err != nil {
		return nil, fmt.Errorf("failed to read children of %s: %w", parentID, err)
	}
	linkOrder := make(map[string]int, len(childLinks))
	for i, l := range childLinks {
		if _, ok := linkOrder[l.Data.Target]; !ok {
			linkOrder[l.Data.Target] = i
		}
	}

	seen := make(map[string]bool)
	var out []model.Item
	for _, t := range itemTypes {
		entities, err := a.Repo.Query(ctx, t.entityType, parentID)
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate items of %s: %w", parentID, err)
		}
		for _, e := range entities {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, Transform(t.itemType, e))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return linkOrder[out[i].ID] < linkOrder[out[j].ID]
	})
	return out, nil
}

// Transform maps a message, post or task entity to the common item shape.
func Transform(itemType string, e subject.Entity) model.Item {
	it := model.Item{
		ID:        e.ID,
		Type:      itemType,
		Author:    e.Author,
		Timestamp: e.Timestamp,
		Icon:      "question",
	}
	switch itemType {
	case model.ItemMessage:
		it.Text = e.Prop("body")
		it.Icon = "chat"
	case model.ItemPost:
		it.Text = e.Prop("title")
		if it.Text == "" {
			it.Text = e.Prop("body")
		}
		it.Icon = "postcard"
	case model.ItemTask:
		it.Text = e.Prop("name")
		it.Icon = "kanban"
	}
	return it
}
