package items

import (
	"context"
	"fmt"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/subject"
)

type Filter struct {
	Repo *subject.Repository
}

func NewFilter(repo *subject.Repository) *Filter {
	return &Filter{Repo: repo}
}

// SubgroupIDs returns the ids of every subgroup of every conversation in the channel.
func (f *Filter) SubgroupIDs(ctx context.Context, channelID string) (map[string]bool, error) {
	conversations, err := f.Repo.Query(ctx, subject.TypeConversation, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations of %s: %w", channelID, err)
	}
	ids := make(map[string]bool)
	for _, c := range conversations {
		subgroups, err := f.Repo.Query(ctx, subject.TypeConversationSubgroup, c.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list subgroups of %s: %w", c.ID, err)
		}
		for _, s := range subgroups {
			ids[s.ID] = true
		}
	}
	return ids, nil
}

// Unprocessed keeps, in order, the items no subgroup in subgroupIDs claims as a child.
func (f *Filter) Unprocessed(ctx context.Context, all []model.Item, subgroupIDs map[string]bool) ([]model.Item, error) {
	out := make([]model.Item, 0, len(all))
	for _, it := range all {
		parents, err := f.Repo.ParentLinks(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		claimed := false
		for _, p := range parents {
			if subgroupIDs[p.Data.Source] {
				claimed = true
				break
			}
		}
		if !claimed {
			out = append(out, it)
		}
	}
	return out, nil
}

// Without drops the items whose id is in exclude, preserving order.
func Without(all []model.Item, exclude map[string]bool) []model.Item {
	if len(exclude) == 0 {
		return all
	}
	out := make([]model.Item, 0, len(all))
	for _, it := range all {
		if !exclude[it.ID] {
			out = append(out, it)
		}
	}
	return out
}
