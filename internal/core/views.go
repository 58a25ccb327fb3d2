package core

import (
	"context"

	"github.com/agenthands/synergy/internal/core/accretion"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/subject"
)

type ConversationView struct {
	model.Conversation
	Topics    []model.TopicRef `json:"topics"`
	Subgroups []SubgroupView   `json:"subgroups"`
}

type SubgroupView struct {
	model.Subgroup
	Topics []model.TopicRef `json:"topics"`
	Items  []model.Item     `json:"items"`
}

// Conversations returns the channel's conversations, oldest first, with
// their subgroups, items and topics.
func (s *Synergy) Conversations(ctx context.Context, channelID string) ([]ConversationView, error) {
	conversations, err := s.Repo.Query(ctx, subject.TypeConversation, channelID)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationView, 0, len(conversations))
	for _, e := range conversations {
		view := ConversationView{Conversation: accretion.ConversationFromEntity(e)}
		if view.Topics, err = s.Topics.Reader.TopicsOf(ctx, e.ID); err != nil {
			return nil, err
		}

		subgroups, err := s.Repo.Query(ctx, subject.TypeConversationSubgroup, e.ID)
		if err != nil {
			return nil, err
		}
		for _, sg := range subgroups {
			sv := SubgroupView{Subgroup: accretion.SubgroupFromEntity(sg)}
			if sv.Topics, err = s.Topics.Reader.TopicsOf(ctx, sg.ID); err != nil {
				return nil, err
			}
			if sv.Items, err = s.Aggregator.Items(ctx, sg.ID); err != nil {
				return nil, err
			}
			view.Subgroups = append(view.Subgroups, sv)
		}
		out = append(out, view)
	}
	return out, nil
}
