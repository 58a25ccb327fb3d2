package summary

import (
	"errors"
	"fmt"
	"math"

	"github.com/agenthands/synergy/internal/core/common"
	"github.com/agenthands/synergy/internal/core/model"
)

// ParseError is a model response that could not be turned into a BatchResult.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid batch result: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type rawResult struct {
	ConversationData *rawConversation `json:"conversationData"`
	CurrentSubgroup  *rawSubgroup     `json:"currentSubgroup"`
	NewSubgroup      *rawSubgroup     `json:"newSubgroup"`
}

type rawConversation struct {
	Name    *string `json:"name"`
	Summary *string `json:"summary"`
}

type rawSubgroup struct {
	Name        *string    `json:"name"`
	Summary     *string    `json:"summary"`
	Topics      []rawTopic `json:"topics"`
	FirstItemID string     `json:"firstItemId"`
}

type rawTopic struct {
	Name      string   `json:"name"`
	Relevance *float64 `json:"relevance"`
}

// Parse decodes and validates a raw model response.
func Parse(raw string) (model.BatchResult, error) {
	r, err := common.ParseJSON[rawResult](raw)
	if err != nil {
		return model.BatchResult{}, &ParseError{Raw: raw, Err: err}
	}

	if r.ConversationData == nil {
		return model.BatchResult{}, &ParseError{Raw: raw, Err: errors.New("missing conversationData")}
	}
	if r.ConversationData.Name == nil || r.ConversationData.Summary == nil {
		return model.BatchResult{}, &ParseError{Raw: raw, Err: errors.New("conversationData needs name and summary")}
	}

	out := model.BatchResult{
		ConversationData: model.ConversationData{
			Name:    *r.ConversationData.Name,
			Summary: *r.ConversationData.Summary,
		},
	}
	if out.CurrentSubgroup, err = subgroup("currentSubgroup", r.CurrentSubgroup); err != nil {
		return model.BatchResult{}, &ParseError{Raw: raw, Err: err}
	}
	if out.NewSubgroup, err = subgroup("newSubgroup", r.NewSubgroup); err != nil {
		return model.BatchResult{}, &ParseError{Raw: raw, Err: err}
	}
	return out, nil
}

func subgroup(field string, s *rawSubgroup) (*model.SubgroupResult, error) {
	if s == nil {
		return nil, nil
	}
	if s.Name == nil || s.Summary == nil {
		return nil, fmt.Errorf("%s needs name and summary", field)
	}
	out := &model.SubgroupResult{
		Name:        *s.Name,
		Summary:     *s.Summary,
		FirstItemID: s.FirstItemID,
		Topics:      make([]model.TopicMention, 0, len(s.Topics)),
	}
	for i, t := range s.Topics {
		if t.Name == "" {
			return nil, fmt.Errorf("%s.topics[%d] has no name", field, i)
		}
		if t.Relevance == nil {
			return nil, fmt.Errorf("%s.topics[%d] has no relevance", field, i)
		}
		if *t.Relevance < 0 || *t.Relevance > 100 {
			return nil, fmt.Errorf("%s.topics[%d] relevance %v outside 0-100", field, i, *t.Relevance)
		}
		out.Topics = append(out.Topics, model.TopicMention{Name: t.Name, Relevance: int(math.Round(*t.Relevance))})
	}
	return out, nil
}
