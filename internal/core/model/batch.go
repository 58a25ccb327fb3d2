package model

// BatchInput is the payload submitted to the summarization task.
type BatchInput struct {
	ExistingTopics    []string          `json:"existingTopics"`
	PreviousSubgroups []SubgroupSummary `json:"previousSubgroups"`
	CurrentSubgroup   *CurrentSubgroup  `json:"currentSubgroup"`
	UnprocessedItems  []BatchItem       `json:"unprocessedItems"`
	JSONParseError    string            `json:"jsonParseError,omitempty"`
}

type SubgroupSummary struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type CurrentSubgroup struct {
	Name    string   `json:"name"`
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

type BatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type TopicMention struct {
	Name      string `json:"name"`
	Relevance int    `json:"relevance"`
}

type ConversationData struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

type SubgroupResult struct {
	Name        string         `json:"name"`
	Summary     string         `json:"summary"`
	Topics      []TopicMention `json:"topics"`
	FirstItemID string         `json:"firstItemId,omitempty"`
}

// BatchResult is the validated model output. Nil subgroups mean the model
// returned none.
type BatchResult struct {
	ConversationData ConversationData `json:"conversationData"`
	CurrentSubgroup  *SubgroupResult  `json:"currentSubgroup"`
	NewSubgroup      *SubgroupResult  `json:"newSubgroup"`
}

// Mentions returns the topics of both subgroups, current first.
func (r BatchResult) Mentions() []TopicMention {
	var out []TopicMention
	if r.CurrentSubgroup != nil {
		out = append(out, r.CurrentSubgroup.Topics...)
	}
	if r.NewSubgroup != nil {
		out = append(out, r.NewSubgroup.Topics...)
	}
	return out
}

// EmptyBatchResult is returned when the model never produced usable output.
func EmptyBatchResult() BatchResult {
	return BatchResult{
		ConversationData: ConversationData{},
		CurrentSubgroup:  &SubgroupResult{Topics: []TopicMention{}},
		NewSubgroup:      &SubgroupResult{Topics: []TopicMention{}},
	}
}
