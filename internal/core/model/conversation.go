package model

import "time"

// PlaceholderConversationName is shown until the first batch is summarized.
const PlaceholderConversationName = "Generating conversation..."

type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

type Subgroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

type Topic struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TopicRef is a topic as tagged on an entity.
type TopicRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Relevance int    `json:"relevance"`
}

// SemanticRelationship tags Expression with Tag. Topic tags carry a
// relevance; embedding pointers do not.
type SemanticRelationship struct {
	ID           string `json:"id"`
	Expression   string `json:"expression"`
	Tag          string `json:"tag"`
	Relevance    int    `json:"relevance"`
	HasRelevance bool   `json:"has_relevance"`
}

type Embedding struct {
	ID     string    `json:"id"`
	Model  string    `json:"model"`
	Vector []float32 `json:"vector"`
}
