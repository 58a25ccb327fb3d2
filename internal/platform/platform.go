// Package platform declares the contracts the coordinator consumes from the
// agent/perspective platform: the replicated link graph, agent identity,
// neighbourhood signals and AI tasks.
package platform

import (
	"context"
	"time"
)

const (
	// HasChild is the structural predicate linking a parent node to its children.
	HasChild = "ad4m://has_child"
	// EntryType links an entity id to its type name.
	EntryType = "flux://entry_type"
)

type Link struct {
	Source    string `json:"source"`
	Predicate string `json:"predicate"`
	Target    string `json:"target"`
}

// LinkExpression is a link as stored in the replica, stamped with its author.
type LinkExpression struct {
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Data      Link      `json:"data"`
}

// LinkQuery matches links field by field. Empty fields match anything.
type LinkQuery struct {
	Source    string
	Predicate string
	Target    string
}

func (q LinkQuery) Matches(l Link) bool {
	if q.Source != "" && q.Source != l.Source {
		return false
	}
	if q.Predicate != "" && q.Predicate != l.Predicate {
		return false
	}
	if q.Target != "" && q.Target != l.Target {
		return false
	}
	return true
}

// LinkStore is the local copy of the shared perspective.
type LinkStore interface {
	// Query returns matching links ordered by timestamp, stable on insertion order.
	Query(ctx context.Context, q LinkQuery) ([]LinkExpression, error)
	// AddLinks commits the whole batch at once, authored by the local agent.
	AddLinks(ctx context.Context, links []Link) ([]LinkExpression, error)
	RemoveLinks(ctx context.Context, links []LinkExpression) error
	// ChildrenOfType returns the ids linked from parent via HasChild whose
	// entry type is entryType, in link order.
	ChildrenOfType(ctx context.Context, parent, entryType string) ([]string, error)
}

type Agent interface {
	Me(ctx context.Context) (string, error)
	// DefaultModel returns "" when no summarization model is configured.
	DefaultModel(ctx context.Context) (string, error)
}

// Signal is one message received over the neighbourhood, out of band from the graph.
type Signal struct {
	Author string `json:"author"`
	Data   Link   `json:"data"`
}

type Neighbourhood interface {
	SendSignal(ctx context.Context, recipient string, link Link) error
	Broadcast(ctx context.Context, link Link) error
	// Subscribe registers fn for every received signal. The returned func
	// removes the subscription.
	Subscribe(fn func(Signal)) (cancel func())
}

type TaskExample struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

type Task struct {
	ID       string        `json:"task_id"`
	Name     string        `json:"name"`
	ModelID  string        `json:"model_id"`
	Prompt   string        `json:"prompt"`
	Examples []TaskExample `json:"examples"`
}

// AI is the platform's text-generation and embedding surface.
type AI interface {
	Tasks(ctx context.Context) ([]Task, error)
	AddTask(ctx context.Context, name, modelID, prompt string, examples []TaskExample) (Task, error)
	Prompt(ctx context.Context, taskID, input string) (string, error)
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// StaticAgent is an Agent whose identity comes from configuration.
type StaticAgent struct {
	DID   string
	Model string
}

func (a StaticAgent) Me(ctx context.Context) (string, error) {
	return a.DID, nil
}

func (a StaticAgent) DefaultModel(ctx context.Context) (string, error) {
	return a.Model, nil
}
