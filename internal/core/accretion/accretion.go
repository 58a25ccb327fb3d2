// Package accretion finds the conversation new items attach to, or creates
// one when the channel has been quiet for longer than the inactivity window.
package accretion

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/synergy/internal/core/items"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/subject"
)

const DefaultWindow = 30 * time.Minute

type Action int

const (
	Create Action = iota
	Reuse
)

func (a Action) String() string {
	if a == Reuse {
		return "reuse"
	}
	return "create"
}

// Facts are what the decision depends on, read from the latest conversation.
type Facts struct {
	ConversationExists   bool
	SubgroupsExist       bool
	LastSubgroupHasItems bool
	// LastActivity is the last item's timestamp, or the last subgroup's own
	// timestamp when it has no items.
	LastActivity time.Time
}

type rule struct {
	name   string
	match  func(f Facts, recent bool) bool
	action Action
}

var rules = []rule{
	{"no conversation", func(f Facts, _ bool) bool { return !f.ConversationExists }, Create},
	{"conversation without subgroups", func(f Facts, _ bool) bool { return !f.SubgroupsExist }, Reuse},
	{"recent item", func(f Facts, recent bool) bool { return f.LastSubgroupHasItems && recent }, Reuse},
	{"stale item", func(f Facts, recent bool) bool { return f.LastSubgroupHasItems && !recent }, Create},
	{"recent empty subgroup", func(f Facts, recent bool) bool { return recent }, Reuse},
}

// Decide evaluates the decision table. The first matching rule wins and
// anything unmatched creates a new conversation.
func Decide(f Facts, now time.Time, window time.Duration) (Action, string) {
	recent := now.Sub(f.LastActivity) < window
	for _, r := range rules {
		if r.match(f, recent) {
			return r.action, r.name
		}
	}
	return Create, "fallback"
}

type Engine struct {
	Repo       *subject.Repository
	Aggregator *items.Aggregator
	Window     time.Duration
	Now        func() time.Time
	Log        *logger.Logger
}

func NewEngine(repo *subject.Repository, agg *items.Aggregator, window time.Duration, log *logger.Logger) *Engine {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Engine{
		Repo:       repo,
		Aggregator: agg,
		Window:     window,
		Now:        time.Now,
		Log:        logger.OrNop(log).With("component", "accretion"),
	}
}

// FindOrCreate returns the channel's active conversation, creating a
// placeholder one when none is active. created reports which happened.
func (e *Engine) FindOrCreate(ctx context.Context, channelID string) (conv model.Conversation, created bool, err error) {
	latest, facts, err := e.facts(ctx, channelID)
	if err != nil {
		return model.Conversation{}, false, err
	}

	action, reason := Decide(facts, e.Now(), e.Window)
	e.Log.Debug("conversation decision", "channel", channelID, "action", action.String(), "rule", reason)
	if action == Reuse {
		return ConversationFromEntity(latest), false, nil
	}

	ent, err := e.Repo.Create(ctx, subject.TypeConversation, channelID, map[string]string{
		"conversation_name": model.PlaceholderConversationName,
		"summary":           "",
	})
	if err != nil {
		return model.Conversation{}, false, fmt.Errorf("failed to create conversation: %w", err)
	}
	return ConversationFromEntity(ent), true, nil
}

func (e *Engine) facts(ctx context.Context, channelID string) (subject.Entity, Facts, error) {
	conversations, err := e.Repo.Query(ctx, subject.TypeConversation, channelID)
	if err != nil {
		return subject.Entity{}, Facts{}, err
	}
	if len(conversations) == 0 {
		return subject.Entity{}, Facts{}, nil
	}
	latest := conversations[len(conversations)-1]
	f := Facts{ConversationExists: true}

	subgroups, err := e.Repo.Query(ctx, subject.TypeConversationSubgroup, latest.ID)
	if err != nil {
		return subject.Entity{}, Facts{}, err
	}
	if len(subgroups) == 0 {
		return latest, f, nil
	}
	f.SubgroupsExist = true

	last := subgroups[len(subgroups)-1]
	lastItems, err := e.Aggregator.Items(ctx, last.ID)
	if err != nil {
		return subject.Entity{}, Facts{}, err
	}
	if len(lastItems) > 0 {
		f.LastSubgroupHasItems = true
		f.LastActivity = lastItems[len(lastItems)-1].Timestamp
	} else {
		f.LastActivity = last.Timestamp
	}
	return latest, f, nil
}

func ConversationFromEntity(e subject.Entity) model.Conversation {
	return model.Conversation{
		ID:        e.ID,
		Name:      e.Prop("conversation_name"),
		Summary:   e.Prop("summary"),
		Author:    e.Author,
		Timestamp: e.Timestamp,
	}
}

func SubgroupFromEntity(e subject.Entity) model.Subgroup {
	return model.Subgroup{
		ID:        e.ID,
		Name:      e.Prop("subgroup_name"),
		Summary:   e.Prop("summary"),
		Timestamp: e.Timestamp,
	}
}
