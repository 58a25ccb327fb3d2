// Package core wires the conversation pipeline together. A Synergy node
// serves one neighbourhood: it answers capability probes and routes channel
// signals to one Coordinator per channel.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/core/accretion"
	"github.com/agenthands/synergy/internal/core/election"
	"github.com/agenthands/synergy/internal/core/items"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/core/summary"
	"github.com/agenthands/synergy/internal/core/topics"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/subject"
)

var ErrClosed = errors.New("synergy closed")

const signalTimeout = 5 * time.Second

// Deps are the platform services a node runs on. Embedder may be nil, in
// which case no embeddings are written.
type Deps struct {
	Store         platform.LinkStore
	Agent         platform.Agent
	Neighbourhood platform.Neighbourhood
	AI            platform.AI
	Embedder      topics.Embedder
}

type Synergy struct {
	Deps
	Config config.SynergyConfig
	Log    *logger.Logger

	Repo       *subject.Repository
	Aggregator *items.Aggregator
	Filter     *items.Filter
	Correlator *election.Correlator
	Resolver   *election.Resolver
	Accretion  *accretion.Engine
	Summaries  *summary.TaskManager
	Topics     *topics.Writer

	mu           sync.Mutex
	coordinators map[string]*Coordinator
	unsubscribe  func()
	closed       bool
}

// NewSynergy builds the pipeline and subscribes to the neighbourhood.
// prompt overrides the built-in summarization prompt when non-empty.
func NewSynergy(deps Deps, cfg config.SynergyConfig, prompt string, log *logger.Logger) *Synergy {
	log = logger.OrNop(log)
	repo := subject.NewRepository(deps.Store)
	agg := items.NewAggregator(repo)
	correlator := election.NewCorrelator()

	s := &Synergy{
		Deps:         deps,
		Config:       cfg,
		Log:          log.With("component", "synergy"),
		Repo:         repo,
		Aggregator:   agg,
		Filter:       items.NewFilter(repo),
		Correlator:   correlator,
		Resolver:     election.NewResolver(deps.Agent, deps.Neighbourhood, correlator, cfg.MinItemsToProcess, cfg.ItemsDelay, cfg.ResponseTimeout.Duration, log),
		Accretion:    accretion.NewEngine(repo, agg, cfg.InactivityWindow.Duration, log),
		Summaries:    summary.NewTaskManager(deps.AI, cfg.TaskName, prompt, cfg.MaxAttempts, log),
		Topics:       topics.NewWriter(repo, deps.Embedder, cfg.EmbeddingModel, log),
		coordinators: make(map[string]*Coordinator),
	}
	s.unsubscribe = deps.Neighbourhood.Subscribe(s.handle)
	return s
}

// Coordinator returns the channel's coordinator, creating it on first use.
func (s *Synergy) Coordinator(channelID string) (*Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	c, ok := s.coordinators[channelID]
	if !ok {
		c = newCoordinator(s, channelID)
		s.coordinators[channelID] = c
	}
	return c, nil
}

// Channels lists the channels with a coordinator.
func (s *Synergy) Channels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.coordinators))
	for id := range s.coordinators {
		out = append(out, id)
	}
	return out
}

func (s *Synergy) existing(channelID string) *Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinators[channelID]
}

// Close unsubscribes from the neighbourhood and closes every coordinator.
func (s *Synergy) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	coordinators := s.coordinators
	s.coordinators = make(map[string]*Coordinator)
	s.mu.Unlock()

	s.unsubscribe()
	for _, c := range coordinators {
		c.Close()
	}
}

func (s *Synergy) handle(sig platform.Signal) {
	ctx, cancel := context.WithTimeout(context.Background(), signalTimeout)
	defer cancel()

	data := sig.Data
	switch data.Predicate {
	case model.CanYouProcessItems:
		s.answerCapability(ctx, sig)

	case model.ICanProcessItems:
		if !s.Correlator.Resolve(data.Target) {
			s.Log.Debug("unmatched capability response", "author", sig.Author)
		}

	case model.ProcessingItemsStarted, model.ProcessingInProgress:
		c := s.existing(data.Source)
		if c == nil {
			return
		}
		var pd model.ProcessingData
		if err := json.Unmarshal([]byte(data.Target), &pd); err != nil {
			s.Log.Warn("malformed processing data", "author", sig.Author, "error", err)
			return
		}
		pd.Author = sig.Author
		if pd.ChannelID == "" {
			pd.ChannelID = data.Source
		}
		c.observeRemote(pd)

	case model.ProcessingItemsDone:
		if c := s.existing(data.Source); c != nil {
			c.forgetRemote(sig.Author)
		}

	case model.IsAnyoneProcessing:
		if c := s.existing(data.Source); c != nil {
			c.answerProbe(ctx, sig.Author)
		}
	}
}

func (s *Synergy) answerCapability(ctx context.Context, sig platform.Signal) {
	modelName, err := s.Agent.DefaultModel(ctx)
	if err != nil {
		s.Log.Warn("failed to read default model", "error", err)
		return
	}
	if modelName == "" {
		return
	}
	reply := platform.Link{Predicate: model.ICanProcessItems, Target: sig.Data.Target}
	if err := s.Neighbourhood.SendSignal(ctx, sig.Author, reply); err != nil {
		s.Log.Warn("failed to answer capability probe", "author", sig.Author, "error", err)
	}
}
