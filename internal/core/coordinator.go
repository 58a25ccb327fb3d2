package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agenthands/synergy/internal/core/accretion"
	"github.com/agenthands/synergy/internal/core/items"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/core/topics"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/subject"
)

// Coordinator owns the processing state of one channel: whether this peer is
// processing it and what other peers announced they are processing.
type Coordinator struct {
	ChannelID string

	s   *Synergy
	log *logger.Logger

	mu         sync.Mutex
	processing bool
	current    *model.ProcessingData
	remote     map[string]model.ProcessingData
	closed     bool
}

// CheckResult reports what a processing check did.
type CheckResult struct {
	Responsible    bool     `json:"responsible"`
	Unprocessed    int      `json:"unprocessed"`
	Processed      []string `json:"processed,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Skipped        string   `json:"skipped,omitempty"`
}

func newCoordinator(s *Synergy, channelID string) *Coordinator {
	return &Coordinator{
		ChannelID: channelID,
		s:         s,
		log:       s.Log.With("channel", channelID),
		remote:    make(map[string]model.ProcessingData),
	}
}

// RunProcessingCheck elects a peer for the channel's unprocessed queue and,
// when this peer is responsible, processes all but the trailing delay items.
func (c *Coordinator) RunProcessingCheck(ctx context.Context) (CheckResult, error) {
	if c.isClosed() {
		return CheckResult{}, ErrClosed
	}

	modelName, err := c.s.Agent.DefaultModel(ctx)
	if err != nil {
		return CheckResult{}, fmt.Errorf("failed to read default model: %w", err)
	}
	if modelName == "" {
		return CheckResult{Skipped: "no default model"}, nil
	}

	queue, err := c.Unprocessed(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	res := CheckResult{Unprocessed: len(queue)}

	responsible, err := c.s.Resolver.Responsible(ctx, queue)
	if err != nil {
		return res, fmt.Errorf("failed to resolve responsibility: %w", err)
	}
	if !responsible {
		res.Skipped = "not responsible"
		return res, nil
	}
	res.Responsible = true

	me, err := c.s.Agent.Me(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to resolve local agent: %w", err)
	}
	batch := queue[:len(queue)-c.s.Config.ItemsDelay]
	data := model.ProcessingData{Author: me, ChannelID: c.ChannelID, Items: model.ItemIDs(batch)}
	if !c.begin(data) {
		res.Skipped = "already processing"
		return res, nil
	}
	defer c.finish(ctx)

	c.announce(ctx, model.ProcessingItemsStarted, &data)
	convID, err := c.process(ctx, batch)
	if err != nil {
		return res, err
	}
	res.Processed = data.Items
	res.ConversationID = convID
	return res, nil
}

// Unprocessed returns the channel's items no subgroup claims, minus the
// items other peers announced they are processing.
func (c *Coordinator) Unprocessed(ctx context.Context) ([]model.Item, error) {
	all, err := c.s.Aggregator.Items(ctx, c.ChannelID)
	if err != nil {
		return nil, err
	}
	subgroups, err := c.s.Filter.SubgroupIDs(ctx, c.ChannelID)
	if err != nil {
		return nil, err
	}
	queue, err := c.s.Filter.Unprocessed(ctx, all, subgroups)
	if err != nil {
		return nil, err
	}
	return items.Without(queue, c.remoteItems()), nil
}

// Processing reports whether this peer is processing the channel.
func (c *Coordinator) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// InFlight lists the local run, if any, followed by remote runs ordered by author.
func (c *Coordinator) InFlight() []model.ProcessingData {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.ProcessingData
	if c.current != nil {
		out = append(out, *c.current)
	}
	authors := make([]string, 0, len(c.remote))
	for a := range c.remote {
		authors = append(authors, a)
	}
	sort.Strings(authors)
	for _, a := range authors {
		out = append(out, c.remote[a])
	}
	return out
}

// Probe drops what this peer believes others are processing and asks the
// neighbourhood again. Peers still processing answer with processing-in-progress.
func (c *Coordinator) Probe(ctx context.Context) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.mu.Lock()
	c.remote = make(map[string]model.ProcessingData)
	c.mu.Unlock()

	link := platform.Link{Source: c.ChannelID, Predicate: model.IsAnyoneProcessing}
	if err := c.s.Neighbourhood.Broadcast(ctx, link); err != nil {
		return fmt.Errorf("failed to probe channel %s: %w", c.ChannelID, err)
	}
	return nil
}

func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Coordinator) begin(data model.ProcessingData) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	c.processing = true
	c.current = &data
	return true
}

func (c *Coordinator) finish(ctx context.Context) {
	c.mu.Lock()
	c.processing = false
	c.current = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), signalTimeout)
	defer cancel()
	c.announce(ctx, model.ProcessingItemsDone, nil)
}

func (c *Coordinator) announce(ctx context.Context, predicate string, data *model.ProcessingData) {
	link := platform.Link{Source: c.ChannelID, Predicate: predicate}
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			c.log.Warn("failed to encode processing data", "error", err)
			return
		}
		link.Target = string(encoded)
	}
	if err := c.s.Neighbourhood.Broadcast(ctx, link); err != nil {
		c.log.Warn("failed to broadcast", "predicate", predicate, "error", err)
	}
}

func (c *Coordinator) answerProbe(ctx context.Context, author string) {
	c.mu.Lock()
	var data *model.ProcessingData
	if c.current != nil {
		cp := *c.current
		data = &cp
	}
	c.mu.Unlock()
	if data == nil {
		return
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		c.log.Warn("failed to encode processing data", "error", err)
		return
	}
	link := platform.Link{Source: c.ChannelID, Predicate: model.ProcessingInProgress, Target: string(encoded)}
	if err := c.s.Neighbourhood.SendSignal(ctx, author, link); err != nil {
		c.log.Warn("failed to answer processing probe", "author", author, "error", err)
	}
}

func (c *Coordinator) observeRemote(data model.ProcessingData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote[data.Author] = data
}

func (c *Coordinator) forgetRemote(author string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.remote, author)
}

func (c *Coordinator) remoteItems() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool)
	for _, d := range c.remote {
		for _, id := range d.Items {
			out[id] = true
		}
	}
	return out
}

// process summarizes batch into the channel's active conversation. Every
// structural link is written in one final batch.
func (c *Coordinator) process(ctx context.Context, batch []model.Item) (string, error) {
	start := time.Now()
	s := c.s

	conv, created, err := s.Accretion.FindOrCreate(ctx, c.ChannelID)
	if err != nil {
		return "", err
	}
	c.log.Info("processing batch", "conversation", conv.ID, "new_conversation", created, "items", len(batch))

	var links []platform.Link
	for _, it := range batch {
		links = append(links, platform.Link{Source: conv.ID, Predicate: platform.HasChild, Target: it.ID})
	}

	subgroups, err := s.Repo.Query(ctx, subject.TypeConversationSubgroup, conv.ID)
	if err != nil {
		return "", err
	}
	existing, err := s.Topics.Reader.AllTopics(ctx)
	if err != nil {
		return "", err
	}

	input := model.BatchInput{
		ExistingTopics:    make([]string, len(existing)),
		PreviousSubgroups: make([]model.SubgroupSummary, len(subgroups)),
		UnprocessedItems:  make([]model.BatchItem, len(batch)),
	}
	for i, t := range existing {
		input.ExistingTopics[i] = t.Name
	}
	for i, e := range subgroups {
		sg := accretion.SubgroupFromEntity(e)
		input.PreviousSubgroups[i] = model.SubgroupSummary{Name: sg.Name, Summary: sg.Summary}
	}
	for i, it := range batch {
		input.UnprocessedItems[i] = model.BatchItem{ID: it.ID, Text: it.Text}
	}

	var last *model.Subgroup
	if len(subgroups) > 0 {
		sg := accretion.SubgroupFromEntity(subgroups[len(subgroups)-1])
		last = &sg
		tags, err := s.Topics.Reader.TopicsOf(ctx, sg.ID)
		if err != nil {
			return "", err
		}
		names := make([]string, len(tags))
		for i, t := range tags {
			names[i] = t.Name
		}
		input.CurrentSubgroup = &model.CurrentSubgroup{Name: sg.Name, Summary: sg.Summary, Topics: names}
	}

	result, err := s.Summaries.Process(ctx, input)
	if err != nil {
		return "", err
	}
	result = normalize(result, last != nil)

	err = s.Repo.Update(ctx, conv.ID, map[string]string{
		"conversation_name": result.ConversationData.Name,
		"summary":           result.ConversationData.Summary,
	})
	if err != nil {
		return "", err
	}

	plan := topics.Plan{ConversationID: conv.ID, Result: result, Existing: existing}
	if last != nil {
		plan.CurrentSubgroupID = last.ID
		if result.CurrentSubgroup != nil {
			err := s.Repo.Update(ctx, last.ID, map[string]string{
				"subgroup_name": result.CurrentSubgroup.Name,
				"summary":       result.CurrentSubgroup.Summary,
			})
			if err != nil {
				return "", err
			}
		}
	}
	if result.NewSubgroup != nil {
		sub, err := s.Repo.Create(ctx, subject.TypeConversationSubgroup, "", map[string]string{
			"subgroup_name": result.NewSubgroup.Name,
			"summary":       result.NewSubgroup.Summary,
		})
		if err != nil {
			return "", err
		}
		plan.NewSubgroupID = sub.ID
		links = append(links, platform.Link{Source: conv.ID, Predicate: platform.HasChild, Target: sub.ID})
	}

	if _, err := s.Topics.Apply(ctx, plan); err != nil {
		return "", err
	}

	firstNew := len(batch)
	if plan.NewSubgroupID != "" {
		firstNew = 0
		for i, it := range batch {
			if it.ID == result.NewSubgroup.FirstItemID {
				firstNew = i
				break
			}
		}
	}
	for i, it := range batch {
		target := plan.CurrentSubgroupID
		if i >= firstNew {
			target = plan.NewSubgroupID
		}
		links = append(links, platform.Link{Source: target, Predicate: platform.HasChild, Target: it.ID})
	}

	if err := s.Topics.EmbedItems(ctx, batch); err != nil {
		return "", err
	}
	if err := s.Topics.ReplaceEmbedding(ctx, conv.ID, result.ConversationData.Summary); err != nil {
		return "", err
	}
	if last != nil && result.CurrentSubgroup != nil {
		if err := s.Topics.ReplaceEmbedding(ctx, last.ID, result.CurrentSubgroup.Summary); err != nil {
			return "", err
		}
	}
	if plan.NewSubgroupID != "" {
		if err := s.Topics.CreateEmbedding(ctx, plan.NewSubgroupID, result.NewSubgroup.Summary); err != nil {
			return "", err
		}
	}

	if _, err := s.Store.AddLinks(ctx, links); err != nil {
		return "", fmt.Errorf("failed to commit conversation links: %w", err)
	}
	c.log.Info("batch processed", "conversation", conv.ID, "duration", time.Since(start))
	return conv.ID, nil
}

// normalize makes sure every item of the batch has a subgroup to land in.
// Without an existing subgroup there is nothing to continue, so the
// current-subgroup answer, or an empty one, seeds the new subgroup.
func normalize(r model.BatchResult, hasCurrent bool) model.BatchResult {
	if hasCurrent {
		return r
	}
	if r.NewSubgroup == nil {
		r.NewSubgroup = r.CurrentSubgroup
		if r.NewSubgroup == nil {
			r.NewSubgroup = &model.SubgroupResult{Topics: []model.TopicMention{}}
		}
	}
	r.CurrentSubgroup = nil
	return r
}
