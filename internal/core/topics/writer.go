package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/synergy/internal/core/dedupe"
	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/subject"
)

const DefaultEmbeddingModel = "bert"

// Embedder is the embedding half of platform.AI.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

var _ Embedder = (platform.AI)(nil)

// Writer creates topics, topic tags and embeddings. With a nil Embedder no
// embeddings are written.
type Writer struct {
	Repo           *subject.Repository
	Reader         *Reader
	Embedder       Embedder
	EmbeddingModel string
	Log            *logger.Logger
}

func NewWriter(repo *subject.Repository, embedder Embedder, embeddingModel string, log *logger.Logger) *Writer {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	return &Writer{
		Repo:           repo,
		Reader:         NewReader(repo),
		Embedder:       embedder,
		EmbeddingModel: embeddingModel,
		Log:            logger.OrNop(log).With("component", "topics"),
	}
}

// Plan names the entities a batch result is applied to. Empty subgroup ids
// skip that subgroup.
type Plan struct {
	ConversationID    string
	CurrentSubgroupID string
	NewSubgroupID     string
	Result            model.BatchResult
	Existing          []model.Topic
}

// Apply creates the missing topics and tags the conversation and subgroups.
// Topics already tagged on the conversation are not tagged again.
func (w *Writer) Apply(ctx context.Context, p Plan) ([]model.Topic, error) {
	mentions := p.Result.Mentions()
	created, err := w.CreateTopics(ctx, dedupe.NewTopicsToCreate(mentions, p.Existing))
	if err != nil {
		return nil, err
	}

	linked, err := w.Reader.TopicsOf(ctx, p.ConversationID)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(linked))
	for _, t := range linked {
		skip[t.Name] = true
	}
	var forConversation []model.TopicMention
	for _, m := range mentions {
		if skip[m.Name] {
			continue
		}
		skip[m.Name] = true
		forConversation = append(forConversation, m)
	}
	if err := w.link(ctx, p.ConversationID, forConversation, created, p.Existing); err != nil {
		return nil, err
	}

	if p.CurrentSubgroupID != "" && p.Result.CurrentSubgroup != nil {
		if err := w.link(ctx, p.CurrentSubgroupID, p.Result.CurrentSubgroup.Topics, created, p.Existing); err != nil {
			return nil, err
		}
	}
	if p.NewSubgroupID != "" && p.Result.NewSubgroup != nil {
		if err := w.link(ctx, p.NewSubgroupID, p.Result.NewSubgroup.Topics, created, p.Existing); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// CreateTopics creates one topic per mention, preserving order.
func (w *Writer) CreateTopics(ctx context.Context, mentions []model.TopicMention) ([]model.Topic, error) {
	out := make([]model.Topic, len(mentions))
	g, gctx := errgroup.WithContext(ctx)
	for i, m := range mentions {
		i, m := i, m
		g.Go(func() error {
			e, err := w.Repo.Create(gctx, subject.TypeTopic, "", map[string]string{"topic": m.Name})
			if err != nil {
				return fmt.Errorf("failed to create topic %s: %w", m.Name, err)
			}
			out[i] = model.Topic{ID: e.ID, Name: m.Name}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkTopic tags entityID with topicID.
func (w *Writer) LinkTopic(ctx context.Context, entityID, topicID string, relevance int) error {
	_, err := w.Repo.Create(ctx, subject.TypeSemanticRelationship, entityID, map[string]string{
		"expression": entityID,
		"tag":        topicID,
		"relevance":  strconv.Itoa(relevance),
	})
	if err != nil {
		return fmt.Errorf("failed to link topic %s to %s: %w", topicID, entityID, err)
	}
	return nil
}

func (w *Writer) link(ctx context.Context, entityID string, mentions []model.TopicMention, created, existing []model.Topic) error {
	for _, m := range mentions {
		topic, ok := dedupe.Resolve(m.Name, created, existing)
		if !ok {
			w.Log.Warn("topic not found", "topic", m.Name, "entity", entityID)
			continue
		}
		if err := w.LinkTopic(ctx, entityID, topic.ID, m.Relevance); err != nil {
			return err
		}
	}
	return nil
}

// CreateEmbedding embeds text and points entityID at the result.
func (w *Writer) CreateEmbedding(ctx context.Context, entityID, text string) error {
	if w.Embedder == nil {
		return nil
	}
	vec, err := w.Embedder.Embed(ctx, w.EmbeddingModel, text)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", entityID, err)
	}
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	emb, err := w.Repo.Create(ctx, subject.TypeEmbedding, entityID, map[string]string{
		"model":     w.EmbeddingModel,
		"embedding": string(encoded),
	})
	if err != nil {
		return fmt.Errorf("failed to store embedding of %s: %w", entityID, err)
	}
	_, err = w.Repo.Create(ctx, subject.TypeSemanticRelationship, entityID, map[string]string{
		"expression": entityID,
		"tag":        emb.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to link embedding of %s: %w", entityID, err)
	}
	return nil
}

// ReplaceEmbedding writes the new embedding before removing the old ones,
// so the entity is never left without one.
func (w *Writer) ReplaceEmbedding(ctx context.Context, entityID, text string) error {
	if w.Embedder == nil {
		return nil
	}
	rels, err := w.Reader.Relationships(ctx, entityID)
	if err != nil {
		return err
	}
	if err := w.CreateEmbedding(ctx, entityID, text); err != nil {
		return err
	}
	for _, rel := range rels {
		if rel.HasRelevance {
			continue
		}
		if err := w.Repo.Delete(ctx, rel.Tag); err != nil {
			return fmt.Errorf("failed to delete old embedding of %s: %w", entityID, err)
		}
		if err := w.Repo.Delete(ctx, rel.ID); err != nil {
			return fmt.Errorf("failed to delete old embedding link of %s: %w", entityID, err)
		}
	}
	return nil
}

// EmbedItems creates an embedding for every item concurrently.
func (w *Writer) EmbedItems(ctx context.Context, items []model.Item) error {
	if w.Embedder == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, it := range items {
		it := it
		g.Go(func() error {
			return w.CreateEmbedding(gctx, it.ID, it.Text)
		})
	}
	return g.Wait()
}
