// Package topics reads and writes topic tags and vector embeddings. Both
// hang off an entity through semantic relationships: topic tags carry a
// relevance, embedding pointers do not.
package topics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/agenthands/synergy/internal/core/model"
	"github.com/agenthands/synergy/internal/subject"
)

type Reader struct {
	Repo *subject.Repository
}

func NewReader(repo *subject.Repository) *Reader {
	return &Reader{Repo: repo}
}

// AllTopics returns every topic in the neighbourhood.
func (r *Reader) AllTopics(ctx context.Context) ([]model.Topic, error) {
	entities, err := r.Repo.Query(ctx, subject.TypeTopic, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read topics: %w", err)
	}
	out := make([]model.Topic, len(entities))
	for i, e := range entities {
		out[i] = model.Topic{ID: e.ID, Name: e.Prop("topic")}
	}
	return out, nil
}

func (r *Reader) Relationships(ctx context.Context, entityID string) ([]model.SemanticRelationship, error) {
	entities, err := r.Repo.Query(ctx, subject.TypeSemanticRelationship, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to read relationships of %s: %w", entityID, err)
	}
	out := make([]model.SemanticRelationship, len(entities))
	for i, e := range entities {
		out[i] = relationshipFromEntity(e)
	}
	return out, nil
}

// TopicsOf returns the topics tagged on entityID. Tags whose topic no longer
// exists are skipped.
func (r *Reader) TopicsOf(ctx context.Context, entityID string) ([]model.TopicRef, error) {
	rels, err := r.Relationships(ctx, entityID)
	if err != nil {
		return nil, err
	}
	var out []model.TopicRef
	for _, rel := range rels {
		if !rel.HasRelevance {
			continue
		}
		topic, err := r.Repo.Get(ctx, rel.Tag)
		if errors.Is(err, subject.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, model.TopicRef{ID: rel.Tag, Name: topic.Prop("topic"), Relevance: rel.Relevance})
	}
	return out, nil
}

// Embedding returns the current embedding of entityID, if any.
func (r *Reader) Embedding(ctx context.Context, entityID string) (model.Embedding, bool, error) {
	rels, err := r.Relationships(ctx, entityID)
	if err != nil {
		return model.Embedding{}, false, err
	}
	for i := len(rels) - 1; i >= 0; i-- {
		if rels[i].HasRelevance {
			continue
		}
		e, err := r.Repo.Get(ctx, rels[i].Tag)
		if errors.Is(err, subject.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.Embedding{}, false, err
		}
		emb := model.Embedding{ID: e.ID, Model: e.Prop("model")}
		if err := json.Unmarshal([]byte(e.Prop("embedding")), &emb.Vector); err != nil {
			return model.Embedding{}, false, fmt.Errorf("failed to decode embedding %s: %w", e.ID, err)
		}
		return emb, true, nil
	}
	return model.Embedding{}, false, nil
}

func relationshipFromEntity(e subject.Entity) model.SemanticRelationship {
	rel := model.SemanticRelationship{
		ID:         e.ID,
		Expression: e.Prop("expression"),
		Tag:        e.Prop("tag"),
	}
	if v := e.Prop("relevance"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rel.Relevance = n
			rel.HasRelevance = true
		}
	}
	return rel
}
