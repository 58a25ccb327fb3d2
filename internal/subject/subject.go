// Package subject materialises typed entities over perspective links.
//
// An entity is an id with one entry-type link, one link per property and,
// when created under a parent, a has_child link from the parent.
package subject

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/synergy/internal/platform"
)

const (
	TypeMessage              = "flux://message"
	TypePost                 = "flux://post"
	TypeTask                 = "flux://task"
	TypeConversation         = "flux://conversation"
	TypeConversationSubgroup = "flux://conversation_subgroup"
	TypeTopic                = "flux://topic"
	TypeSemanticRelationship = "flux://semantic_relationship"
	TypeEmbedding            = "flux://embedding"

	propertyPrefix = "flux://"
	literalPrefix  = "literal://string:"
)

var ErrNotFound = errors.New("entity not found")

type Entity struct {
	ID        string
	Type      string
	Author    string
	Timestamp time.Time
	Props     map[string]string
}

func (e Entity) Prop(key string) string {
	return e.Props[key]
}

type Repository struct {
	Store platform.LinkStore
}

func NewRepository(store platform.LinkStore) *Repository {
	return &Repository{Store: store}
}

// Create writes the entity in one batch. source may be empty.
func (r *Repository) Create(ctx context.Context, entityType, source string, props map[string]string) (Entity, error) {
	id := "synergy://" + uuid.New().String()

	links := []platform.Link{{Source: id, Predicate: platform.EntryType, Target: entityType}}
	for _, key := range sortedKeys(props) {
		links = append(links, propertyLink(id, key, props[key]))
	}
	if source != "" {
		links = append(links, platform.Link{Source: source, Predicate: platform.HasChild, Target: id})
	}

	added, err := r.Store.AddLinks(ctx, links)
	if err != nil {
		return Entity{}, fmt.Errorf("failed to create %s: %w", entityType, err)
	}

	e := Entity{ID: id, Type: entityType, Props: copyProps(props)}
	if len(added) > 0 {
		e.Author = added[0].Author
		e.Timestamp = added[0].Timestamp
	}
	return e, nil
}

func (r *Repository) Get(ctx context.Context, id string) (Entity, error) {
	links, err := r.Store.Query(ctx, platform.LinkQuery{Source: id})
	if err != nil {
		return Entity{}, fmt.Errorf("failed to get entity %s: %w", id, err)
	}

	e := Entity{ID: id, Props: make(map[string]string)}
	found := false
	for _, l := range links {
		switch {
		case l.Data.Predicate == platform.EntryType:
			if !found {
				e.Type = l.Data.Target
				e.Author = l.Author
				e.Timestamp = l.Timestamp
				found = true
			}
		case strings.HasPrefix(l.Data.Predicate, propertyPrefix):
			// links are ordered, so the latest value wins
			e.Props[strings.TrimPrefix(l.Data.Predicate, propertyPrefix)] = decodeLiteral(l.Data.Target)
		}
	}
	if !found {
		return Entity{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Update replaces the given properties and leaves the others untouched.
func (r *Repository) Update(ctx context.Context, id string, props map[string]string) error {
	var stale []platform.LinkExpression
	var fresh []platform.Link
	for _, key := range sortedKeys(props) {
		existing, err := r.Store.Query(ctx, platform.LinkQuery{Source: id, Predicate: propertyPrefix + key})
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", id, err)
		}
		stale = append(stale, existing...)
		fresh = append(fresh, propertyLink(id, key, props[key]))
	}

	if err := r.Store.RemoveLinks(ctx, stale); err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}
	if _, err := r.Store.AddLinks(ctx, fresh); err != nil {
		return fmt.Errorf("failed to update %s: %w", id, err)
	}
	return nil
}

// Delete removes the entity's own links and every has_child link pointing at it.
func (r *Repository) Delete(ctx context.Context, id string) error {
	own, err := r.Store.Query(ctx, platform.LinkQuery{Source: id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	parents, err := r.Store.Query(ctx, platform.LinkQuery{Predicate: platform.HasChild, Target: id})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	if err := r.Store.RemoveLinks(ctx, append(own, parents...)); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	return nil
}

// Query returns the entities of entityType linked from source, or every
// entity of that type when source is empty, ordered by creation time.
func (r *Repository) Query(ctx context.Context, entityType, source string) ([]Entity, error) {
	var ids []string
	if source == "" {
		links, err := r.Store.Query(ctx, platform.LinkQuery{Predicate: platform.EntryType, Target: entityType})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", entityType, err)
		}
		seen := make(map[string]bool, len(links))
		for _, l := range links {
			if !seen[l.Data.Source] {
				seen[l.Data.Source] = true
				ids = append(ids, l.Data.Source)
			}
		}
	} else {
		var err error
		ids, err = r.Store.ChildrenOfType(ctx, source, entityType)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s under %s: %w", entityType, source, err)
		}
	}

	entities := make([]Entity, 0, len(ids))
	for _, id := range ids {
		e, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// deleted between the two reads
			continue
		}
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Timestamp.Before(entities[j].Timestamp)
	})
	return entities, nil
}

// ParentLinks returns the has_child links pointing at id.
func (r *Repository) ParentLinks(ctx context.Context, id string) ([]platform.LinkExpression, error) {
	links, err := r.Store.Query(ctx, platform.LinkQuery{Predicate: platform.HasChild, Target: id})
	if err != nil {
		return nil, fmt.Errorf("failed to query parents of %s: %w", id, err)
	}
	return links, nil
}

func propertyLink(id, key, value string) platform.Link {
	return platform.Link{Source: id, Predicate: propertyPrefix + key, Target: encodeLiteral(value)}
}

func encodeLiteral(v string) string {
	return literalPrefix + url.QueryEscape(v)
}

func decodeLiteral(target string) string {
	if !strings.HasPrefix(target, literalPrefix) {
		return target
	}
	v, err := url.QueryUnescape(strings.TrimPrefix(target, literalPrefix))
	if err != nil {
		return strings.TrimPrefix(target, literalPrefix)
	}
	return v
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyProps(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
