package perspective

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/synergy/internal/driver"
	"github.com/agenthands/synergy/internal/platform"
)

var _ platform.LinkStore = (*Memgraph)(nil)

// Memgraph is a LinkStore persisted in Memgraph (or Neo4j) through the bolt driver.
// Several perspectives can share one database; they are separated by name.
type Memgraph struct {
	Driver      driver.GraphDriver
	Perspective string
	Author      string

	seq atomic.Int64
	now func() time.Time
}

func NewMemgraph(d driver.GraphDriver, perspective, author string) *Memgraph {
	m := &Memgraph{
		Driver:      d,
		Perspective: perspective,
		Author:      author,
		now:         time.Now,
	}
	m.seq.Store(time.Now().UnixNano())
	return m
}

func (m *Memgraph) Query(ctx context.Context, q platform.LinkQuery) ([]platform.LinkExpression, error) {
	res, err := m.Driver.ExecuteQuery(ctx, driver.QueryLinksQuery, map[string]interface{}{
		"perspective": m.Perspective,
		"source":      q.Source,
		"predicate":   q.Predicate,
		"target":      q.Target,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}

	links := make([]platform.LinkExpression, 0, len(res.Records))
	for _, rec := range res.Records {
		links = append(links, linkFromRecord(rec))
	}
	return links, nil
}

func (m *Memgraph) AddLinks(ctx context.Context, links []platform.Link) ([]platform.LinkExpression, error) {
	if len(links) == 0 {
		return nil, nil
	}

	now := m.now().UTC().Truncate(time.Millisecond)
	params := make([]map[string]interface{}, 0, len(links))
	out := make([]platform.LinkExpression, 0, len(links))
	for _, l := range links {
		params = append(params, map[string]interface{}{
			"source":    l.Source,
			"predicate": l.Predicate,
			"target":    l.Target,
			"author":    m.Author,
			"timestamp": now.UnixMilli(),
			"seq":       m.seq.Add(1),
		})
		out = append(out, platform.LinkExpression{Author: m.Author, Timestamp: now, Data: l})
	}

	_, err := m.Driver.ExecuteQuery(ctx, driver.AddLinksQuery, map[string]interface{}{
		"perspective": m.Perspective,
		"links":       params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add links: %w", err)
	}
	return out, nil
}

func (m *Memgraph) RemoveLinks(ctx context.Context, links []platform.LinkExpression) error {
	if len(links) == 0 {
		return nil
	}

	params := make([]map[string]interface{}, 0, len(links))
	for _, l := range links {
		params = append(params, map[string]interface{}{
			"source":    l.Data.Source,
			"predicate": l.Data.Predicate,
			"target":    l.Data.Target,
			"author":    l.Author,
			"timestamp": l.Timestamp.UnixMilli(),
		})
	}

	_, err := m.Driver.ExecuteQuery(ctx, driver.RemoveLinksQuery, map[string]interface{}{
		"perspective": m.Perspective,
		"links":       params,
	})
	if err != nil {
		return fmt.Errorf("failed to remove links: %w", err)
	}
	return nil
}

func (m *Memgraph) ChildrenOfType(ctx context.Context, parent, entryType string) ([]string, error) {
	res, err := m.Driver.ExecuteQuery(ctx, driver.ChildrenOfTypeQuery, map[string]interface{}{
		"perspective": m.Perspective,
		"parent":      parent,
		"type":        entryType,
		"has_child":   platform.HasChild,
		"entry_type":  platform.EntryType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query children of type %s: %w", entryType, err)
	}

	seen := make(map[string]bool, len(res.Records))
	var ids []string
	for _, rec := range res.Records {
		id, _ := rec.Get("id")
		s, ok := id.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		ids = append(ids, s)
	}
	return ids, nil
}

func linkFromRecord(rec *neo4j.Record) platform.LinkExpression {
	get := func(key string) string {
		v, _ := rec.Get(key)
		s, _ := v.(string)
		return s
	}
	var ts time.Time
	if v, ok := rec.Get("timestamp"); ok {
		if ms, ok := v.(int64); ok {
			ts = time.UnixMilli(ms).UTC()
		}
	}
	return platform.LinkExpression{
		Author:    get("author"),
		Timestamp: ts,
		Data: platform.Link{
			Source:    get("source"),
			Predicate: get("predicate"),
			Target:    get("target"),
		},
	}
}
