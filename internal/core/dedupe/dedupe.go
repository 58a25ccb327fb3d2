// Package dedupe decides which topic names returned by the model need a new
// topic entity. Matching is by exact name.
package dedupe

import "github.com/agenthands/synergy/internal/core/model"

// NewTopicsToCreate returns the first mention of every name that is neither
// repeated earlier in mentions nor already an existing topic.
func NewTopicsToCreate(mentions []model.TopicMention, existing []model.Topic) []model.TopicMention {
	known := make(map[string]bool, len(existing)+len(mentions))
	for _, t := range existing {
		known[t.Name] = true
	}

	var out []model.TopicMention
	for _, m := range mentions {
		if known[m.Name] {
			continue
		}
		known[m.Name] = true
		out = append(out, m)
	}
	return out
}

// Resolve maps a topic name to its entity, looking in created before existing.
func Resolve(name string, created, existing []model.Topic) (model.Topic, bool) {
	for _, t := range created {
		if t.Name == name {
			return t, true
		}
	}
	for _, t := range existing {
		if t.Name == name {
			return t, true
		}
	}
	return model.Topic{}, false
}
