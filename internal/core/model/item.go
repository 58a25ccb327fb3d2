package model

import "time"

const (
	ItemMessage = "Message"
	ItemPost    = "Post"
	ItemTask    = "Task"
)

// Item is the common view of a message, post or task.
type Item struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Icon      string    `json:"icon"`
}

func ItemIDs(items []Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}
