package model

// Signal predicates exchanged by coordinators.
const (
	CanYouProcessItems     = "can-you-process-items"
	ICanProcessItems       = "i-can-process-items"
	ProcessingItemsStarted = "processing-items-started"
	ProcessingItemsDone    = "processing-items-finished"
	IsAnyoneProcessing     = "is-anyone-processing"
	ProcessingInProgress   = "processing-in-progress"
)

// ProcessingData describes one in-flight processing run.
type ProcessingData struct {
	Author    string   `json:"author"`
	ChannelID string   `json:"channelId"`
	Items     []string `json:"items"`
}
