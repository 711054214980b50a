package indexer

// Event types emitted by the search and grab pipelines.
const (
	EventSearchStarted   = "search:started"
	EventSearchCompleted = "search:completed"
	EventGrabStarted     = "grab:started"
	EventGrabCompleted   = "grab:completed"
	EventIndexerStatus   = "indexer:status"
)

// Broadcaster receives pipeline events. Implementations fan them out
// to whatever surface is interested; a no-op broadcaster is always
// acceptable.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// NopBroadcaster discards all events.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(string, any) {}

// SearchStartedPayload is sent when a search begins.
type SearchStartedPayload struct {
	Query      string  `json:"query,omitempty"`
	Type       string  `json:"type"`
	IndexerIDs []int64 `json:"indexerIds,omitempty"`
}

// SearchCompletedPayload is sent when a search finishes.
type SearchCompletedPayload struct {
	Query        string   `json:"query,omitempty"`
	Type         string   `json:"type"`
	TotalResults int      `json:"totalResults"`
	IndexersUsed int      `json:"indexersUsed"`
	Errors       []string `json:"errors,omitempty"`
	ElapsedMs    int64    `json:"elapsedMs"`
}

// GrabStartedPayload is sent when a grab begins.
type GrabStartedPayload struct {
	Title     string `json:"title"`
	IndexerID int64  `json:"indexerId"`
	Protocol  string `json:"protocol"`
}

// GrabCompletedPayload is sent when a grab finishes.
type GrabCompletedPayload struct {
	Title      string `json:"title"`
	IndexerID  int64  `json:"indexerId"`
	Success    bool   `json:"success"`
	DownloadID string `json:"downloadId,omitempty"`
	ClientName string `json:"clientName,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IndexerStatusPayload is sent when indexer health changes.
type IndexerStatusPayload struct {
	IndexerID   int64  `json:"indexerId"`
	IndexerName string `json:"indexerName"`
	Status      string `json:"status"` // healthy, warning, disabled
	Message     string `json:"message,omitempty"`
}
