package domain

import "time"

// PostEvent is the payload published on the broker when a post is created.
type PostEvent struct {
	ID             string    `json:"id"`
	Message        string    `json:"message"`
	CreationTime   time.Time `json:"creationTime"`
	AuthorUsername string    `json:"authorUsername"`
	Enabled        bool      `json:"enabled"`
	Action         string    `json:"action,omitempty"`
}

// Post converts the event into the canonical post value.
func (e PostEvent) Post() Post {
	return NewPost(e.ID, e.AuthorUsername, e.Message, e.CreationTime, e.Enabled)
}

// IngestOutcome is the terminal state of one inbound event.
type IngestOutcome int

const (
	// OutcomeIgnored: missing header, blank correlation id or no payload. Acknowledged.
	OutcomeIgnored IngestOutcome = iota
	// OutcomeRejected: the post failed validation. Dropped without redelivery.
	OutcomeRejected
	// OutcomeArchived: the post reference is durable.
	OutcomeArchived
)

func (o IngestOutcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	case OutcomeArchived:
		return "archived"
	default:
		return "unknown"
	}
}
