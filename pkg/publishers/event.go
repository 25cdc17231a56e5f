package publishers

import (
	"time"

	"github.com/Adda-Baaj/arcadia/internal/domain"
)

// EventImageRendered is the type of events emitted after a render completes.
const EventImageRendered = "image.rendered"

// Event represents the payload published downstream.
type Event struct {
	Type       string        `json:"type"`
	JobID      string        `json:"job_id"`
	Render     domain.Render `json:"render"`
	RenderedAt time.Time     `json:"rendered_at"`
}

// NewEvent constructs an image.rendered Event for the given render.
func NewEvent(render domain.Render) Event {
	return Event{
		Type:       EventImageRendered,
		JobID:      render.JobID,
		Render:     render,
		RenderedAt: time.Now().UTC(),
	}
}

// attributes are the message attributes attached by queue/topic publishers.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type": e.Type,
		"job_id":     e.JobID,
		"endpoint":   e.Render.Endpoint,
	}
}
