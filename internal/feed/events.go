package feed

import (
	"time"
)

// EventKind names a session change.
type EventKind string

const (
	EventCatalogStatus EventKind = "catalog.status"
	EventDetailStatus  EventKind = "detail.status"
	EventItemLiked     EventKind = "item.liked"
	EventItemCommented EventKind = "item.commented"
	EventItemUploaded  EventKind = "item.uploaded"
)

// Event describes one observable change of a Session.
type Event struct {
	Kind       EventKind   `json:"kind"`
	UserID     string      `json:"userId"`
	ItemID     string      `json:"itemId,omitempty"`
	Status     QueryStatus `json:"status,omitempty"`
	Error      string      `json:"error,omitempty"`
	Liked      *bool       `json:"liked,omitempty"`
	LikeCount  *int        `json:"likes,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

// Notifier receives session events. Implementations must not block.
type Notifier interface {
	Publish(event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event Event)

// Publish calls f(event).
func (f NotifierFunc) Publish(event Event) {
	f(event)
}
