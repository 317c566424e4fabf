// Package events provides the in-process event bus used for import progress
// and playback notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// Import events
	EventImportStarted   EventType = "import.started"
	EventImportProgress  EventType = "import.progress"
	EventImportCompleted EventType = "import.completed"
	EventImportCancelled EventType = "import.cancelled"

	// Playback events
	EventPlaybackStarted EventType = "playback.started"
	EventPlaybackPaused  EventType = "playback.paused"
	EventTrackChanged    EventType = "playback.track_changed"
	EventPlaybackNotice  EventType = "playback.notice"

	// Library events
	EventTracksAdded  EventType = "library.tracks_added"
	EventTrackDeleted EventType = "library.track_deleted"
)

// Event represents a system event.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Handler is a subscriber callback. Handlers must not block; slow consumers
// should hand off to their own goroutine.
type Handler func(Event)

// NewEvent creates an event with id and timestamp filled in.
func NewEvent(eventType EventType, source, title, message string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}
