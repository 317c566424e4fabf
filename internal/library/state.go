// Package library holds the shared mutable state both core components read
// and write: the track list, playlists, and live playback telemetry. Writes
// are last-writer-wins object replacement; the import pipeline writes track
// lists while the playback engine writes telemetry, so the two never race on
// overlapping fields.
package library

import (
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/database"
)

// Telemetry is the playback state the engine publishes for UI consumption.
type Telemetry struct {
	TrackID  string  `json:"track_id,omitempty"`
	Position float64 `json:"position"` // seconds
	Duration float64 `json:"duration"` // seconds
	Playing  bool    `json:"playing"`
}

// State is the observable library store.
type State struct {
	logger hclog.Logger

	mu        sync.RWMutex
	tracks    []database.Track
	byID      map[string]int
	telemetry Telemetry
	subs      map[string]func()
}

// NewState creates an empty library state.
func NewState(logger hclog.Logger) *State {
	return &State{
		logger: logger.Named("library"),
		byID:   make(map[string]int),
		subs:   make(map[string]func()),
	}
}

// SetTracks replaces the whole track list.
func (s *State) SetTracks(tracks []database.Track) {
	s.mu.Lock()
	s.tracks = append([]database.Track(nil), tracks...)
	s.reindexLocked()
	s.mu.Unlock()
	s.notify()
}

// AppendTracks adds newly imported tracks, replacing any entry that shares a
// track id.
func (s *State) AppendTracks(tracks []database.Track) {
	if len(tracks) == 0 {
		return
	}
	s.mu.Lock()
	for _, track := range tracks {
		if i, ok := s.byID[track.ID]; ok {
			s.tracks[i] = track
			continue
		}
		s.byID[track.ID] = len(s.tracks)
		s.tracks = append(s.tracks, track)
	}
	s.mu.Unlock()
	s.notify()
}

// RemoveTrack drops a track from the in-memory list.
func (s *State) RemoveTrack(id string) {
	s.mu.Lock()
	if i, ok := s.byID[id]; ok {
		s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
		s.reindexLocked()
	}
	s.mu.Unlock()
	s.notify()
}

// Tracks returns a copy of the track list.
func (s *State) Tracks() []database.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]database.Track(nil), s.tracks...)
}

// TrackIDs returns the track ids in library order.
func (s *State) TrackIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.tracks))
	for i, track := range s.tracks {
		ids[i] = track.ID
	}
	return ids
}

// Track looks up one track by id.
func (s *State) Track(id string) (database.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byID[id]; ok {
		return s.tracks[i], true
	}
	return database.Track{}, false
}

// SetTelemetry replaces the playback telemetry.
func (s *State) SetTelemetry(t Telemetry) {
	s.mu.Lock()
	s.telemetry = t
	s.mu.Unlock()
	s.notify()
}

// Telemetry returns the current playback telemetry.
func (s *State) Telemetry() Telemetry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.telemetry
}

// Subscribe registers a change callback and returns its id. Callbacks run
// synchronously on the mutating goroutine and must be fast.
func (s *State) Subscribe(fn func()) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.subs[id] = fn
	s.mu.Unlock()
	return id
}

// Unsubscribe removes a change callback.
func (s *State) Unsubscribe(id string) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *State) reindexLocked() {
	s.byID = make(map[string]int, len(s.tracks))
	for i, track := range s.tracks {
		s.byID[track.ID] = i
	}
}

func (s *State) notify() {
	s.mu.RLock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn()
	}
}
