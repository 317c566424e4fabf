// Package playbackmodule implements the playback reconciliation engine: a
// single audio output driven by desired-state intent, a play queue with
// shuffle and repeat, and host integrations for now-playing metadata and
// display sleep.
package playbackmodule

import "errors"

// ErrOutputBlocked is returned by an AudioOutput when the platform refused
// to start playback (autoplay policy, exclusive-device conflict).
var ErrOutputBlocked = errors.New("playback blocked by platform")

// State is the engine's externally visible playback state.
type State string

const (
	StateNoTrack State = "no-track" // nothing loaded
	StateLoading State = "loading"  // source resolution or output load in flight
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateBlocked State = "blocked" // platform refused playback; waiting for a user gesture
	StateError   State = "error"   // output reported an unrecoverable fault
)

// RepeatMode controls what happens when a track finishes on its own.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// LifecycleReason identifies the host signal that triggered reconciliation.
type LifecycleReason string

const (
	ReasonVisible LifecycleReason = "visible"
	ReasonHidden  LifecycleReason = "hidden"
	ReasonFocus   LifecycleReason = "focus"
	ReasonBlur    LifecycleReason = "blur"
)

// Status is a point-in-time snapshot of the engine for API consumers.
type Status struct {
	State    State      `json:"state"`
	TrackID  string     `json:"track_id,omitempty"`
	Position float64    `json:"position"`
	Duration float64    `json:"duration"`
	Volume   float64    `json:"volume"`
	Repeat   RepeatMode `json:"repeat"`
	Shuffle  bool       `json:"shuffle"`
}

// NowPlayingHandlers are the callbacks the host's media-key surface invokes.
type NowPlayingHandlers struct {
	OnPlay  func()
	OnPause func()
	OnNext  func()
	OnPrev  func()
}

// NowPlaying mirrors track metadata and transport state to the host's
// now-playing surface (media keys, lock screen).
type NowPlaying interface {
	SetMetadata(title, artist, album, coverPath string)
	SetPlaying(playing bool)
	SetHandlers(handlers NowPlayingHandlers)
	Clear()
}

// DisplayLock keeps the host display awake while audio plays.
type DisplayLock interface {
	Acquire() error
	Release()
}

// NoopNowPlaying is used when the host offers no now-playing surface.
type NoopNowPlaying struct{}

func (NoopNowPlaying) SetMetadata(title, artist, album, coverPath string) {}
func (NoopNowPlaying) SetPlaying(playing bool)                           {}
func (NoopNowPlaying) SetHandlers(handlers NowPlayingHandlers)           {}
func (NoopNowPlaying) Clear()                                            {}

// NoopDisplayLock is used when the host offers no wake-lock facility.
type NoopDisplayLock struct{}

func (NoopDisplayLock) Acquire() error { return nil }
func (NoopDisplayLock) Release()       {}
