package playbackmodule

import "context"

// AudioOutput is the single audio device the engine drives. Implementations
// own exactly one source at a time; Load replaces any previous one.
//
// Play returns ErrOutputBlocked when the platform refuses to start audio;
// the engine maps that to StateBlocked rather than treating it as a fault.
type AudioOutput interface {
	// Load prepares path for playback without starting it.
	Load(ctx context.Context, path string) error
	Play(ctx context.Context) error
	Pause() error
	// Seek moves the play head, in seconds from the start.
	Seek(seconds float64) error
	Position() float64
	Duration() float64
	Playing() bool
	// HasSource reports whether a Load has succeeded since the last Close.
	HasSource() bool
	SetVolume(volume float64) error
	// OnEnded registers the callback invoked when a track finishes on its
	// own. It is not invoked for Pause, Load or Close.
	OnEnded(fn func())
	Close() error
}
