package playbackmodule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/events"
	"github.com/tuneport/tuneport/internal/library"
)

// HandleResolver is the slice of the handle store the engine needs to turn
// a stored handle back into a playable path.
type HandleResolver interface {
	Get(ctx context.Context, id string) (*database.StoredHandle, error)
}

// Deps carries the engine's collaborators. NowPlaying and DisplayLock fall
// back to no-ops when nil; Bus and Handles are optional.
type Deps struct {
	Output      AudioOutput
	Library     *library.State
	Handles     HandleResolver
	Bus         events.EventBus
	NowPlaying  NowPlaying
	DisplayLock DisplayLock
}

// transientSource is a temp file materialized from an inline blob for the
// duration of one load. Release is idempotent: whichever path gets there
// first (supersession, the next load, shutdown) removes the file once.
type transientSource struct {
	path string
	once sync.Once
}

func (t *transientSource) release() {
	if t == nil {
		return
	}
	t.once.Do(func() { _ = os.Remove(t.path) })
}

// Engine owns the single audio output and reconciles it against the user's
// desired playback state. All externally visible transitions go through the
// engine; the output itself is never reached around.
type Engine struct {
	logger hclog.Logger
	deps   Deps
	queue  *Queue

	mu             sync.Mutex
	state          State
	currentTrackID string
	desiredPlaying bool
	// lastKnownShouldBePlaying snapshots intent across lifecycle gaps
	// (hidden, blur) so reconciliation can resume what the platform
	// silently stopped. A platform block clears it.
	lastKnownShouldBePlaying bool
	volume                   float64
	loadGen                  uint64
	transient                *transientSource
	lockHeld                 bool

	telemetryStop chan struct{}
	telemetryDone chan struct{}
}

// NewEngine creates the playback engine around the given output.
func NewEngine(deps Deps, logger hclog.Logger) *Engine {
	if deps.NowPlaying == nil {
		deps.NowPlaying = NoopNowPlaying{}
	}
	if deps.DisplayLock == nil {
		deps.DisplayLock = NoopDisplayLock{}
	}

	e := &Engine{
		logger: logger.Named("playback"),
		deps:   deps,
		queue:  NewQueue(),
		state:  StateNoTrack,
		volume: 1.0,
	}

	deps.Output.OnEnded(e.handleTrackEnded)
	deps.NowPlaying.SetHandlers(NowPlayingHandlers{
		OnPlay:  func() { _ = e.Play(context.Background()) },
		OnPause: func() { _ = e.Pause() },
		OnNext:  func() { _ = e.PlayNext(context.Background()) },
		OnPrev:  func() { _ = e.PlayPrev(context.Background()) },
	})

	return e
}

// Queue exposes the play queue for order, shuffle and repeat control.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// Start launches the telemetry loop that mirrors the play head into the
// shared library state.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.telemetryStop != nil {
		return
	}
	e.telemetryStop = make(chan struct{})
	e.telemetryDone = make(chan struct{})
	go e.telemetryLoop(e.telemetryStop, e.telemetryDone)
}

// Stop shuts the engine down: telemetry stops, the output is closed, and
// any transient source is released.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	stop, done := e.telemetryStop, e.telemetryDone
	e.telemetryStop, e.telemetryDone = nil, nil
	trans := e.transient
	e.transient = nil
	e.releaseDisplayLocked()
	e.state = StateNoTrack
	e.currentTrackID = ""
	e.desiredPlaying = false
	e.lastKnownShouldBePlaying = false
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	trans.release()
	e.deps.NowPlaying.Clear()
	return e.deps.Output.Close()
}

// SetTracks replaces the play queue, typically after an import or library
// edit.
func (e *Engine) SetTracks(ids []string) {
	e.queue.SetTracks(ids)
}

// PlayTrack selects id in the queue, loads it and starts playback.
func (e *Engine) PlayTrack(ctx context.Context, id string) error {
	if !e.queue.Select(id) {
		// Playing outside the queue is still allowed; the track just will
		// not take part in next/prev walking.
		e.logger.Debug("track not in queue, playing standalone", "track_id", id)
	}
	return e.load(ctx, id, true)
}

// Play resumes the current track, or starts the queue from its current
// position when nothing is loaded yet.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	hasTrack := e.currentTrackID != ""
	e.mu.Unlock()

	if !hasTrack {
		id, ok := e.queue.Current()
		if !ok {
			if id, ok = e.queue.Next(); !ok {
				return fmt.Errorf("nothing to play")
			}
		}
		return e.load(ctx, id, true)
	}

	e.mu.Lock()
	e.desiredPlaying = true
	e.mu.Unlock()
	return e.reconcile(ctx)
}

// Pause suspends playback and drops the resume intent.
func (e *Engine) Pause() error {
	e.mu.Lock()
	e.desiredPlaying = false
	e.lastKnownShouldBePlaying = false
	hadTrack := e.currentTrackID != ""
	e.releaseDisplayLocked()
	if hadTrack {
		e.state = StatePaused
	}
	e.mu.Unlock()

	if !hadTrack {
		return nil
	}

	if err := e.deps.Output.Pause(); err != nil {
		e.logger.Warn("pause failed", "error", err)
	}
	e.deps.NowPlaying.SetPlaying(false)
	e.publish(events.EventPlaybackPaused, "Paused", "")
	return nil
}

// Toggle flips between play and pause.
func (e *Engine) Toggle(ctx context.Context) error {
	e.mu.Lock()
	playing := e.desiredPlaying
	e.mu.Unlock()
	if playing {
		return e.Pause()
	}
	return e.Play(ctx)
}

// Seek moves the play head within the current track.
func (e *Engine) Seek(seconds float64) error {
	e.mu.Lock()
	hasTrack := e.currentTrackID != ""
	e.mu.Unlock()
	if !hasTrack {
		return fmt.Errorf("no track loaded")
	}
	return e.deps.Output.Seek(seconds)
}

// PlayNext advances to the next queue entry. An explicit skip always wraps;
// repeat mode only governs natural track ends. The paused/playing intent
// carries over to the new track.
func (e *Engine) PlayNext(ctx context.Context) error {
	id, ok := e.queue.Next()
	if !ok {
		return fmt.Errorf("queue is empty")
	}
	e.mu.Lock()
	autoplay := e.desiredPlaying
	e.mu.Unlock()
	return e.load(ctx, id, autoplay)
}

// PlayPrev steps back to the previous queue entry, wrapping at the front.
func (e *Engine) PlayPrev(ctx context.Context) error {
	id, ok := e.queue.Prev()
	if !ok {
		return fmt.Errorf("queue is empty")
	}
	e.mu.Lock()
	autoplay := e.desiredPlaying
	e.mu.Unlock()
	return e.load(ctx, id, autoplay)
}

// SetVolume adjusts the output level, 0 to 1.
func (e *Engine) SetVolume(volume float64) error {
	if err := e.deps.Output.SetVolume(volume); err != nil {
		return err
	}
	e.mu.Lock()
	e.volume = volume
	e.mu.Unlock()
	return nil
}

// Status returns a snapshot for API consumers.
func (e *Engine) Status() Status {
	e.mu.Lock()
	status := Status{
		State:   e.state,
		TrackID: e.currentTrackID,
		Volume:  e.volume,
	}
	e.mu.Unlock()

	status.Position = e.deps.Output.Position()
	status.Duration = e.deps.Output.Duration()
	status.Repeat = e.queue.Repeat()
	status.Shuffle = e.queue.Shuffle()
	return status
}

// load resolves the track's source and hands it to the output. A load that
// is superseded by a newer one releases its transient source and stops
// silently; only the newest load drives the output.
func (e *Engine) load(ctx context.Context, id string, autoplay bool) error {
	e.mu.Lock()
	e.loadGen++
	gen := e.loadGen
	e.state = StateLoading
	e.currentTrackID = id
	e.desiredPlaying = autoplay
	prev := e.transient
	e.transient = nil
	e.mu.Unlock()

	prev.release()

	track, ok := e.deps.Library.Track(id)
	if !ok {
		e.clearTrack(gen)
		e.notice("Track is no longer in the library")
		return fmt.Errorf("track %s not found", id)
	}

	path, trans, err := e.resolveSource(ctx, track)
	if err != nil {
		e.clearTrack(gen)
		e.notice(fmt.Sprintf("Couldn't open %q: the file is missing or unreadable", track.Title))
		return fmt.Errorf("failed to resolve source for %s: %w", id, err)
	}

	e.mu.Lock()
	if e.loadGen != gen {
		e.mu.Unlock()
		trans.release()
		return nil
	}
	e.transient = trans
	e.mu.Unlock()

	if err := e.deps.Output.Load(ctx, path); err != nil {
		e.mu.Lock()
		superseded := e.loadGen != gen
		if !superseded {
			e.transient = nil
			e.state = StateError
		}
		e.mu.Unlock()
		trans.release()
		if superseded {
			return nil
		}
		e.notice(fmt.Sprintf("Couldn't play %q", track.Title))
		return fmt.Errorf("output rejected %s: %w", path, err)
	}

	e.mu.Lock()
	if e.loadGen != gen {
		e.mu.Unlock()
		trans.release()
		return nil
	}
	e.state = StatePaused
	e.mu.Unlock()

	e.deps.NowPlaying.SetMetadata(track.Title, track.Artist, track.Album, track.CoverPath)
	e.publish(events.EventTrackChanged, "Track changed", track.Title)

	if autoplay {
		return e.startPlayback(ctx)
	}
	e.deps.NowPlaying.SetPlaying(false)
	return nil
}

// startPlayback asks the output to play and maps the outcome onto engine
// state. A platform block is not an error from the caller's perspective.
func (e *Engine) startPlayback(ctx context.Context) error {
	err := e.deps.Output.Play(ctx)

	if errors.Is(err, ErrOutputBlocked) {
		e.mu.Lock()
		e.state = StateBlocked
		e.lastKnownShouldBePlaying = false
		e.releaseDisplayLocked()
		e.mu.Unlock()
		e.deps.NowPlaying.SetPlaying(false)
		e.notice("Playback was blocked by the system. Press play to resume.")
		return nil
	}
	if err != nil {
		e.mu.Lock()
		e.state = StateError
		e.mu.Unlock()
		e.notice("Playback failed")
		return fmt.Errorf("output failed to play: %w", err)
	}

	e.mu.Lock()
	e.state = StatePlaying
	e.desiredPlaying = true
	e.lastKnownShouldBePlaying = true
	e.acquireDisplayLocked()
	e.mu.Unlock()

	e.deps.NowPlaying.SetPlaying(true)
	e.publish(events.EventPlaybackStarted, "Playing", "")
	return nil
}

// reconcile drives the output toward the desired state. It is the single
// place where desired and actual playback are compared.
func (e *Engine) reconcile(ctx context.Context) error {
	e.mu.Lock()
	desired := e.desiredPlaying
	e.mu.Unlock()

	actual := e.deps.Output.Playing()
	switch {
	case desired && !actual:
		if !e.deps.Output.HasSource() {
			return fmt.Errorf("no source loaded")
		}
		return e.startPlayback(ctx)
	case !desired && actual:
		return e.Pause()
	default:
		return nil
	}
}

// handleTrackEnded runs on the output's callback goroutine when a track
// finishes naturally. Repeat-one replays in place; otherwise the queue
// decides what follows.
func (e *Engine) handleTrackEnded() {
	ctx := context.Background()

	e.mu.Lock()
	current := e.currentTrackID
	e.mu.Unlock()
	if current == "" {
		return
	}

	next, ok := e.queue.Advance()
	if !ok {
		e.mu.Lock()
		e.state = StatePaused
		e.desiredPlaying = false
		e.lastKnownShouldBePlaying = false
		e.releaseDisplayLocked()
		e.mu.Unlock()
		e.deps.NowPlaying.SetPlaying(false)
		e.publish(events.EventPlaybackPaused, "Queue finished", "")
		return
	}

	if next == current {
		// Repeat-one replays the already loaded source.
		if err := e.deps.Output.Seek(0); err != nil {
			e.logger.Warn("repeat seek failed", "error", err)
			return
		}
		if err := e.startPlayback(ctx); err != nil {
			e.logger.Warn("repeat restart failed", "error", err)
		}
		return
	}

	if err := e.load(ctx, next, true); err != nil {
		e.logger.Warn("auto-advance failed", "track_id", next, "error", err)
	}
}

// resolveSource turns a track record into a playable path. Inline blobs are
// materialized to a temp file owned by the returned transientSource.
func (e *Engine) resolveSource(ctx context.Context, track database.Track) (string, *transientSource, error) {
	switch track.Source {
	case database.SourceBlob:
		if len(track.InlineBlob) == 0 {
			return "", nil, fmt.Errorf("track has no inline content")
		}
		tmp, err := os.CreateTemp("", "tuneport-*.audio")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create temp source: %w", err)
		}
		if _, err := tmp.Write(track.InlineBlob); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return "", nil, fmt.Errorf("failed to write temp source: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return "", nil, fmt.Errorf("failed to finalize temp source: %w", err)
		}
		return tmp.Name(), &transientSource{path: tmp.Name()}, nil

	case database.SourceHandle:
		if e.deps.Handles == nil {
			return "", nil, fmt.Errorf("no handle store configured")
		}
		handle, err := e.deps.Handles.Get(ctx, track.HandleID)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load handle %s: %w", track.HandleID, err)
		}
		if handle == nil {
			return "", nil, fmt.Errorf("handle %s no longer exists", track.HandleID)
		}
		if _, err := os.Stat(handle.Path); err != nil {
			return "", nil, fmt.Errorf("handle target unreachable: %w", err)
		}
		return handle.Path, nil, nil

	default:
		if track.SourcePath == "" {
			return "", nil, fmt.Errorf("track has no source path")
		}
		if _, err := os.Stat(track.SourcePath); err != nil {
			return "", nil, fmt.Errorf("source file unreachable: %w", err)
		}
		return track.SourcePath, nil, nil
	}
}

// clearTrack resets the engine to no-track, but only if the failing load is
// still the newest one.
func (e *Engine) clearTrack(gen uint64) {
	e.mu.Lock()
	if e.loadGen != gen {
		e.mu.Unlock()
		return
	}
	e.state = StateNoTrack
	e.currentTrackID = ""
	e.desiredPlaying = false
	e.lastKnownShouldBePlaying = false
	e.releaseDisplayLocked()
	e.mu.Unlock()
	e.deps.NowPlaying.Clear()
}

func (e *Engine) telemetryLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.mu.Lock()
			trackID := e.currentTrackID
			e.mu.Unlock()
			if trackID == "" || e.deps.Library == nil {
				continue
			}
			e.deps.Library.SetTelemetry(library.Telemetry{
				TrackID:  trackID,
				Position: e.deps.Output.Position(),
				Duration: e.deps.Output.Duration(),
				Playing:  e.deps.Output.Playing(),
			})
		}
	}
}

// acquireDisplayLocked / releaseDisplayLocked balance the wake lock so it
// is held exactly while audio plays. Caller holds the mutex.
func (e *Engine) acquireDisplayLocked() {
	if e.lockHeld {
		return
	}
	if err := e.deps.DisplayLock.Acquire(); err != nil {
		e.logger.Debug("failed to acquire display lock", "error", err)
		return
	}
	e.lockHeld = true
}

func (e *Engine) releaseDisplayLocked() {
	if !e.lockHeld {
		return
	}
	e.deps.DisplayLock.Release()
	e.lockHeld = false
}

// notice publishes a user-facing playback message.
func (e *Engine) notice(message string) {
	e.logger.Info("playback notice", "message", message)
	e.publish(events.EventPlaybackNotice, "Playback", message)
}

func (e *Engine) publish(eventType events.EventType, title, message string) {
	if e.deps.Bus == nil {
		return
	}
	e.deps.Bus.PublishAsync(events.NewEvent(eventType, "playback", title, message))
}
