package playbackmodule

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/library"
)

// fakeOutput implements AudioOutput in memory with scriptable failures.
type fakeOutput struct {
	mu         sync.Mutex
	loaded     string
	hasSource  bool
	playing    bool
	position   float64
	duration   float64
	volume     float64
	onEnded    func()
	loadErr    error
	blockPlays int // Play calls to refuse with ErrOutputBlocked
	loadCalls  int
	playCalls  int
	seekCalls  int
	lastSeek   float64
}

func (f *fakeOutput) Load(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = path
	f.hasSource = true
	f.playing = false
	f.position = 0
	return nil
}

func (f *fakeOutput) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	if f.blockPlays > 0 {
		f.blockPlays--
		return ErrOutputBlocked
	}
	f.playing = true
	return nil
}

func (f *fakeOutput) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return nil
}

func (f *fakeOutput) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seekCalls++
	f.lastSeek = seconds
	f.position = seconds
	return nil
}

func (f *fakeOutput) Position() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.position }
func (f *fakeOutput) Duration() float64 { f.mu.Lock(); defer f.mu.Unlock(); return f.duration }
func (f *fakeOutput) Playing() bool     { f.mu.Lock(); defer f.mu.Unlock(); return f.playing }
func (f *fakeOutput) HasSource() bool   { f.mu.Lock(); defer f.mu.Unlock(); return f.hasSource }

func (f *fakeOutput) SetVolume(volume float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakeOutput) OnEnded(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onEnded = fn
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasSource = false
	f.playing = false
	return nil
}

// finishTrack simulates a track running to its natural end.
func (f *fakeOutput) finishTrack() {
	f.mu.Lock()
	f.playing = false
	fn := f.onEnded
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// silentlyStop simulates the platform halting audio without telling us.
func (f *fakeOutput) silentlyStop() {
	f.mu.Lock()
	f.playing = false
	f.mu.Unlock()
}

type fakeNowPlaying struct {
	mu       sync.Mutex
	title    string
	playing  bool
	cleared  bool
	handlers NowPlayingHandlers
}

func (f *fakeNowPlaying) SetMetadata(title, artist, album, coverPath string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = title
	f.cleared = false
}

func (f *fakeNowPlaying) SetPlaying(playing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = playing
}

func (f *fakeNowPlaying) SetHandlers(handlers NowPlayingHandlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = handlers
}

func (f *fakeNowPlaying) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = ""
	f.playing = false
	f.cleared = true
}

func (f *fakeNowPlaying) snapshot() (string, bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title, f.playing, f.cleared
}

type fakeDisplayLock struct {
	mu       sync.Mutex
	acquires int
	releases int
}

func (f *fakeDisplayLock) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	return nil
}

func (f *fakeDisplayLock) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
}

func (f *fakeDisplayLock) held() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires > f.releases
}

// fileTrack creates a real on-disk source and its track record.
func fileTrack(t *testing.T, dir, title string) database.Track {
	t.Helper()
	path := filepath.Join(dir, title+".mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio:"+title), 0o644))
	return database.Track{
		ID:         uuid.NewString(),
		Title:      title,
		Artist:     "Artist",
		Source:     database.SourceFile,
		SourcePath: path,
	}
}

func blobTrack(title string, content []byte) database.Track {
	return database.Track{
		ID:         uuid.NewString(),
		Title:      title,
		Source:     database.SourceBlob,
		InlineBlob: content,
	}
}

type engineFixture struct {
	engine  *Engine
	output  *fakeOutput
	now     *fakeNowPlaying
	lock    *fakeDisplayLock
	library *library.State
}

func newEngineFixture(t *testing.T, tracks ...database.Track) *engineFixture {
	t.Helper()
	output := &fakeOutput{}
	now := &fakeNowPlaying{}
	lock := &fakeDisplayLock{}
	lib := library.NewState(hclog.NewNullLogger())
	lib.SetTracks(tracks)

	engine := NewEngine(Deps{
		Output:      output,
		Library:     lib,
		NowPlaying:  now,
		DisplayLock: lock,
	}, hclog.NewNullLogger())

	ids := make([]string, len(tracks))
	for i, track := range tracks {
		ids[i] = track.ID
	}
	engine.SetTracks(ids)

	return &engineFixture{engine: engine, output: output, now: now, lock: lock, library: lib}
}

func TestPlayTrackLoadsAndPlays(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))

	status := fx.engine.Status()
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, track.ID, status.TrackID)
	assert.Equal(t, track.SourcePath, fx.output.loaded)
	assert.True(t, fx.lock.held(), "display lock is held while playing")

	title, playing, _ := fx.now.snapshot()
	assert.Equal(t, "song", title)
	assert.True(t, playing)
}

func TestPauseDropsIntentAndReleasesLock(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)
	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))

	require.NoError(t, fx.engine.Pause())

	status := fx.engine.Status()
	assert.Equal(t, StatePaused, status.State)
	assert.False(t, fx.output.Playing())
	assert.False(t, fx.lock.held())

	_, playing, _ := fx.now.snapshot()
	assert.False(t, playing)
}

func TestBlockedPlatformClearsResumeIntent(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)
	fx.output.blockPlays = 1

	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))
	assert.Equal(t, StateBlocked, fx.engine.Status().State)
	assert.False(t, fx.lock.held())

	// The block cleared the resume intent, so lifecycle signals must not
	// keep hammering Play.
	before := fx.output.playCalls
	fx.engine.OnLifecycleSignal(context.Background(), ReasonVisible)
	assert.Equal(t, before, fx.output.playCalls)

	// An explicit user gesture still works once the platform allows it.
	require.NoError(t, fx.engine.Play(context.Background()))
	assert.Equal(t, StatePlaying, fx.engine.Status().State)
}

func TestLifecycleResumeAfterPlatformStop(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)
	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))

	fx.engine.OnLifecycleSignal(context.Background(), ReasonHidden)
	fx.output.silentlyStop()
	fx.engine.OnLifecycleSignal(context.Background(), ReasonVisible)

	assert.True(t, fx.output.Playing(), "playback resumes when intent says it should be playing")
	assert.Equal(t, StatePlaying, fx.engine.Status().State)
}

func TestLifecycleVisibleWhilePausedStaysPaused(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)
	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))
	require.NoError(t, fx.engine.Pause())

	fx.engine.OnLifecycleSignal(context.Background(), ReasonHidden)
	fx.engine.OnLifecycleSignal(context.Background(), ReasonVisible)

	assert.False(t, fx.output.Playing())
	assert.Equal(t, StatePaused, fx.engine.Status().State)
}

func TestBlobTrackMaterializesAndReleasesTransientSource(t *testing.T) {
	trackA := blobTrack("inline-a", []byte("content-a"))
	trackB := blobTrack("inline-b", []byte("content-b"))
	fx := newEngineFixture(t, trackA, trackB)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), trackA.ID))
	pathA := fx.output.loaded
	data, err := os.ReadFile(pathA)
	require.NoError(t, err)
	assert.Equal(t, []byte("content-a"), data)

	// Loading the next track releases A's temp file exactly once.
	require.NoError(t, fx.engine.PlayTrack(context.Background(), trackB.ID))
	_, err = os.Stat(pathA)
	assert.True(t, os.IsNotExist(err), "superseded transient source must be removed")

	pathB := fx.output.loaded
	require.NoError(t, fx.engine.Stop(context.Background()))
	_, err = os.Stat(pathB)
	assert.True(t, os.IsNotExist(err), "shutdown must release the live transient source")
}

func TestUnresolvableSourceClearsIntent(t *testing.T) {
	track := database.Track{
		ID:         uuid.NewString(),
		Title:      "gone",
		Source:     database.SourceFile,
		SourcePath: "/nonexistent/gone.mp3",
	}
	fx := newEngineFixture(t, track)

	err := fx.engine.PlayTrack(context.Background(), track.ID)
	require.Error(t, err)

	status := fx.engine.Status()
	assert.Equal(t, StateNoTrack, status.State)
	assert.Empty(t, status.TrackID)
	_, _, cleared := fx.now.snapshot()
	assert.True(t, cleared)
}

func TestTrackEndAdvancesQueue(t *testing.T) {
	dir := t.TempDir()
	trackA := fileTrack(t, dir, "first")
	trackB := fileTrack(t, dir, "second")
	fx := newEngineFixture(t, trackA, trackB)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), trackA.ID))
	fx.output.finishTrack()

	status := fx.engine.Status()
	assert.Equal(t, trackB.ID, status.TrackID)
	assert.Equal(t, StatePlaying, status.State)
	assert.Equal(t, trackB.SourcePath, fx.output.loaded)
}

func TestTrackEndRepeatOneReplaysInPlace(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "loop")
	fx := newEngineFixture(t, track)
	fx.engine.Queue().SetRepeat(RepeatOne)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))
	loadsBefore := fx.output.loadCalls
	fx.output.finishTrack()

	assert.Equal(t, loadsBefore, fx.output.loadCalls, "repeat-one replays without reloading")
	assert.Equal(t, float64(0), fx.output.lastSeek)
	assert.True(t, fx.output.Playing())
	assert.Equal(t, track.ID, fx.engine.Status().TrackID)
}

func TestTrackEndAtQueueEndStops(t *testing.T) {
	dir := t.TempDir()
	trackA := fileTrack(t, dir, "first")
	trackB := fileTrack(t, dir, "last")
	fx := newEngineFixture(t, trackA, trackB)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), trackB.ID))
	fx.output.finishTrack()

	status := fx.engine.Status()
	assert.Equal(t, StatePaused, status.State)
	assert.Equal(t, trackB.ID, status.TrackID, "the finished track stays loaded")
	assert.False(t, fx.output.Playing())
	assert.False(t, fx.lock.held())
}

func TestPlayNextCarriesPausedIntent(t *testing.T) {
	dir := t.TempDir()
	trackA := fileTrack(t, dir, "first")
	trackB := fileTrack(t, dir, "second")
	fx := newEngineFixture(t, trackA, trackB)

	require.NoError(t, fx.engine.PlayTrack(context.Background(), trackA.ID))
	require.NoError(t, fx.engine.Pause())
	require.NoError(t, fx.engine.PlayNext(context.Background()))

	status := fx.engine.Status()
	assert.Equal(t, trackB.ID, status.TrackID)
	assert.Equal(t, StatePaused, status.State)
	assert.False(t, fx.output.Playing())
}

func TestMediaKeyHandlersDriveEngine(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)
	require.NoError(t, fx.engine.PlayTrack(context.Background(), track.ID))

	fx.now.handlers.OnPause()
	assert.Equal(t, StatePaused, fx.engine.Status().State)

	fx.now.handlers.OnPlay()
	assert.Equal(t, StatePlaying, fx.engine.Status().State)
}

func TestSetVolume(t *testing.T) {
	track := fileTrack(t, t.TempDir(), "song")
	fx := newEngineFixture(t, track)

	require.NoError(t, fx.engine.SetVolume(0.4))
	assert.Equal(t, 0.4, fx.output.volume)
	assert.Equal(t, 0.4, fx.engine.Status().Volume)
}
