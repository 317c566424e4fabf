package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tuneport/tuneport/internal/config"
	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/library"
	"github.com/tuneport/tuneport/internal/metadata"
	"github.com/tuneport/tuneport/internal/modules/importmodule"
	"github.com/tuneport/tuneport/internal/modules/playbackmodule"
	"github.com/tuneport/tuneport/internal/store"
)

// stubOutput satisfies playbackmodule.AudioOutput without any real device.
type stubOutput struct {
	loaded  string
	playing bool
	volume  float64
	onEnded func()
}

func (o *stubOutput) Load(ctx context.Context, path string) error {
	o.loaded = path
	o.playing = false
	return nil
}
func (o *stubOutput) Play(ctx context.Context) error { o.playing = true; return nil }
func (o *stubOutput) Pause() error                   { o.playing = false; return nil }
func (o *stubOutput) Seek(seconds float64) error     { return nil }
func (o *stubOutput) Position() float64              { return 0 }
func (o *stubOutput) Duration() float64              { return 0 }
func (o *stubOutput) Playing() bool                  { return o.playing }
func (o *stubOutput) HasSource() bool                { return o.loaded != "" }
func (o *stubOutput) SetVolume(v float64) error      { o.volume = v; return nil }
func (o *stubOutput) OnEnded(fn func())              { o.onEnded = fn }
func (o *stubOutput) Close() error                   { return nil }

type testEnv struct {
	server *Server
	lib    *library.State
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	logger := hclog.NewNullLogger()
	tracks := store.NewTrackStore(db, logger)
	handles := store.NewHandleStore(db, logger)
	lib := library.NewState(logger)
	playlists := library.NewPlaylists(db, logger)
	extractor := metadata.NewExtractor(logger, false)

	pipeline := importmodule.NewPipeline(importmodule.Deps{
		Tracks:    tracks,
		Handles:   handles,
		Extractor: extractor,
		Library:   lib,
	}, logger)

	player := playbackmodule.NewEngine(playbackmodule.Deps{
		Output:  &stubOutput{},
		Library: lib,
		Handles: handles,
	}, logger)

	cfg, err := config.Load("")
	require.NoError(t, err)

	srv := New(cfg, Deps{
		Library:   lib,
		Tracks:    tracks,
		Playlists: playlists,
		Pipeline:  pipeline,
		Player:    player,
	}, logger)

	return &testEnv{server: srv, lib: lib}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewBuffer(data)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImportFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	dir := t.TempDir()
	for _, name := range []string{"Artist - One.mp3", "Artist - Two.mp3", "skipme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}

	rec := env.do(t, http.MethodPost, "/api/v1/import", map[string]string{"path": dir})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		Total int `json:"total"`
	}
	decode(t, rec, &accepted)
	assert.Equal(t, 2, accepted.Total)

	// The import runs asynchronously; poll until it settles.
	deadline := time.Now().Add(5 * time.Second)
	var status struct {
		Running bool                 `json:"running"`
		Result  *importmodule.Result `json:"result"`
	}
	for {
		rec = env.do(t, http.MethodGet, "/api/v1/import/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &status)
		if !status.Running && status.Result != nil {
			break
		}
		require.True(t, time.Now().Before(deadline), "import did not finish in time")
		time.Sleep(20 * time.Millisecond)
	}

	require.NotNil(t, status.Result)
	assert.Equal(t, 2, status.Result.Imported)
	assert.Zero(t, status.Result.Failed)

	rec = env.do(t, http.MethodGet, "/api/v1/tracks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 2, list.Count)
}

func TestPlayerTransportEndpoints(t *testing.T) {
	env := newTestEnv(t)

	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	track := database.Track{
		ID:         "track-1",
		Title:      "Song",
		Source:     database.SourceFile,
		SourcePath: path,
	}
	env.lib.SetTracks([]database.Track{track})
	env.server.deps.Player.SetTracks([]string{track.ID})

	rec := env.do(t, http.MethodPost, "/api/v1/player/play", map[string]string{"track_id": track.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	var status playbackmodule.Status
	decode(t, rec, &status)
	assert.Equal(t, playbackmodule.StatePlaying, status.State)
	assert.Equal(t, track.ID, status.TrackID)

	rec = env.do(t, http.MethodPost, "/api/v1/player/pause", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.Equal(t, playbackmodule.StatePaused, status.State)

	rec = env.do(t, http.MethodPost, "/api/v1/player/repeat", map[string]string{"mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/player/repeat", map[string]string{"mode": "all"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.Equal(t, playbackmodule.RepeatAll, status.Repeat)

	rec = env.do(t, http.MethodPost, "/api/v1/player/volume", map[string]float64{"volume": 0.5})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &status)
	assert.Equal(t, 0.5, status.Volume)

	rec = env.do(t, http.MethodPost, "/api/v1/player/lifecycle", map[string]string{"reason": "visible"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/player/lifecycle", map[string]string{"reason": "sleepy"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaylistEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/playlists", map[string]string{"name": "Morning"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created database.Playlist
	decode(t, rec, &created)
	require.NotEmpty(t, created.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/playlists", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)

	rec = env.do(t, http.MethodPut, playlistPath(created.ID), map[string]string{"name": "Evening"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, playlistPath(created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, playlistPath(created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func playlistPath(id string) string {
	return fmt.Sprintf("/api/v1/playlists/%s", id)
}
