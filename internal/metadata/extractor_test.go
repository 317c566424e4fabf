package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
)

func TestIsAudioFile(t *testing.T) {
	assert.True(t, IsAudioFile("song.mp3"))
	assert.True(t, IsAudioFile("Song.FLAC"))
	assert.True(t, IsAudioFile("/music/a/b.ogg"))
	assert.False(t, IsAudioFile("notes.txt"))
	assert.False(t, IsAudioFile("cover.jpg"))
	assert.False(t, IsAudioFile("song"))
}

func TestFromFilenameArtistTitle(t *testing.T) {
	meta := fromFilename("/music/Miles Davis - So What.mp3")
	assert.Equal(t, "Miles Davis", meta.Artist)
	assert.Equal(t, "So What", meta.Title)
}

func TestFromFilenameNoSeparator(t *testing.T) {
	meta := fromFilename("/music/untitled.flac")
	assert.Equal(t, "untitled", meta.Title)
	assert.Empty(t, meta.Artist)
}

func TestFromFilenameEmptyArtistSegment(t *testing.T) {
	meta := fromFilename("/music/ - Orphan.mp3")
	assert.Equal(t, "- Orphan", meta.Title)
	assert.Empty(t, meta.Artist)
}

// TestExtractNeverFails drives Extract over files that cannot be parsed at
// all and expects filename-derived metadata rather than an error.
func TestExtractNeverFails(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor(hclog.NewNullLogger(), false)
	ctx := context.Background()

	// Unreadable path.
	meta := e.Extract(ctx, filepath.Join(dir, "Ghost Artist - Missing.mp3"))
	assert.Equal(t, "Ghost Artist", meta.Artist)
	assert.Equal(t, "Missing", meta.Title)

	// Garbage bytes that no tag parser accepts.
	garbage := filepath.Join(dir, "Some Band - Noise.mp3")
	assert.NoError(t, os.WriteFile(garbage, []byte("definitely not an mp3"), 0o644))
	meta = e.Extract(ctx, garbage)
	assert.Equal(t, "Some Band", meta.Artist)
	assert.Equal(t, "Noise", meta.Title)
	assert.Zero(t, meta.Duration)
}
