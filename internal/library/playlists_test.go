package library

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tuneport/tuneport/internal/database"
)

func setupPlaylists(t *testing.T) *Playlists {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return NewPlaylists(db, hclog.NewNullLogger())
}

func entryOrder(t *testing.T, p *Playlists, id string) []string {
	t.Helper()
	playlist, err := p.Get(context.Background(), id)
	require.NoError(t, err)
	ids := make([]string, len(playlist.Entries))
	for i, e := range playlist.Entries {
		ids[i] = e.TrackID
	}
	return ids
}

func TestPlaylistsCreateAddAndOrder(t *testing.T) {
	p := setupPlaylists(t)
	ctx := context.Background()

	playlist, err := p.Create(ctx, "Morning")
	require.NoError(t, err)

	require.NoError(t, p.AddTrack(ctx, playlist.ID, "t1"))
	require.NoError(t, p.AddTrack(ctx, playlist.ID, "t2"))
	require.NoError(t, p.AddTrack(ctx, playlist.ID, "t3"))

	assert.Equal(t, []string{"t1", "t2", "t3"}, entryOrder(t, p, playlist.ID))
}

func TestPlaylistsRejectDuplicateTrack(t *testing.T) {
	p := setupPlaylists(t)
	ctx := context.Background()

	playlist, err := p.Create(ctx, "Dupes")
	require.NoError(t, err)

	require.NoError(t, p.AddTrack(ctx, playlist.ID, "t1"))
	err = p.AddTrack(ctx, playlist.ID, "t1")
	assert.Error(t, err)
	assert.Equal(t, []string{"t1"}, entryOrder(t, p, playlist.ID))
}

func TestPlaylistsRemoveTrackCompactsPositions(t *testing.T) {
	p := setupPlaylists(t)
	ctx := context.Background()

	playlist, err := p.Create(ctx, "Compact")
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, p.AddTrack(ctx, playlist.ID, id))
	}

	require.NoError(t, p.RemoveTrack(ctx, playlist.ID, "t2"))

	got, err := p.Get(ctx, playlist.ID)
	require.NoError(t, err)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, 0, got.Entries[0].Position)
	assert.Equal(t, 1, got.Entries[1].Position)
	assert.Equal(t, []string{"t1", "t3"}, entryOrder(t, p, playlist.ID))
}

func TestPlaylistsReorder(t *testing.T) {
	p := setupPlaylists(t)
	ctx := context.Background()

	playlist, err := p.Create(ctx, "Shuffled")
	require.NoError(t, err)
	for _, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, p.AddTrack(ctx, playlist.ID, id))
	}

	require.NoError(t, p.Reorder(ctx, playlist.ID, []string{"t3", "t1", "t2"}))
	assert.Equal(t, []string{"t3", "t1", "t2"}, entryOrder(t, p, playlist.ID))

	// Not a permutation of the membership.
	assert.Error(t, p.Reorder(ctx, playlist.ID, []string{"t3", "t1"}))
	assert.Error(t, p.Reorder(ctx, playlist.ID, []string{"t3", "t1", "t9"}))
	assert.Error(t, p.Reorder(ctx, playlist.ID, []string{"t3", "t3", "t1"}))
}

func TestPlaylistsRenameAndDelete(t *testing.T) {
	p := setupPlaylists(t)
	ctx := context.Background()

	playlist, err := p.Create(ctx, "Old Name")
	require.NoError(t, err)

	require.NoError(t, p.Rename(ctx, playlist.ID, "New Name"))
	got, err := p.Get(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)

	assert.Error(t, p.Rename(ctx, "missing", "x"))

	require.NoError(t, p.Delete(ctx, playlist.ID))
	_, err = p.Get(ctx, playlist.ID)
	assert.Error(t, err)

	all, err := p.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
