package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/tuneport/tuneport/internal/database"
)

// Playlists is the playlist collaborator. It owns playlist mutation
// exclusively; the core components only ever read playlists.
type Playlists struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewPlaylists creates the playlist service over db.
func NewPlaylists(db *gorm.DB, logger hclog.Logger) *Playlists {
	return &Playlists{
		db:     db,
		logger: logger.Named("playlists"),
	}
}

// Create makes a new empty playlist.
func (p *Playlists) Create(ctx context.Context, name string) (*database.Playlist, error) {
	if name == "" {
		return nil, fmt.Errorf("playlist name cannot be empty")
	}
	now := time.Now()
	playlist := &database.Playlist{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	return playlist, nil
}

// List returns all playlists with their entries in position order.
func (p *Playlists) List(ctx context.Context) ([]database.Playlist, error) {
	var playlists []database.Playlist
	err := p.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("created_at").
		Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	return playlists, nil
}

// Get returns one playlist with entries ordered by position.
func (p *Playlists) Get(ctx context.Context, id string) (*database.Playlist, error) {
	var playlist database.Playlist
	err := p.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&playlist, "id = ?", id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist %s: %w", id, err)
	}
	return &playlist, nil
}

// Rename changes a playlist's name.
func (p *Playlists) Rename(ctx context.Context, id, name string) error {
	if name == "" {
		return fmt.Errorf("playlist name cannot be empty")
	}
	result := p.db.WithContext(ctx).Model(&database.Playlist{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to rename playlist %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("playlist %s not found", id)
	}
	return nil
}

// Delete removes a playlist and its entries.
func (p *Playlists) Delete(ctx context.Context, id string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&database.PlaylistEntry{}).Error; err != nil {
			return fmt.Errorf("failed to delete playlist entries: %w", err)
		}
		if err := tx.Delete(&database.Playlist{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete playlist %s: %w", id, err)
		}
		return nil
	})
}

// AddTrack appends a track to the end of a playlist. A track may appear at
// most once per playlist.
func (p *Playlists) AddTrack(ctx context.Context, playlistID, trackID string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&database.PlaylistEntry{}).
			Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("track %s is already in playlist %s", trackID, playlistID)
		}

		var max int64
		if err := tx.Model(&database.PlaylistEntry{}).
			Where("playlist_id = ?", playlistID).
			Count(&max).Error; err != nil {
			return err
		}

		entry := database.PlaylistEntry{
			PlaylistID: playlistID,
			TrackID:    trackID,
			Position:   int(max),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to add track to playlist: %w", err)
		}
		return p.touch(tx, playlistID)
	})
}

// RemoveTrack removes a track and compacts positions.
func (p *Playlists) RemoveTrack(ctx context.Context, playlistID, trackID string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("playlist_id = ? AND track_id = ?", playlistID, trackID).
			Delete(&database.PlaylistEntry{})
		if result.Error != nil {
			return fmt.Errorf("failed to remove track from playlist: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("track %s is not in playlist %s", trackID, playlistID)
		}

		var entries []database.PlaylistEntry
		if err := tx.Where("playlist_id = ?", playlistID).Order("position").Find(&entries).Error; err != nil {
			return err
		}
		for i := range entries {
			if entries[i].Position != i {
				if err := tx.Model(&entries[i]).Update("position", i).Error; err != nil {
					return err
				}
			}
		}
		return p.touch(tx, playlistID)
	})
}

// Reorder replaces the playlist order with trackIDs, which must be a
// permutation of the current membership.
func (p *Playlists) Reorder(ctx context.Context, playlistID string, trackIDs []string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entries []database.PlaylistEntry
		if err := tx.Where("playlist_id = ?", playlistID).Find(&entries).Error; err != nil {
			return err
		}
		if len(entries) != len(trackIDs) {
			return fmt.Errorf("reorder list has %d tracks, playlist has %d", len(trackIDs), len(entries))
		}

		byTrack := make(map[string]*database.PlaylistEntry, len(entries))
		for i := range entries {
			byTrack[entries[i].TrackID] = &entries[i]
		}
		seen := make(map[string]bool, len(trackIDs))
		for pos, trackID := range trackIDs {
			if seen[trackID] {
				return fmt.Errorf("duplicate track %s in reorder list", trackID)
			}
			seen[trackID] = true
			entry, ok := byTrack[trackID]
			if !ok {
				return fmt.Errorf("track %s is not in playlist %s", trackID, playlistID)
			}
			if entry.Position != pos {
				if err := tx.Model(entry).Update("position", pos).Error; err != nil {
					return err
				}
			}
		}
		return p.touch(tx, playlistID)
	})
}

func (p *Playlists) touch(tx *gorm.DB, playlistID string) error {
	return tx.Model(&database.Playlist{}).
		Where("id = ?", playlistID).
		Update("updated_at", time.Now()).Error
}
