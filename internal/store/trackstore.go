// Package store implements the durable track and handle capabilities over
// the library database.
package store

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tuneport/tuneport/internal/database"
)

// TrackStore persists track records.
type TrackStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewTrackStore creates a track store over db.
func NewTrackStore(db *gorm.DB, logger hclog.Logger) *TrackStore {
	return &TrackStore{
		db:     db,
		logger: logger.Named("track-store"),
	}
}

// GetAll returns every track in the library.
func (s *TrackStore) GetAll(ctx context.Context) ([]database.Track, error) {
	var tracks []database.Track
	if err := s.db.WithContext(ctx).Order("added_at").Find(&tracks).Error; err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	return tracks, nil
}

// Get returns one track by id.
func (s *TrackStore) Get(ctx context.Context, id string) (*database.Track, error) {
	var track database.Track
	if err := s.db.WithContext(ctx).First(&track, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load track %s: %w", id, err)
	}
	return &track, nil
}

// Signatures loads all known signatures into a set for dedup lookups. Rows
// are read in chunks to bound memory on large libraries.
func (s *TrackStore) Signatures(ctx context.Context) (map[string]struct{}, error) {
	const chunkSize = 1000

	set := make(map[string]struct{})
	offset := 0
	for {
		var chunk []string
		err := s.db.WithContext(ctx).
			Model(&database.Track{}).
			Order("id").
			Offset(offset).
			Limit(chunkSize).
			Pluck("signature", &chunk).Error
		if err != nil {
			return nil, fmt.Errorf("failed to load signatures: %w", err)
		}
		for _, sig := range chunk {
			set[sig] = struct{}{}
		}
		if len(chunk) < chunkSize {
			break
		}
		offset += chunkSize
	}

	s.logger.Debug("preloaded signatures", "count", len(set))
	return set, nil
}

// UpsertAll writes a batch of tracks in a single transaction. The write is
// atomic per call: either every record lands or none do.
func (s *TrackStore) UpsertAll(ctx context.Context, tracks []database.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "signature"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "artist", "album", "duration", "cover_path",
				"last_modified", "size", "source_path", "source", "handle_id", "inline_blob",
			}),
		}).CreateInBatches(tracks, 100).Error
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d tracks: %w", len(tracks), err)
	}
	return nil
}

// Delete removes one track by id.
func (s *TrackStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&database.Track{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete track %s: %w", id, err)
	}
	return nil
}

// Clear removes every track.
func (s *TrackStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&database.Track{}).Error; err != nil {
		return fmt.Errorf("failed to clear tracks: %w", err)
	}
	return nil
}
