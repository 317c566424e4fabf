package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/tuneport/tuneport/internal/database"
)

// Handle kinds.
const (
	HandleKindFile = "file"
	HandleKindDir  = "dir"
)

// PurposeImportFolder marks the handle remembering the last import folder.
const PurposeImportFolder = "import-folder"

// HandleStore persists opaque references to files and directories.
type HandleStore struct {
	db     *gorm.DB
	logger hclog.Logger
}

// NewHandleStore creates a handle store over db.
func NewHandleStore(db *gorm.DB, logger hclog.Logger) *HandleStore {
	return &HandleStore{
		db:     db,
		logger: logger.Named("handle-store"),
	}
}

// Save stores a file-system reference and returns its handle.
func (s *HandleStore) Save(ctx context.Context, path, kind, purpose string) (*database.StoredHandle, error) {
	handle := &database.StoredHandle{
		ID:      uuid.NewString(),
		Path:    path,
		Kind:    kind,
		Purpose: purpose,
		SavedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(handle).Error; err != nil {
		return nil, fmt.Errorf("failed to save handle for %s: %w", path, err)
	}
	return handle, nil
}

// Get returns the handle with the given id, or nil when it does not exist.
func (s *HandleStore) Get(ctx context.Context, id string) (*database.StoredHandle, error) {
	var handle database.StoredHandle
	err := s.db.WithContext(ctx).First(&handle, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load handle %s: %w", id, err)
	}
	return &handle, nil
}

// GetByPurpose returns the most recently saved handle with the given purpose,
// or nil when none exists.
func (s *HandleStore) GetByPurpose(ctx context.Context, purpose string) (*database.StoredHandle, error) {
	var handle database.StoredHandle
	err := s.db.WithContext(ctx).
		Where("purpose = ?", purpose).
		Order("saved_at DESC").
		First(&handle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load handle for purpose %s: %w", purpose, err)
	}
	return &handle, nil
}

// ReplaceForPurpose removes prior handles with the purpose and saves a new one.
func (s *HandleStore) ReplaceForPurpose(ctx context.Context, path, kind, purpose string) (*database.StoredHandle, error) {
	err := s.db.WithContext(ctx).
		Where("purpose = ?", purpose).
		Delete(&database.StoredHandle{}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to replace handles for purpose %s: %w", purpose, err)
	}
	return s.Save(ctx, path, kind, purpose)
}

// Clear removes every stored handle.
func (s *HandleStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&database.StoredHandle{}).Error; err != nil {
		return fmt.Errorf("failed to clear handles: %w", err)
	}
	return nil
}
