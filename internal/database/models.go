package database

import (
	"time"
)

// Track source kinds. A track's playable content is identified by exactly one
// of HandleID or InlineBlob unless the source is a plain file path.
const (
	SourceHandle = "handle"
	SourceFile   = "file"
	SourceBlob   = "blob"
)

// Track represents one imported audio file in the library.
type Track struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null" json:"title"`
	Artist       string    `json:"artist,omitempty"`
	Album        string    `json:"album,omitempty"`
	Duration     float64   `json:"duration,omitempty"` // seconds
	CoverPath    string    `json:"cover_path,omitempty"`
	LastModified int64     `json:"last_modified,omitempty"` // epoch millis
	Size         int64     `json:"size,omitempty"`
	SourcePath   string    `json:"source_path,omitempty"`
	Signature    string    `gorm:"uniqueIndex;not null" json:"signature"`
	AddedAt      time.Time `json:"added_at"`
	Source       string    `gorm:"not null" json:"source"` // handle, file or blob
	HandleID     string    `json:"handle_id,omitempty"`
	InlineBlob   []byte    `gorm:"type:blob" json:"-"`
}

// StoredHandle maps an opaque id to a persisted file-system reference.
type StoredHandle struct {
	ID      string    `gorm:"primaryKey" json:"id"`
	Path    string    `gorm:"not null" json:"path"`
	Kind    string    `gorm:"not null" json:"kind"` // file or dir
	Purpose string    `gorm:"index" json:"purpose,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// Playlist is an ordered, duplicate-free collection of track ids. Ordering
// lives in PlaylistEntry.Position.
type Playlist struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"not null" json:"name"`
	Entries   []PlaylistEntry `gorm:"foreignKey:PlaylistID;constraint:OnDelete:CASCADE" json:"entries,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PlaylistEntry pins one track at one position within a playlist.
type PlaylistEntry struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PlaylistID string `gorm:"index:idx_playlist_track,unique;not null" json:"playlist_id"`
	TrackID    string `gorm:"index:idx_playlist_track,unique;not null" json:"track_id"`
	Position   int    `gorm:"not null" json:"position"`
}
