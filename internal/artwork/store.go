// Package artwork stores cover images extracted during import. Files are
// content-addressed so re-importing the same cover is a no-op, and a webp
// thumbnail is written beside the original for cheap UI consumption.
package artwork

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/hashicorp/go-hclog"
)

// Store writes cover images under a root directory, fanned out by the first
// two hash characters.
type Store struct {
	dir    string
	logger hclog.Logger
}

// NewStore creates an artwork store rooted at dir.
func NewStore(dir string, logger hclog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artwork directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("artwork"),
	}, nil
}

// Save writes cover data and returns the stored path. Saving identical bytes
// twice returns the same path without rewriting.
func (s *Store) Save(data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("artwork data cannot be empty")
	}

	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	subdir := filepath.Join(s.dir, hash[:2])
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artwork subdirectory: %w", err)
	}

	path := filepath.Join(subdir, hash+extForMIME(mimeType))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}

	// Thumbnail generation is best effort; the original is authoritative.
	if err := s.writeThumbnail(path, data, mimeType); err != nil {
		s.logger.Debug("thumbnail generation skipped", "path", path, "error", err)
	}

	return path, nil
}

// Remove deletes a stored cover and its thumbnail. Used when a persisted
// chunk is demoted to failures and its resources must be released.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artwork: %w", err)
	}
	if err := os.Remove(thumbnailPath(path)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove artwork thumbnail: %w", err)
	}
	return nil
}

func (s *Store) writeThumbnail(originalPath string, data []byte, mimeType string) error {
	img, err := decodeImage(data, mimeType)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: 80}); err != nil {
		return fmt.Errorf("failed to encode webp: %w", err)
	}
	return os.WriteFile(thumbnailPath(originalPath), buf.Bytes(), 0o644)
}

func thumbnailPath(originalPath string) string {
	ext := filepath.Ext(originalPath)
	return strings.TrimSuffix(originalPath, ext) + ".thumb.webp"
}

func decodeImage(data []byte, mimeType string) (image.Image, error) {
	reader := bytes.NewReader(data)
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return jpeg.Decode(reader)
	case "image/png":
		return png.Decode(reader)
	case "image/webp":
		return webp.Decode(reader)
	default:
		img, _, err := image.Decode(reader)
		return img, err
	}
}

func extForMIME(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
