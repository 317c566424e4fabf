// Package metadata extracts best-effort track metadata from audio files.
// Extraction never fails: tag parsing errors degrade to filename-derived
// fields, and a missing duration falls back to a slow probe when enabled.
package metadata

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/hashicorp/go-hclog"
)

// AudioFileExtensions defines the supported audio formats.
var AudioFileExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".aac":  true,
	".ogg":  true,
	".wav":  true,
	".wma":  true,
	".ape":  true,
	".mpc":  true,
	".wv":   true,
	".opus": true,
	".aiff": true,
}

// IsAudioFile checks if a file is a supported audio format.
func IsAudioFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return AudioFileExtensions[ext]
}

// Meta is the best-effort extraction result for one file.
type Meta struct {
	Title       string
	Artist      string
	Album       string
	Duration    float64 // seconds, zero when unknown
	Picture     []byte
	PictureMIME string
}

// Extractor reads tags and optionally probes duration.
type Extractor struct {
	logger      hclog.Logger
	probeEnable bool
}

// NewExtractor creates an extractor. When probe is true, files whose tags
// carry no duration are probed with ffprobe if it is installed.
func NewExtractor(logger hclog.Logger, probe bool) *Extractor {
	return &Extractor{
		logger:      logger.Named("metadata"),
		probeEnable: probe,
	}
}

// Extract returns metadata for the file at path. It never returns an error:
// every failure path degrades to filename-derived fields.
func (e *Extractor) Extract(ctx context.Context, path string) Meta {
	meta := fromFilename(path)

	file, err := os.Open(path)
	if err != nil {
		e.logger.Debug("failed to open file for tag read", "path", path, "error", err)
		return meta
	}
	defer file.Close()

	if tags, err := tag.ReadFrom(file); err != nil {
		e.logger.Debug("tag read failed, using filename fallback", "path", path, "error", err)
	} else {
		if t := strings.TrimSpace(tags.Title()); t != "" {
			meta.Title = t
		}
		if a := strings.TrimSpace(tags.Artist()); a != "" {
			meta.Artist = a
		}
		if al := strings.TrimSpace(tags.Album()); al != "" {
			meta.Album = al
		}
		if pic := tags.Picture(); pic != nil && len(pic.Data) > 0 {
			meta.Picture = pic.Data
			meta.PictureMIME = pic.MIMEType
		}
	}

	// Tag containers rarely carry duration; probe when allowed.
	if e.probeEnable {
		if d, err := probeDuration(ctx, path); err == nil && d > 0 {
			meta.Duration = d
		} else if err != nil {
			e.logger.Debug("duration probe failed", "path", path, "error", err)
		}
	}

	return meta
}

// fromFilename derives title and artist from an "Artist - Title" style name.
func fromFilename(path string) Meta {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	if artist, title, found := strings.Cut(name, " - "); found {
		artist = strings.TrimSpace(artist)
		title = strings.TrimSpace(title)
		if artist != "" && title != "" {
			return Meta{Title: title, Artist: artist}
		}
	}

	return Meta{Title: strings.TrimSpace(name)}
}
