package importmodule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tuneport/tuneport/internal/metadata"
)

// CollectCandidates walks root and returns a candidate for every supported
// audio file. Unreadable entries are skipped rather than failing the walk.
func CollectCandidates(root string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat import root: %w", err)
	}
	if !info.IsDir() {
		candidate, err := CandidateFromPath(root)
		if err != nil {
			return nil, err
		}
		return []Candidate{candidate}, nil
	}

	var candidates []Candidate
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Keep walking; a single unreadable directory should not sink
			// the whole batch.
			return nil
		}
		if d.IsDir() || !metadata.IsAudioFile(path) {
			return nil
		}
		fileInfo, err := d.Info()
		if err != nil {
			return nil
		}
		candidates = append(candidates, Candidate{
			Path:      path,
			Name:      filepath.Base(path),
			Size:      fileInfo.Size(),
			ModMillis: fileInfo.ModTime().UnixMilli(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return candidates, nil
}

// CandidateFromPath builds a candidate for a single file.
func CandidateFromPath(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Candidate{}, fmt.Errorf("%s is a directory", path)
	}
	return Candidate{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      info.Size(),
		ModMillis: info.ModTime().UnixMilli(),
	}, nil
}
