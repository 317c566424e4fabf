package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// ffprobe availability cache
var (
	ffprobeAvailable     *bool
	ffprobeCheckTime     time.Time
	ffprobeCheckMutex    sync.Mutex
	ffprobeCheckInterval = 5 * time.Minute
)

type ffprobeOutput struct {
	Format ffprobeFormat `json:"format"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// isFFProbeAvailable reports whether ffprobe is on PATH, caching the answer
// so large imports do not repeatedly shell out for the check.
func isFFProbeAvailable() bool {
	ffprobeCheckMutex.Lock()
	defer ffprobeCheckMutex.Unlock()

	if ffprobeAvailable != nil && time.Since(ffprobeCheckTime) < ffprobeCheckInterval {
		return *ffprobeAvailable
	}

	_, err := exec.LookPath("ffprobe")
	available := err == nil
	ffprobeAvailable = &available
	ffprobeCheckTime = time.Now()
	return available
}

// ProbeDuration runs ffprobe against path and returns the container duration
// in seconds. An error means ffprobe is missing or could not read the file.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	return probeDuration(ctx, path)
}

// probeDuration runs ffprobe against path and returns the container duration
// in seconds. This is the slow path; callers gate it behind config.
func probeDuration(ctx context.Context, path string) (float64, error) {
	if !isFFProbeAvailable() {
		return 0, fmt.Errorf("ffprobe not available")
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if probe.Format.Duration == "" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}

	duration, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", probe.Format.Duration, err)
	}
	return duration, nil
}
