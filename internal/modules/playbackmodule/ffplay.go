package playbackmodule

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/metadata"
)

// FFPlayOutput drives the local audio device through an ffplay subprocess.
// Pause and resume are implemented with SIGSTOP/SIGCONT, seeking restarts
// the process with an offset, and position is tracked by wall clock.
type FFPlayOutput struct {
	logger hclog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	path      string
	duration  float64
	volume    float64
	offset    float64   // seconds already consumed before the current process run
	startedAt time.Time // when the current process run started playing
	paused    bool
	playing   bool
	lastErr   error
	onEnded   func()
	closed    bool
}

// NewFFPlayOutput creates an output backed by ffplay. It fails if neither
// ffplay nor the audio device can be expected to work (binary missing).
func NewFFPlayOutput(logger hclog.Logger) (*FFPlayOutput, error) {
	if _, err := exec.LookPath("ffplay"); err != nil {
		return nil, fmt.Errorf("ffplay not found on PATH: %w", err)
	}
	return &FFPlayOutput{
		logger: logger.Named("ffplay"),
		volume: 1.0,
	}, nil
}

// Load stops any current process and prepares path for playback. The
// duration is probed up front so Duration is available before Play.
func (o *FFPlayOutput) Load(ctx context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("output closed")
	}

	o.stopProcessLocked()
	o.path = path
	o.offset = 0
	o.paused = false
	o.playing = false
	o.lastErr = nil

	duration, err := metadata.ProbeDuration(ctx, path)
	if err != nil {
		o.logger.Debug("duration probe failed", "path", path, "error", err)
		duration = 0
	}
	o.duration = duration
	return nil
}

// Play starts or resumes playback of the loaded source.
func (o *FFPlayOutput) Play(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.path == "" {
		return fmt.Errorf("no source loaded")
	}
	if o.playing {
		return nil
	}

	if o.paused && o.cmd != nil && o.cmd.Process != nil {
		if err := o.cmd.Process.Signal(syscall.SIGCONT); err != nil {
			return fmt.Errorf("failed to resume playback: %w", err)
		}
		o.paused = false
		o.playing = true
		o.startedAt = time.Now()
		return nil
	}

	return o.startProcessLocked(o.offset)
}

// Pause suspends the player process, freezing the play head.
func (o *FFPlayOutput) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.playing || o.cmd == nil || o.cmd.Process == nil {
		o.playing = false
		return nil
	}
	if err := o.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	o.offset += time.Since(o.startedAt).Seconds()
	o.paused = true
	o.playing = false
	return nil
}

// Seek moves the play head. ffplay cannot seek a running process from the
// outside, so the process is restarted with -ss when playback is active.
func (o *FFPlayOutput) Seek(seconds float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.path == "" {
		return fmt.Errorf("no source loaded")
	}
	if seconds < 0 {
		seconds = 0
	}
	if o.duration > 0 && seconds > o.duration {
		seconds = o.duration
	}

	wasPlaying := o.playing
	o.stopProcessLocked()
	o.offset = seconds
	if wasPlaying {
		return o.startProcessLocked(seconds)
	}
	return nil
}

func (o *FFPlayOutput) Position() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.playing {
		return o.offset + time.Since(o.startedAt).Seconds()
	}
	return o.offset
}

func (o *FFPlayOutput) Duration() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.duration
}

func (o *FFPlayOutput) Playing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

func (o *FFPlayOutput) HasSource() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.path != ""
}

// SetVolume stores the level for the next process start. ffplay offers no
// live volume control, so the change applies on the next Play after a Seek
// or Load rather than instantly.
func (o *FFPlayOutput) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume %v out of range [0,1]", volume)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = volume
	return nil
}

func (o *FFPlayOutput) OnEnded(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onEnded = fn
}

// Close stops the process and releases the source.
func (o *FFPlayOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopProcessLocked()
	o.path = ""
	o.closed = true
	return nil
}

// startProcessLocked launches ffplay at the given offset. Caller holds the
// mutex.
func (o *FFPlayOutput) startProcessLocked(offset float64) error {
	args := []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "quiet",
		"-volume", fmt.Sprintf("%d", int(o.volume*100)),
	}
	if offset > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", offset))
	}
	args = append(args, o.path)

	cmd := exec.Command("ffplay", args...)
	if err := cmd.Start(); err != nil {
		o.lastErr = err
		return fmt.Errorf("failed to start ffplay: %w", err)
	}

	o.cmd = cmd
	o.offset = offset
	o.startedAt = time.Now()
	o.paused = false
	o.playing = true

	go o.waitForExit(cmd)
	return nil
}

// waitForExit reaps the process and fires OnEnded when the track ran to
// completion rather than being stopped by us.
func (o *FFPlayOutput) waitForExit(cmd *exec.Cmd) {
	err := cmd.Wait()

	o.mu.Lock()
	if o.cmd != cmd {
		// Superseded by a later Load/Seek; this exit is ours to ignore.
		o.mu.Unlock()
		return
	}
	o.cmd = nil
	natural := o.playing && err == nil
	if natural {
		o.offset = o.duration
		o.playing = false
	}
	if err != nil && o.playing {
		o.lastErr = err
		o.playing = false
	}
	fn := o.onEnded
	o.mu.Unlock()

	if natural && fn != nil {
		fn()
	}
}

// stopProcessLocked kills the current process, if any. Caller holds the
// mutex.
func (o *FFPlayOutput) stopProcessLocked() {
	if o.cmd != nil && o.cmd.Process != nil {
		if o.paused {
			// A stopped process cannot handle SIGKILL cleanup ordering
			// issues; resume it first.
			_ = o.cmd.Process.Signal(syscall.SIGCONT)
		}
		_ = o.cmd.Process.Kill()
	}
	o.cmd = nil
	o.paused = false
	o.playing = false
}
