package importmodule

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/tuneport/tuneport/internal/metadata"
)

// Watcher feeds new audio files in the library folder to the import
// pipeline. Rapid file-system events are debounced so a folder copy turns
// into one batch instead of thousands of single-file imports.
type Watcher struct {
	pipeline *Pipeline
	options  Options
	logger   hclog.Logger

	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over root. Call Start to begin monitoring.
func NewWatcher(root string, pipeline *Pipeline, options Options, logger hclog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		pipeline: pipeline,
		options:  options,
		logger:   logger.Named("import-watcher"),
		root:     root,
		debounce: 2 * time.Second,
		watcher:  fsWatcher,
		pending:  make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins monitoring the library folder and its subdirectories.
func (w *Watcher) Start() error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("watching library folder", "path", w.root)
	return nil
}

// Stop terminates monitoring. Any pending debounced batch is dropped.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.logger.Warn("failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, timer)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			w.flush()

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, timer *time.Timer) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}

	// New subdirectories need their own watch before their files appear.
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if event.Op&fsnotify.Create != 0 {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}

	if !metadata.IsAudioFile(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()

	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(w.debounce)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	candidates := make([]Candidate, 0, len(paths))
	for _, path := range paths {
		candidate, err := CandidateFromPath(path)
		if err != nil {
			w.logger.Debug("skipping vanished file", "path", path, "error", err)
			continue
		}
		candidates = append(candidates, candidate)
	}
	if len(candidates) == 0 {
		return
	}

	w.logger.Info("auto-importing detected files", "count", len(candidates))
	result, err := w.pipeline.Run(w.ctx, candidates, w.options)
	if err != nil {
		w.logger.Error("auto-import failed", "error", err)
		return
	}
	w.logger.Info("auto-import finished",
		"imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed)
}
