// Command tuneport runs the local music player daemon: it owns the track
// library, the import pipeline, the playback engine, and the localhost
// control API the UI shell talks to.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tuneport/tuneport/internal/artwork"
	"github.com/tuneport/tuneport/internal/config"
	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/events"
	"github.com/tuneport/tuneport/internal/library"
	"github.com/tuneport/tuneport/internal/logger"
	"github.com/tuneport/tuneport/internal/metadata"
	"github.com/tuneport/tuneport/internal/modules/importmodule"
	"github.com/tuneport/tuneport/internal/modules/playbackmodule"
	"github.com/tuneport/tuneport/internal/server"
	"github.com/tuneport/tuneport/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "tuneport.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON})
	log.Info("starting tuneport", "db", cfg.Database.Path, "addr",
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	db, err := database.Open(cfg.Database.Path, cfg.Database.LogQueries)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	bus := events.NewBus(log, 256)
	if err := bus.Start(); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	tracks := store.NewTrackStore(db, log)
	handles := store.NewHandleStore(db, log)
	playlists := library.NewPlaylists(db, log)

	art, err := artwork.NewStore(cfg.Artwork.Dir, log)
	if err != nil {
		return fmt.Errorf("failed to open artwork store: %w", err)
	}

	lib := library.NewState(log)
	existing, err := tracks.GetAll(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	lib.SetTracks(existing)
	log.Info("library loaded", "tracks", len(existing))

	extractor := metadata.NewExtractor(log, cfg.Player.DurationProbe)
	monitor := importmodule.NewLoadMonitor(log)
	defer monitor.Stop()

	pipeline := importmodule.NewPipeline(importmodule.Deps{
		Tracks:    tracks,
		Handles:   handles,
		Extractor: extractor,
		Artwork:   art,
		Library:   lib,
		Bus:       bus,
		Monitor:   monitor,
	}, log)

	var watcher *importmodule.Watcher
	if cfg.Library.AutoImport && cfg.Library.Path != "" {
		watcher, err = importmodule.NewWatcher(cfg.Library.Path, pipeline, importmodule.Options{
			Concurrency:     cfg.Import.Concurrency,
			ChunkSize:       cfg.Import.ChunkSize,
			FailureCap:      cfg.Import.FailureCap,
			AutoMaterialize: cfg.Import.AutoMaterialize,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to watch library folder: %w", err)
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to start library watcher: %w", err)
		}
		defer watcher.Stop()
		log.Info("auto-import watching", "path", cfg.Library.Path)
	}

	output, err := playbackmodule.NewFFPlayOutput(log)
	if err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}

	player := playbackmodule.NewEngine(playbackmodule.Deps{
		Output:  output,
		Library: lib,
		Handles: handles,
		Bus:     bus,
	}, log)
	if err := player.SetVolume(cfg.Player.Volume); err != nil {
		log.Warn("failed to apply configured volume", "error", err)
	}
	player.SetTracks(lib.TrackIDs())
	player.Start()

	srv := server.New(cfg, server.Deps{
		Library:   lib,
		Tracks:    tracks,
		Playlists: playlists,
		Pipeline:  pipeline,
		Player:    player,
		Bus:       bus,
	}, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown incomplete", "error", err)
	}
	if err := player.Stop(shutdownCtx); err != nil {
		log.Warn("player shutdown incomplete", "error", err)
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("event bus shutdown incomplete", "error", err)
	}

	log.Info("goodbye")
	return nil
}
