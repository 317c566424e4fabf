package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuneport/tuneport/internal/modules/importmodule"
)

type importRequest struct {
	Path            string `json:"path" binding:"required"`
	Concurrency     int    `json:"concurrency"`
	ChunkSize       int    `json:"chunk_size"`
	AutoMaterialize *bool  `json:"auto_materialize"`
}

// startImport kicks off an asynchronous import of a folder or single file.
// At most one import runs at a time; a second request gets 409.
func (s *Server) startImport(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidates, err := importmodule.CollectCandidates(req.Path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := importmodule.Options{
		Concurrency:     req.Concurrency,
		ChunkSize:       req.ChunkSize,
		AutoMaterialize: s.cfg.Import.AutoMaterialize,
		FailureCap:      s.cfg.Import.FailureCap,
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = s.cfg.Import.Concurrency
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = s.cfg.Import.ChunkSize
	}
	if req.AutoMaterialize != nil {
		opts.AutoMaterialize = *req.AutoMaterialize
	}
	opts.OnProgress = s.recordProgress

	ctx, cancel := context.WithCancel(context.Background())

	s.importMu.Lock()
	if s.importCancel != nil {
		s.importMu.Unlock()
		cancel()
		c.JSON(http.StatusConflict, gin.H{"error": importmodule.ErrImportRunning.Error()})
		return
	}
	s.importCancel = cancel
	s.lastProgress = nil
	s.importMu.Unlock()

	go func() {
		defer cancel()
		result, err := s.deps.Pipeline.Run(ctx, candidates, opts)

		s.importMu.Lock()
		s.importCancel = nil
		if result != nil {
			s.lastResult = result
		}
		s.importMu.Unlock()

		if errors.Is(err, importmodule.ErrImportRunning) {
			return
		}
		if err != nil {
			s.logger.Error("import failed", "path", req.Path, "error", err)
			return
		}
		s.deps.Player.SetTracks(s.deps.Library.TrackIDs())
	}()

	c.JSON(http.StatusAccepted, gin.H{"total": len(candidates)})
}

func (s *Server) recordProgress(progress importmodule.Progress) {
	s.importMu.Lock()
	snapshot := progress
	s.lastProgress = &snapshot
	s.importMu.Unlock()
}

func (s *Server) importStatus(c *gin.Context) {
	s.importMu.Lock()
	running := s.importCancel != nil
	progress := s.lastProgress
	result := s.lastResult
	s.importMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"running":  running,
		"progress": progress,
		"result":   result,
	})
}

func (s *Server) cancelImport(c *gin.Context) {
	s.importMu.Lock()
	cancel := s.importCancel
	s.importMu.Unlock()

	if cancel == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no import running"})
		return
	}
	cancel()
	c.JSON(http.StatusOK, gin.H{"cancelling": true})
}
