package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuneport/tuneport/internal/modules/playbackmodule"
)

func (s *Server) playerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerPlay(c *gin.Context) {
	var req struct {
		TrackID string `json:"track_id"`
	}
	// An empty body means "resume".
	_ = c.ShouldBindJSON(&req)

	var err error
	if req.TrackID != "" {
		err = s.deps.Player.PlayTrack(c.Request.Context(), req.TrackID)
	} else {
		err = s.deps.Player.Play(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerPause(c *gin.Context) {
	if err := s.deps.Player.Pause(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerToggle(c *gin.Context) {
	if err := s.deps.Player.Toggle(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerNext(c *gin.Context) {
	if err := s.deps.Player.PlayNext(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerPrev(c *gin.Context) {
	if err := s.deps.Player.PlayPrev(c.Request.Context()); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerSeek(c *gin.Context) {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Player.Seek(req.Position); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerVolume(c *gin.Context) {
	var req struct {
		Volume *float64 `json:"volume" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Player.SetVolume(*req.Volume); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerShuffle(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.deps.Player.Queue().SetShuffle(*req.Enabled)
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

func (s *Server) playerRepeat(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := playbackmodule.RepeatMode(req.Mode)
	switch mode {
	case playbackmodule.RepeatOff, playbackmodule.RepeatOne, playbackmodule.RepeatAll:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be off, one or all"})
		return
	}
	s.deps.Player.Queue().SetRepeat(mode)
	c.JSON(http.StatusOK, s.deps.Player.Status())
}

// playerLifecycle receives host lifecycle transitions from the UI shell so
// the engine can reconcile playback after the platform meddled with it.
func (s *Server) playerLifecycle(c *gin.Context) {
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reason := playbackmodule.LifecycleReason(req.Reason)
	switch reason {
	case playbackmodule.ReasonVisible, playbackmodule.ReasonHidden,
		playbackmodule.ReasonFocus, playbackmodule.ReasonBlur:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown lifecycle reason"})
		return
	}
	s.deps.Player.OnLifecycleSignal(c.Request.Context(), reason)
	c.JSON(http.StatusOK, s.deps.Player.Status())
}
