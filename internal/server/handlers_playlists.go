package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) listPlaylists(c *gin.Context) {
	playlists, err := s.deps.Playlists.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list playlists"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"playlists": playlists, "count": len(playlists)})
}

func (s *Server) createPlaylist(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	playlist, err := s.deps.Playlists.Create(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, playlist)
}

func (s *Server) getPlaylist(c *gin.Context) {
	playlist, err := s.deps.Playlists.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "playlist not found"})
		return
	}
	c.JSON(http.StatusOK, playlist)
}

func (s *Server) renamePlaylist(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Playlists.Rename(c.Request.Context(), c.Param("id"), req.Name); err != nil {
		c.JSON(statusForPlaylistErr(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"renamed": c.Param("id")})
}

func (s *Server) deletePlaylist(c *gin.Context) {
	if err := s.deps.Playlists.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusForPlaylistErr(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) addPlaylistTrack(c *gin.Context) {
	var req struct {
		TrackID string `json:"track_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Playlists.AddTrack(c.Request.Context(), c.Param("id"), req.TrackID); err != nil {
		c.JSON(statusForPlaylistErr(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": req.TrackID})
}

func (s *Server) removePlaylistTrack(c *gin.Context) {
	if err := s.deps.Playlists.RemoveTrack(c.Request.Context(), c.Param("id"), c.Param("trackID")); err != nil {
		c.JSON(statusForPlaylistErr(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": c.Param("trackID")})
}

func (s *Server) reorderPlaylist(c *gin.Context) {
	var req struct {
		TrackIDs []string `json:"track_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.deps.Playlists.Reorder(c.Request.Context(), c.Param("id"), req.TrackIDs); err != nil {
		c.JSON(statusForPlaylistErr(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": c.Param("id")})
}

func statusForPlaylistErr(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if strings.Contains(err.Error(), "not found") {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}
