package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuneport/tuneport/internal/database"
	"github.com/tuneport/tuneport/internal/events"
)

// trackView is the API shape of a track; inline blobs never cross the wire.
type trackView struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Artist    string  `json:"artist,omitempty"`
	Album     string  `json:"album,omitempty"`
	Duration  float64 `json:"duration"`
	CoverPath string  `json:"cover_path,omitempty"`
	Source    string  `json:"source"`
	AddedAt   string  `json:"added_at"`
}

func toTrackView(track database.Track) trackView {
	return trackView{
		ID:        track.ID,
		Title:     track.Title,
		Artist:    track.Artist,
		Album:     track.Album,
		Duration:  track.Duration,
		CoverPath: track.CoverPath,
		Source:    track.Source,
		AddedAt:   track.AddedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) listTracks(c *gin.Context) {
	tracks := s.deps.Library.Tracks()
	views := make([]trackView, len(tracks))
	for i, track := range tracks {
		views[i] = toTrackView(track)
	}
	c.JSON(http.StatusOK, gin.H{"tracks": views, "count": len(views)})
}

func (s *Server) getTrack(c *gin.Context) {
	track, ok := s.deps.Library.Track(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		return
	}
	c.JSON(http.StatusOK, toTrackView(track))
}

func (s *Server) deleteTrack(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.deps.Library.Track(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "track not found"})
		return
	}

	if err := s.deps.Tracks.Delete(c.Request.Context(), id); err != nil {
		s.logger.Error("failed to delete track", "track_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete track"})
		return
	}

	s.deps.Library.RemoveTrack(id)
	s.deps.Player.SetTracks(s.deps.Library.TrackIDs())
	if s.deps.Bus != nil {
		s.deps.Bus.PublishAsync(events.NewEvent(events.EventTrackDeleted, "server", "Track deleted", id))
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
