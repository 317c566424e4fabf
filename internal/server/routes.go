package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api/v1")
	{
		api.GET("/tracks", s.listTracks)
		api.GET("/tracks/:id", s.getTrack)
		api.DELETE("/tracks/:id", s.deleteTrack)

		api.POST("/import", s.startImport)
		api.GET("/import/status", s.importStatus)
		api.DELETE("/import", s.cancelImport)

		player := api.Group("/player")
		{
			player.GET("/status", s.playerStatus)
			player.POST("/play", s.playerPlay)
			player.POST("/pause", s.playerPause)
			player.POST("/toggle", s.playerToggle)
			player.POST("/next", s.playerNext)
			player.POST("/prev", s.playerPrev)
			player.POST("/seek", s.playerSeek)
			player.POST("/volume", s.playerVolume)
			player.POST("/shuffle", s.playerShuffle)
			player.POST("/repeat", s.playerRepeat)
			player.POST("/lifecycle", s.playerLifecycle)
		}

		playlists := api.Group("/playlists")
		{
			playlists.GET("", s.listPlaylists)
			playlists.POST("", s.createPlaylist)
			playlists.GET("/:id", s.getPlaylist)
			playlists.PUT("/:id", s.renamePlaylist)
			playlists.DELETE("/:id", s.deletePlaylist)
			playlists.POST("/:id/tracks", s.addPlaylistTrack)
			playlists.DELETE("/:id/tracks/:trackID", s.removePlaylistTrack)
			playlists.PUT("/:id/order", s.reorderPlaylist)
		}

		api.GET("/events/ws", s.eventStream)
	}
}
