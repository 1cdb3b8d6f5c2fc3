package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) RunStreamer(c *gin.Context) {
	if err := s.sup.Run(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "running"})
}

// RestartStreamer kills the engine and launches a fresh one, picking
// up the current database state through regenerated files.
func (s *Server) RestartStreamer(c *gin.Context) {
	s.sup.Terminate()

	if err := s.ctl.Refresh(true); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := s.sup.Run(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "restarted"})
}

func (s *Server) StreamerReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ready":   s.sup.Ready(),
		"running": s.sup.Running(),
	})
}
