package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lordblackfox/aircox/internal/streamer"
)

type sourceView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	CurrentSound string `json:"current_sound"`
	RequestID    string `json:"request_id"`
	Active       bool   `json:"active"`
}

func (s *Server) view(source *streamer.Source) sourceView {
	return sourceView{
		ID:           source.ID,
		Name:         source.Name,
		Role:         source.Role.String(),
		CurrentSound: source.CurrentSound(),
		RequestID:    source.RequestID(),
		Active:       source.Active(),
	}
}

func (s *Server) GetSources(c *gin.Context) {
	s.ctl.Update()

	views := []sourceView{}
	for _, source := range s.ctl.Sources() {
		views = append(views, s.view(source))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

// lookup resolves :id or replies 404.
func (s *Server) lookup(c *gin.Context) *streamer.Source {
	source := s.ctl.Get(c.Param("id"))
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown source"})
	}
	return source
}

func (s *Server) GetSource(c *gin.Context) {
	source := s.lookup(c)
	if source == nil {
		return
	}
	if err := source.Fetch(); err != nil && !errors.Is(err, streamer.ErrSourceMismatch) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.view(source))
}

func (s *Server) SkipSource(c *gin.Context) {
	source := s.lookup(c)
	if source == nil {
		return
	}
	source.Skip()
	c.JSON(http.StatusOK, gin.H{"status": "skipped", "id": source.ID})
}

func (s *Server) RestartSource(c *gin.Context) {
	source := s.lookup(c)
	if source == nil {
		return
	}
	source.Restart()
	c.JSON(http.StatusOK, gin.H{"status": "restarted", "id": source.ID})
}

func (s *Server) SetSourceActive(c *gin.Context) {
	source := s.lookup(c)
	if source == nil {
		return
	}

	var input struct {
		State *bool `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source.SetActive(*input.State)
	c.JSON(http.StatusOK, gin.H{"id": source.ID, "active": source.Active()})
}

// SetSourcePlaylist swaps a source's playlist for a diffusion's
// explicit track list.
func (s *Server) SetSourcePlaylist(c *gin.Context) {
	source := s.lookup(c)
	if source == nil {
		return
	}

	var input struct {
		DiffusionID *uint `json:"diffusion_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := source.PlaylistFromDiffusion(*input.DiffusionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": source.ID, "playlist": source.Playlist()})
}

func (s *Server) GetDealerOn(c *gin.Context) {
	on, err := s.ctl.Dealer().On()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": s.ctl.Dealer().ID, "on": on})
}

func (s *Server) SetDealerOn(c *gin.Context) {
	var input struct {
		State *bool `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.ctl.Dealer().SetOn(*input.State); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	on, _ := s.ctl.Dealer().On()
	c.JSON(http.StatusOK, gin.H{"id": s.ctl.Dealer().ID, "on": on})
}

// GetOnAir reports what the master output is currently playing. An
// unreachable engine degrades to empty fields, not an error.
func (s *Server) GetOnAir(c *gin.Context) {
	s.ctl.Master().Fetch()
	c.JSON(http.StatusOK, gin.H{
		"current_sound": s.ctl.Master().CurrentSound(),
		"request_id":    s.ctl.Master().RequestID(),
		"metadata":      s.ctl.Master().Metadata(),
	})
}
