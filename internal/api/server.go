package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/lordblackfox/aircox/internal/config"
	"github.com/lordblackfox/aircox/internal/streamer"
)

type Server struct {
	cfg    *config.Config
	ctl    *streamer.Controller
	sup    *streamer.Supervisor
	router *gin.Engine
}

func New(cfg *config.Config, ctl *streamer.Controller, sup *streamer.Supervisor) *Server {
	if cfg.Server.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		ctl:    ctl,
		sup:    sup,
		router: gin.Default(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}

	s.router.Use(cors.New(corsConfig))
}

func (s *Server) setupRoutes() {
	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"station": s.ctl.ID,
			"engine":  s.sup.Running(),
		})
	})

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/sources", s.GetSources)
		v1.GET("/sources/:id", s.GetSource)
		v1.POST("/sources/:id/skip", s.SkipSource)
		v1.POST("/sources/:id/restart", s.RestartSource)
		v1.PUT("/sources/:id/active", s.SetSourceActive)
		v1.PUT("/sources/:id/playlist", s.SetSourcePlaylist)

		v1.GET("/dealer/on", s.GetDealerOn)
		v1.PUT("/dealer/on", s.SetDealerOn)

		v1.GET("/onair", s.GetOnAir)

		v1.POST("/streamer/run", s.RunStreamer)
		v1.POST("/streamer/restart", s.RestartStreamer)
		v1.GET("/streamer/ready", s.StreamerReady)
	}
}

// Start runs the server on the configured port
func (s *Server) Start(addr string) error {
	return s.router.Run(addr)
}

// Router exposes the gin engine, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
