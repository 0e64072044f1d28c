package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/samyakrajbayar/cyclesafe/internal/api/handlers"
	"github.com/samyakrajbayar/cyclesafe/internal/config"
	"github.com/samyakrajbayar/cyclesafe/internal/pipeline"
	"github.com/samyakrajbayar/cyclesafe/internal/services/display"
)

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler  *handlers.HealthHandler
	monitorHandler *handlers.MonitorHandler
	alertsHandler  *handlers.AlertsHandler
	streamHandler  *handlers.StreamHandler
}

func NewServer(cfg *config.Config, supervisor *pipeline.Supervisor, sink *display.Sink) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	return &Server{
		config:         cfg,
		router:         router,
		healthHandler:  handlers.NewHealthHandler(cfg.MonitorID, cfg.Version),
		monitorHandler: handlers.NewMonitorHandler(supervisor),
		alertsHandler:  handlers.NewAlertsHandler(supervisor),
		streamHandler:  handlers.NewStreamHandler(sink),
	}
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting monitor API")
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping monitor API")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) GetServer() *http.Server {
	return s.server
}
