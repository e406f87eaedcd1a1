package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leozw/farm-guardian/internal/api/handlers"
	"github.com/leozw/farm-guardian/internal/api/middleware"
	"github.com/leozw/farm-guardian/internal/config"
	"github.com/leozw/farm-guardian/internal/metrics"
)

type Server struct {
	Config  *config.Config
	Router  *gin.Engine
	handler *handlers.Handler
	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, handler *handlers.Handler, metrics *metrics.Collector, logger *zap.Logger) *Server {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Config:  cfg,
		Router:  router,
		handler: handler,
		metrics: metrics,
		logger:  logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.Router.GET("/health", s.handler.Health)
	s.Router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	limiter := middleware.NewRateLimiter(s.Config.Server.RateLimit, s.Config.Server.RateBurst, s.logger)

	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.Config.Server.JWTSecret))
	api.Use(limiter.Handler())

	{
		api.GET("/accounts", s.handler.ListAccounts)
		api.POST("/accounts", s.handler.CreateAccount)
		api.GET("/accounts/:id", s.handler.GetAccount)
		api.DELETE("/accounts/:id", s.handler.DeleteAccount)
		api.PATCH("/accounts/:id/active", s.handler.SetAccountActive)
	}

	{
		api.GET("/farms", s.handler.ListFarms)
		api.POST("/farms", s.handler.CreateFarm)
		api.GET("/farms/:id", s.handler.GetFarm)
		api.PATCH("/farms/:id", s.handler.UpdateFarm)
		api.DELETE("/farms/:id", s.handler.DeleteFarm)
		api.PUT("/farms/:id/status", s.handler.SetFarmStatus)
		api.POST("/farms/:id/claims", s.handler.ClaimPoints)
		api.POST("/farms/:id/watch", s.handler.AccrueWatchTime)
		api.POST("/farms/:id/predictions", s.handler.PlacePrediction)
	}

	{
		api.GET("/logs", s.handler.ListLogs)
		api.GET("/stats", s.handler.GetStats)
		api.PUT("/stats/prediction-rate", s.handler.SetPredictionRate)
	}

	{
		api.POST("/predictions/decide", s.handler.Decide)
		api.POST("/predictions/payout", s.handler.Payout)
	}
}
