package web

import (
	"context"
	"net/http"
	"time"

	"fleetwise/config"
	"fleetwise/web/handlers"
	"fleetwise/web/middleware"
	"fleetwise/web/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	chat        *services.ChatService
	orders      *services.OrderService
	sessions    *services.SessionService
	rateLimiter *middleware.SessionRateLimiter
	logger      *zap.Logger
	config      *config.Config
}

func NewServer(chat *services.ChatService, orderService *services.OrderService, sessions *services.SessionService, logger *zap.Logger, config *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		c.Set("logger", logger)
		c.Next()
	})

	rateLimiter := middleware.NewSessionRateLimiter(middleware.RateLimiterConfig{
		MessagesPerMinute: config.RateLimitMessagesPerMin,
		BurstSize:         config.RateLimitBurstSize,
		CleanupInterval:   10 * time.Minute,
	}, logger)

	server := &Server{
		router:      router,
		chat:        chat,
		orders:      orderService,
		sessions:    sessions,
		rateLimiter: rateLimiter,
		logger:      logger,
		config:      config,
	}

	server.setupRoutes()
	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chatHandler := handlers.NewChatHandler(s.chat, s.sessions, s.logger)
	orderHandler := handlers.NewOrderHandler(s.orders, s.logger)

	api := s.router.Group("/api", middleware.SessionMiddleware())
	limited := middleware.RateLimitMiddleware(s.rateLimiter)

	api.POST("/chat", limited, chatHandler.SendMessage)
	api.DELETE("/chat", chatHandler.Reset)

	api.POST("/orders/parse", limited, orderHandler.Parse)
	api.GET("/orders/draft", orderHandler.GetDraft)
	api.PATCH("/orders/draft", orderHandler.UpdateHeader)
	api.POST("/orders/draft/items", orderHandler.AddItem)
	api.PUT("/orders/draft/items/:index", orderHandler.UpdateItem)
	api.DELETE("/orders/draft/items/:index", orderHandler.DeleteItem)
	api.POST("/orders", orderHandler.Create)
}

func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("Starting web server", zap.String("address", addr))

	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Web server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()

	s.logger.Info("Shutting down web server")
	s.rateLimiter.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
