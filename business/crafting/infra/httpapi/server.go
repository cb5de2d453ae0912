// Package httpapi exposes crafting sessions over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/fd1az/craftcalc/business/crafting/app"
	"github.com/fd1az/craftcalc/internal/logger"
)

// StockWriter updates bank-stock quantities.
type StockWriter interface {
	Upsert(ctx context.Context, profileID string, itemID, quantity int) error
}

// Config configures the API server.
type Config struct {
	Port         int
	CORSOrigins  []string
	ExpandBudget time.Duration // upper bound for one expand-all request
}

// Server serves the crafting API.
type Server struct {
	config Config
	svc    *app.CraftingService
	stock  StockWriter
	log    logger.LoggerInterface
	engine *gin.Engine
	server *http.Server
}

// NewServer builds the router. stock may be nil when no store is configured.
func NewServer(cfg Config, svc *app.CraftingService, stock StockWriter, log logger.LoggerInterface) *Server {
	if cfg.ExpandBudget <= 0 {
		cfg.ExpandBudget = 2 * time.Minute
	}
	s := &Server{config: cfg, svc: svc, stock: stock, log: log}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log), cors.New(corsConfig(cfg.CORSOrigins)))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", s.openSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.closeSession)
		sessions.POST("/:id/toggle", s.toggle)
		sessions.POST("/:id/expand-all", s.expandAll)
		sessions.POST("/:id/collapse-all", s.collapseAll)
	}
	r.PUT("/profiles/:profile/stock/:item", s.putStock)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(context.Background(), "api server stopped", "port", s.config.Port, "error", err)
		}
	}()
	s.log.Info(context.Background(), "api server listening", "port", s.config.Port)
	return nil
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(log logger.LoggerInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error(c.Request.Context(), "request failed", args...)
		case status >= http.StatusBadRequest:
			log.Warn(c.Request.Context(), "request rejected", args...)
		default:
			log.Debug(c.Request.Context(), "request served", args...)
		}
	}
}
