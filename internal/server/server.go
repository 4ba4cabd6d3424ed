// Package server exposes page classification over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
)

// DefaultMaxUploadSize bounds request bodies.
const DefaultMaxUploadSize = 10 << 20

var ginMode sync.Once

// Classifier classifies raw page markup. *sopgen.Sopgen implements it.
type Classifier interface {
	ExtractHTML(ctx context.Context, html string) (*classify.Result, error)
}

// Config describes the HTTP server.
type Config struct {
	Addr            string
	MaxUploadSize   int64
	ShutdownTimeout time.Duration
	Classifier      Classifier
}

// Server serves the classification endpoints.
type Server struct {
	addr     string
	router   *gin.Engine
	shutdown time.Duration
}

// New builds the server and its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("server requires a classifier")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	ginMode.Do(func() { gin.SetMode(gin.ReleaseMode) })
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), cors(), requestLogger())

	h := &handlers{classifier: cfg.Classifier, maxUpload: cfg.MaxUploadSize}
	router.GET("/healthz", h.health)
	router.POST("/", h.upload)
	router.POST("/extract", h.extract)

	return &Server{addr: cfg.Addr, router: router, shutdown: cfg.ShutdownTimeout}, nil
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails. In-flight
// requests get ShutdownTimeout to finish.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("server listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		logger.Info("server shutting down")
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}
