// Package server exposes the one-shot HTTP boundary: upload an image, get a
// safety verdict back. It also carries gallery management and, when a live
// loop is attached, the websocket feeds for remote viewers.
//
// Requests are stateless. The stabilization engine is never involved.
package server

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-ppewatch/internal/log"
	"github.com/teslashibe/go-ppewatch/pkg/capture"
	"github.com/teslashibe/go-ppewatch/pkg/detection"
	"github.com/teslashibe/go-ppewatch/pkg/frame"
	"github.com/teslashibe/go-ppewatch/pkg/hub"
	"github.com/teslashibe/go-ppewatch/pkg/vision"
)

const version = "1.0.0"

// Config configures the HTTP boundary.
type Config struct {
	Port        string `json:"port"`
	MaxUploadMB int    `json:"max_upload_mb"`
	Debug       bool   `json:"debug"`
}

// DefaultConfig returns the default HTTP settings.
func DefaultConfig() Config {
	return Config{
		Port:        "8080",
		MaxUploadMB: 10,
	}
}

// BucketChecker verifies an S3 bucket before faces are indexed from it.
type BucketChecker interface {
	CheckRegion(ctx context.Context, bucket, want string) error
}

// Stats counts HTTP activity.
type Stats struct {
	Requests       int64          `json:"requests"`
	Errors         int64          `json:"errors"`
	Analyses       int64          `json:"analyses"`
	Safe           int64          `json:"safe"`
	VerdictClients int            `json:"verdict_clients"`
	CameraClients  int            `json:"camera_clients"`
	Capture        *capture.Stats `json:"capture,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// WithFeeds mounts /ws/verdicts and /ws/camera on the given hubs.
func WithFeeds(verdicts, camera *hub.Hub) Option {
	return func(s *Server) {
		s.verdicts = verdicts
		s.camera = camera
	}
}

// WithCaptureStats reports live loop counters on /api/stats.
func WithCaptureStats(fn func() capture.Stats) Option {
	return func(s *Server) { s.captureStats = fn }
}

// WithBuckets checks bucket region before indexing from S3.
func WithBuckets(b BucketChecker, region string) Option {
	return func(s *Server) {
		s.buckets = b
		s.region = region
	}
}

// WithDecoder replaces frame.Normalize for uploaded images.
func WithDecoder(fn func([]byte) ([]byte, error)) Option {
	return func(s *Server) { s.decode = fn }
}

// Server is the fiber application plus its collaborators.
type Server struct {
	app      *fiber.App
	cfg      Config
	provider vision.Provider
	adapter  *detection.Adapter

	verdicts     *hub.Hub
	camera       *hub.Hub
	captureStats func() capture.Stats
	buckets      BucketChecker
	region       string
	decode       func([]byte) ([]byte, error)

	requests atomic.Int64
	errors   atomic.Int64
	analyses atomic.Int64
	safe     atomic.Int64
}

// New builds the fiber app and registers every route.
func New(cfg Config, provider vision.Provider, adapter *detection.Adapter, opts ...Option) *Server {
	if cfg.MaxUploadMB < 1 {
		cfg.MaxUploadMB = DefaultConfig().MaxUploadMB
	}
	s := &Server{
		cfg:      cfg,
		provider: provider,
		adapter:  adapter,
		decode:   frame.Normalize,
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "ppewatch",
		DisableStartupMessage: true,
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}
	app.Use(s.count)

	s.app = app
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"version":  version,
			"provider": s.provider.Name(),
		})
	})

	s.app.Post("/analyze", s.handleAnalyze)
	s.app.Post("/analyze/", s.handleAnalyze)

	api := s.app.Group("/api")
	api.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(s.Stats())
	})
	api.Post("/galleries/:id", s.handleCreateGallery)
	api.Delete("/galleries/:id", s.handleDeleteGallery)
	api.Post("/galleries/:id/faces", s.handleIndexFace)
	api.Post("/galleries/:id/faces/s3", s.handleIndexObject)

	if s.verdicts != nil || s.camera != nil {
		s.app.Use("/ws", hub.UpgradeOnly)
	}
	if s.verdicts != nil {
		s.app.Get("/ws/verdicts", s.verdicts.Handler())
	}
	if s.camera != nil {
		s.app.Get("/ws/camera", s.camera.Handler())
	}
}

// count tracks requests and non-2xx responses.
func (s *Server) count(c *fiber.Ctx) error {
	s.requests.Add(1)
	err := c.Next()
	if err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
		s.errors.Add(1)
	}
	return err
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Stats returns a snapshot of request counters.
func (s *Server) Stats() Stats {
	st := Stats{
		Requests: s.requests.Load(),
		Errors:   s.errors.Load(),
		Analyses: s.analyses.Load(),
		Safe:     s.safe.Load(),
	}
	if s.verdicts != nil {
		st.VerdictClients = s.verdicts.ClientCount()
	}
	if s.camera != nil {
		st.CameraClients = s.camera.ClientCount()
	}
	if s.captureStats != nil {
		cs := s.captureStats()
		st.Capture = &cs
	}
	return st
}

// Listen serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr, "provider", s.provider.Name())
		errc <- s.app.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(shutdownCtx)
}
