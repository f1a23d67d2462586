// Package web serves the fishid HTTP API: image upload, live capture and a
// results feed for connected viewers.
package web

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-fishid/internal/log"
	"github.com/teslashibe/go-fishid/pkg/hub"
	"github.com/teslashibe/go-fishid/pkg/media"
	"github.com/teslashibe/go-fishid/pkg/recognize"
	"github.com/teslashibe/go-fishid/pkg/relay"
)

// SessionHeader carries the UI session a request belongs to.
const SessionHeader = "X-Session-ID"

// Config holds server settings.
type Config struct {
	Port string

	// MaxUploadBytes caps request bodies.
	MaxUploadBytes int

	// OpenTimeout bounds how long /api/capture/open waits for a camera.
	OpenTimeout time.Duration

	// StaticDir, when set, is served at /.
	StaticDir string

	// Debug enables request logging.
	Debug bool

	Logger *slog.Logger
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Port:           "3000",
		MaxUploadBytes: 20 << 20,
		OpenTimeout:    15 * time.Second,
		Logger:         log.Component("web"),
	}
}

// Option configures a Server.
type Option func(*Server)

// WithAcquirer enables the capture endpoints.
func WithAcquirer(a *media.Acquirer) Option {
	return func(s *Server) { s.acquirer = a }
}

// WithRelay exposes the browser camera endpoint and its inspection API.
func WithRelay(r *relay.Hub) Option {
	return func(s *Server) { s.relay = r }
}

// WithSessions replaces the per-session result registry.
func WithSessions(r *recognize.Sessions) Option {
	return func(s *Server) { s.sessions = r }
}

// Server is the fishid web server.
type Server struct {
	app    *fiber.App
	config Config
	logger *slog.Logger

	orchestrator *recognize.Orchestrator
	acquirer     *media.Acquirer
	relay        *relay.Hub
	sessions     *recognize.Sessions

	// results pushes every displayed identification to /ws/results.
	results *hub.Hub
	runCtx  context.Context
	cancel  context.CancelFunc
}

// NewServer creates a server that identifies images with o.
func NewServer(cfg Config, o *recognize.Orchestrator, opts ...Option) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Component("web")
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = DefaultConfig().OpenTimeout
	}

	s := &Server{
		config:       cfg,
		logger:       cfg.Logger,
		orchestrator: o,
		sessions:     recognize.NewSessions(0),
		results:      hub.New(cfg.Logger),
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "fishid",
		DisableStartupMessage: true,
		BodyLimit:             cfg.MaxUploadBytes,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type," + SessionHeader,
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Post("/recognize-fish", s.handleRecognize)
	api.All("/recognize-fish", s.handleMethodNotAllowed)
	api.Post("/capture/open", s.handleCaptureOpen)
	api.Post("/capture/frame", s.handleCaptureFrame)
	api.Post("/capture/close", s.handleCaptureClose)
	api.Get("/result", s.handleResult)

	app.Get("/ws/results", s.results.Handler())

	if s.relay != nil {
		s.relay.RegisterRoutes(app)
		s.relay.RegisterAPIRoutes(api)
	}

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Results returns the viewer hub.
func (s *Server) Results() *hub.Hub {
	return s.results
}

// Start runs the results hub and listens until Shutdown. Cancelling ctx
// disconnects viewers but leaves the listener to Shutdown.
func (s *Server) Start(ctx context.Context) error {
	context.AfterFunc(ctx, s.cancel)
	go s.results.Run(s.runCtx)

	s.logger.Info("listening",
		"addr", ":"+s.config.Port,
		"capture", s.acquirer != nil,
		"relay", s.relay != nil,
	)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown releases any open capture and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.acquirer != nil {
		s.acquirer.Shutdown()
	}
	s.cancel()
	return s.app.ShutdownWithContext(ctx)
}
