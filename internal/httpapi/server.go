package httpapi

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/requestid"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	CORSOrigins string
}

// Server is the assistant's Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures the API server.
func NewServer(cfg ServerConfig, handlers *Handlers, m *metrics.Metrics, logger zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "server").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, logger)
	s.setupRoutes(handlers, m)

	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, logger zerolog.Logger) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Calendar-Token, X-Calendar-Token-Expiry",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, logger))

	// Log every request except noisy probes
	s.app.Use(func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" {
			return c.Next()
		}

		logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Str("ip", c.IP()).
			Str("request_id", c.Locals(requestid.LocalsKey).(string)).
			Msg("api request")

		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	s.app.Get("/healthz", h.Healthz)
	s.app.Get("/readyz", h.Readyz)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/v1")
	v1.Post("/threads", h.CreateThread)
	v1.Get("/threads/:id/messages", h.ListMessages)
	v1.Post("/threads/:id/messages", h.SendMessage)
	v1.Post("/threads/:id/confirm", h.Confirm)
	v1.Post("/threads/:id/cancel", h.Cancel)
	v1.Get("/threads/:id/pending", h.Pending)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("api server shutting down")
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		detail := err.Error()
		if code == fiber.StatusInternalServerError {
			detail = "An internal error occurred"
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "internal_error",
			Title:    "Internal Server Error",
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
