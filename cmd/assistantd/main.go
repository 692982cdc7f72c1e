package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tasklyhq/assistant/internal/calendar"
	"github.com/tasklyhq/assistant/internal/config"
	"github.com/tasklyhq/assistant/internal/health"
	"github.com/tasklyhq/assistant/internal/httpapi"
	"github.com/tasklyhq/assistant/internal/identity"
	"github.com/tasklyhq/assistant/internal/llm"
	"github.com/tasklyhq/assistant/internal/metrics"
	"github.com/tasklyhq/assistant/internal/prompts"
	"github.com/tasklyhq/assistant/internal/reconcile"
	"github.com/tasklyhq/assistant/internal/session"
	"github.com/tasklyhq/assistant/internal/store"
	"github.com/tasklyhq/assistant/internal/summary"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ASSISTANT_ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("model_configured", cfg.ModelConfigured()).
		Bool("auth_enabled", cfg.AuthEnabled()).
		Msg("starting assistant")

	// SQLite-backed message/task store
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	// Prometheus metrics
	m := metrics.New()

	// Prompt templates
	templates, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.PromptsPath).Msg("using default prompts")
	}

	// LLM provider (the service starts without credentials; session start
	// surfaces the missing key to the client)
	var provider llm.Provider
	if cfg.ModelConfigured() {
		provider = llm.NewAnthropicProvider(cfg.AnthropicAPIKey, logger,
			llm.WithModel(cfg.Model),
			llm.WithMaxTokens(cfg.ModelMaxTokens),
			llm.WithHTTPClient(&http.Client{Timeout: cfg.ModelTimeout}),
		)
		logger.Info().Str("model", cfg.Model).Msg("model provider initialized")
	} else {
		logger.Warn().Msg("ASSISTANT_ANTHROPIC_API_KEY not set, chat is disabled")
	}

	// Conversation pipeline
	summarizer := summary.New(st, provider, templates.Summarizer, cfg.SummaryMaxTokens, m, logger)
	sessions := session.NewManager(provider, st, summarizer, m, logger)

	refresher := reconcile.NewStoreRefresher(st, logger)
	engine := reconcile.New(st, st, st, refresher, m, time.Local, logger)

	calendarFactory := func(auth identity.CalendarAuth) reconcile.CalendarAPI {
		client := calendar.NewClient(cfg.CalendarBaseURL, &calendar.TokenAuth{Auth: auth}, logger)
		client.SetHTTPClient(&http.Client{Timeout: cfg.CalendarTimeout})
		return client
	}

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := st.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})
	checker.Register("model", func(ctx context.Context) health.Status {
		if provider == nil {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	handlers := httpapi.NewHandlers(st, sessions, engine, templates, calendarFactory, checker, m, time.Local, logger)

	server := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		AuthConfig:  httpapi.AuthConfig{Secret: cfg.JWTSecret},
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, m, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}

	done := make(chan struct{})
	go func() {
		if err := server.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("api server shutdown error")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	sessions.ResetAll()
	logger.Info().Msg("assistant stopped")
}
