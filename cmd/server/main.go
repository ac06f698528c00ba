// Parley - spoken language practice server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashureev/parley/internal/api"
	"github.com/ashureev/parley/internal/config"
	"github.com/ashureev/parley/internal/conversation"
	"github.com/ashureev/parley/internal/events"
	"github.com/ashureev/parley/internal/feedback"
	"github.com/ashureev/parley/internal/identity"
	"github.com/ashureev/parley/internal/llm"
	"github.com/ashureev/parley/internal/middleware"
	"github.com/ashureev/parley/internal/observability/metrics"
	"github.com/ashureev/parley/internal/otp"
	"github.com/ashureev/parley/internal/prompt"
	"github.com/ashureev/parley/internal/store"
	"github.com/ashureev/parley/internal/stt"
	googlestt "github.com/ashureev/parley/internal/stt/google"
	mockstt "github.com/ashureev/parley/internal/stt/mock"
	"github.com/ashureev/parley/internal/tts"
	geminitts "github.com/ashureev/parley/internal/tts/gemini"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	client, err := llm.New(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		OpenAIKey:   cfg.LLM.OpenAIKey,
		OpenAIURL:   cfg.LLM.OpenAIURL,
		OpenAIModel: cfg.LLM.OpenAIModel,
		GeminiKey:   cfg.LLM.GeminiKey,
		GeminiModel: cfg.LLM.GeminiModel,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}

	convLog, err := conversation.NewLogger(conversation.LogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convLog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	resolver := prompt.NewResolver(prompt.NewCatalog())
	engine := conversation.NewEngine(resolver, client, logger,
		conversation.WithConversationLog(convLog),
		conversation.WithMetrics(metrics.DefaultMetrics),
	)
	evaluator := feedback.NewEvaluator(client, metrics.DefaultMetrics, logger)

	transcriber, closeSTT, err := newTranscriber(ctx, cfg.STT)
	if err != nil {
		slog.Error("Failed to initialize speech recognition", "error", err)
		os.Exit(1)
	}
	defer closeSTT()

	synthesizer, err := newSynthesizer(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize speech synthesis", "error", err)
		os.Exit(1)
	}

	publisher := events.New(&events.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		Enabled: cfg.Kafka.Enabled,
	}, metrics.DefaultMetrics, logger)
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			slog.Error("Failed to close event publisher", "error", closeErr)
		}
	}()

	otpService := otp.NewService(repo, otp.LogSender{Logger: logger, Redact: !cfg.IsDevelopment()}, otp.Config{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, metrics.DefaultMetrics, logger)
	otp.StartSweeper(ctx, repo, cfg.OTP.SweepInterval, metrics.DefaultMetrics)
	slog.Info("OTP sweeper started", "interval", cfg.OTP.SweepInterval)

	limiter := &middleware.Limits{
		Learner: middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		IP:      middleware.NewRateLimiter(cfg.RateLimit.IPRequests, cfg.RateLimit.Window),
	}
	defer limiter.Stop()
	limit := middleware.RateLimit(limiter, metrics.DefaultMetrics)

	// Initialize handlers.
	healthHandler := api.NewHealthHandler(repo, 5*time.Second, map[string]bool{
		"kafka": publisher.Enabled(),
		"tts":   cfg.TTS.Provider != "",
		"stt":   cfg.STT.Provider == "google",
	})
	practiceHandler := api.NewPracticeHandler(api.PracticeDeps{
		Engine:        engine,
		Evaluator:     evaluator,
		Transcriber:   transcriber,
		Synthesizer:   synthesizer,
		Events:        publisher,
		MaxAudioBytes: cfg.STT.MaxAudioBytes,
		Logger:        logger,
	})
	authHandler := api.NewAuthHandler(otpService, logger)
	sockets := api.NewSocketRegistry()
	practiceSocket := api.NewPracticeSocket(engine, publisher, limiter, sockets, originPatterns(cfg), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))
		practiceHandler.RegisterRoutes(r, limit)
		authHandler.RegisterRoutes(r, limit)
		// Socket messages are limited one by one inside the handler.
		r.Get("/ws/practice", practiceSocket.ServeHTTP)
	})

	// Note: sockets are long lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sockets.CloseAll("server shutting down")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped successfully")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newTranscriber returns the configured transcriber and a release func.
func newTranscriber(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, func(), error) {
	switch cfg.Provider {
	case "google":
		gcfg := googlestt.DefaultConfig()
		if cfg.LanguageCode != "" {
			gcfg.LanguageCode = cfg.LanguageCode
		}
		gcfg.SampleRateHz = int32(cfg.SampleRateHz)
		gcfg.AudioEncoding = cfg.AudioEncoding

		adapter, err := googlestt.New(ctx, gcfg)
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := adapter.Close(); err != nil {
				slog.Error("Failed to close speech client", "error", err)
			}
		}
		return stt.Instrument(adapter, metrics.DefaultMetrics, slog.Default()), release, nil
	case "mock", "":
		slog.Info("Using mock speech recognition")
		return stt.Instrument(mockstt.New(), metrics.DefaultMetrics, slog.Default()), func() {}, nil
	default:
		return nil, nil, stt.ErrUnknownProvider
	}
}

func newSynthesizer(ctx context.Context, cfg *config.Config) (tts.Synthesizer, error) {
	if cfg.TTS.Provider != "gemini" {
		slog.Info("Speech synthesis disabled (TTS_PROVIDER not set)")
		return tts.Disabled{}, nil
	}
	synth, err := geminitts.New(ctx, cfg.LLM.GeminiKey, cfg.TTS.Model, cfg.TTS.Voice)
	if err != nil {
		return nil, err
	}
	return tts.Instrument(synth, metrics.DefaultMetrics, slog.Default()), nil
}

// allowedOrigins permits any origin in development and the frontend otherwise.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{strings.TrimRight(cfg.FrontendURL, "/")}
}

// originPatterns is the host-only form coder/websocket expects.
func originPatterns(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	host := cfg.FrontendURL
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return []string{strings.TrimRight(host, "/")}
}
