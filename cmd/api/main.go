// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/chatrooms/internal/config"
	"github.com/capitalize-ai/chatrooms/internal/contextwin"
	"github.com/capitalize-ai/chatrooms/internal/handler"
	"github.com/capitalize-ai/chatrooms/internal/llm"
	natsclient "github.com/capitalize-ai/chatrooms/internal/nats"
	"github.com/capitalize-ai/chatrooms/internal/roomlock"
	"github.com/capitalize-ai/chatrooms/internal/service"
	"github.com/capitalize-ai/chatrooms/internal/store"
	"github.com/capitalize-ai/chatrooms/pkg/logger"
	"github.com/capitalize-ai/chatrooms/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting API server",
		zap.String("store", cfg.StoreDriver),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.Bool("room_auto_create", cfg.RoomAutoCreate),
	)

	// Initialize tracing if enabled
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chatrooms-api", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer func() { _ = tracing.Shutdown(context.Background(), tp) }()
		}
	}

	// Conversation store
	st, err := store.Open(cfg.StoreDriver, cfg.SQLitePath, cfg.BoltPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Room locks
	var locker roomlock.Locker
	switch cfg.LockBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		locker = roomlock.NewRedisLocker(rdb, roomlock.RedisOptions{
			Prefix:  cfg.RedisLockPrefix,
			TTL:     cfg.RedisLockTTL,
			Timeout: cfg.LockTimeout,
			Logger:  log,
		})
	default:
		locker = roomlock.NewManager(cfg.LockTimeout)
	}

	// Context window builder
	meter, err := contextwin.NewMeter(cfg.ContextBudgetUnit, cfg.TokenEncoding)
	if err != nil {
		return fmt.Errorf("failed to create context meter: %w", err)
	}
	builder, err := contextwin.New(contextwin.Config{
		Budget:       cfg.ContextBudget,
		SystemPrompt: cfg.SystemPrompt,
		Meter:        meter,
	})
	if err != nil {
		return fmt.Errorf("failed to create context builder: %w", err)
	}

	// Initialize LLM client
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llm.Options{
		APIKey:  apiKeyFor(cfg),
		BaseURL: cfg.OpenAIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	// Event journal
	var (
		events      service.EventPublisher
		eventReader handler.EventReader
		natsPinger  handler.Pinger
	)
	if cfg.EventsEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		events, eventReader, natsPinger = streamManager, streamManager, natsClient
	}

	// Initialize services
	chatSvc := service.NewChatService(st, locker, builder, llmClient, log, service.Options{
		AutoCreate:  cfg.RoomAutoCreate,
		TurnTimeout: cfg.TurnTimeout,
		Model:       cfg.LLMModel,
		MaxTokens:   cfg.LLMMaxTokens,
		Temperature: cfg.LLMTemperature,
		Retry: service.RetryPolicy{
			MaxRetries:     cfg.LLMMaxRetries,
			InitialBackoff: cfg.LLMBackoffInitial,
			MaxBackoff:     cfg.LLMBackoffMax,
			AttemptTimeout: cfg.LLMTimeout,
		},
		Events: events,
	})

	// Initialize handlers
	checks := map[string]handler.Pinger{"store": st}
	if natsPinger != nil {
		checks["events"] = natsPinger
	}
	router := handler.NewRouter(handler.RouterConfig{
		Rooms:             handler.NewRoomHandler(chatSvc, log),
		Events:            handler.NewEventHandler(eventReader, log),
		Health:            handler.NewHealthHandler(checks),
		Logger:            log,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func apiKeyFor(cfg *config.Config) string {
	switch llm.Provider(cfg.LLMProvider) {
	case llm.ProviderAnthropic:
		return cfg.AnthropicAPIKey
	case llm.ProviderOpenAI:
		return cfg.OpenAIAPIKey
	default:
		return ""
	}
}
