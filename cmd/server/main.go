package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rrens/support-chat/internal/api"
	"github.com/Rrens/support-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/llm"
	"github.com/Rrens/support-chat/internal/llm/anthropic"
	"github.com/Rrens/support-chat/internal/llm/gemini"
	"github.com/Rrens/support-chat/internal/llm/ollama"
	"github.com/Rrens/support-chat/internal/llm/openai"
	"github.com/Rrens/support-chat/internal/logging"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/repository"
	"github.com/Rrens/support-chat/internal/repository/redis"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file - try multiple locations
	envPaths := []string{".env", "../.env", "../../.env"}
	envLoaded := false
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			envLoaded = true
			break
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if !envLoaded {
		log.Debug().Msg(".env file not found in any standard location")
	}

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Database.Driver).
		Msg("Starting support chat server")

	ctx := context.Background()

	// Initialize session store
	store, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer store.Close()

	pingers := map[string]handler.Pinger{"store": store}

	// Initialize Redis
	var configCache service.ConfigCache
	var limiter, visitorLimiter customMiddleware.Limiter
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()

		pingers["redis"] = redisClient
		configCache = redis.NewConfigCache(redisClient)
		limiter = redis.NewRateLimiter(redisClient, "operator",
			cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		visitorLimiter = redis.NewRateLimiter(redisClient, "visitor",
			cfg.Security.VisitorRateLimit.RequestsPerMinute, cfg.Security.VisitorRateLimit.Burst)
	} else {
		log.Info().Msg("Redis disabled, using in-process rate limits")
		limiter = customMiddleware.NewLocalLimiter(
			cfg.Security.RateLimit.RequestsPerMinute, cfg.Security.RateLimit.Burst)
		visitorLimiter = customMiddleware.NewLocalLimiter(
			cfg.Security.VisitorRateLimit.RequestsPerMinute, cfg.Security.VisitorRateLimit.Burst)
	}

	gateway := newGateway(cfg.LLM)

	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Initialize services
	authService := service.NewAuthService(store.Operators, jwtManager)
	if err := authService.EnsureOperator(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed operator account")
	}
	sessionService := service.NewSessionService(store.Sessions, store.Messages)
	assistantService := service.NewAssistantService(store.Assistant, configCache, cfg.Assistant)

	hub := realtime.NewHub()
	router := service.NewConversationRouter(
		store.Sessions,
		store.Messages,
		assistantService,
		gateway,
		hub,
		service.RouterOptions{
			HandoffPhrases: cfg.Router.HandoffPhrases,
			LaneIdle:       cfg.Router.LaneIdle,
			LaneBuffer:     cfg.Router.LaneBuffer,
			HistoryWindow:  cfg.Assistant.HistoryWindow,
			TypingWindow:   cfg.Presence.TypingWindow,
		},
	)

	handlerRoot := api.NewRouter(cfg, api.Dependencies{
		JWTManager:     jwtManager,
		Auth:           authService,
		Sessions:       sessionService,
		Assistant:      assistantService,
		Router:         router,
		Hub:            hub,
		Providers:      gateway,
		Pingers:        pingers,
		Limiter:        limiter,
		VisitorLimiter: visitorLimiter,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handlerRoot,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Conversation router did not drain in time")
	}

	log.Info().Msg("Server stopped")
}

// newGateway registers the known providers. Providers without credentials
// stay listed but reject requests with a configuration error.
func newGateway(cfg config.LLMConfig) *llm.Gateway {
	gateway := llm.NewGateway(cfg.DefaultProvider, cfg.Timeout)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	gateway.RegisterProvider(openai.NewProvider("openai", cfg.OpenAI))
	gateway.RegisterProvider(openai.NewProvider("openrouter", cfg.OpenRouter))
	gateway.RegisterProvider(openai.NewProvider("deepseek", cfg.DeepSeek))
	gateway.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	gateway.RegisterProvider(gemini.NewProvider(cfg.Gemini))

	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		gateway.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}

	for _, info := range gateway.ProvidersInfo() {
		if !info.Configured {
			log.Warn().Str("provider", info.Name).Msg("LLM provider has no credentials")
		}
	}

	return gateway
}
