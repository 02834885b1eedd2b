package api

import (
	"net/http"

	"github.com/Rrens/support-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Dependencies are the components the HTTP surface is built on.
type Dependencies struct {
	JWTManager *security.JWTManager
	Auth       *service.AuthService
	Sessions   *service.SessionService
	Assistant  *service.AssistantService
	Router     *service.ConversationRouter
	Hub        *realtime.Hub
	Providers  handler.ProviderLister
	Pingers    map[string]handler.Pinger

	// Limiter throttles operator REST calls, VisitorLimiter throttles
	// visitor messages per session. Either may be nil.
	Limiter        customMiddleware.Limiter
	VisitorLimiter customMiddleware.Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handler.NewAuthHandler(deps.Auth)
	chatHandler := handler.NewChatHandler(deps.Sessions)
	assistantHandler := handler.NewAssistantHandler(deps.Assistant)
	socketHandler := handler.NewSocketHandler(
		deps.Router,
		deps.Hub,
		deps.JWTManager,
		deps.VisitorLimiter,
		cfg.Server.AllowedOrigins,
	)

	authMiddleware := customMiddleware.NewAuthMiddleware(deps.JWTManager)

	// Live channel connections outlive any request timeout.
	r.Get("/ws", socketHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		if cfg.Server.MiddlewareTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
		}

		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Pingers))

		r.Post("/auth/login", authHandler.Login)

		// Visitor routes (public)
		r.Post("/chats", chatHandler.Create)
		r.Get("/messages/{sessionID}", chatHandler.Messages)

		// Operator routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			if deps.Limiter != nil {
				r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
			}

			r.Get("/chats", chatHandler.List)
			r.Get("/chats/{sessionID}", chatHandler.Get)

			r.Route("/ai", func(r chi.Router) {
				r.Get("/config", assistantHandler.GetConfig)
				r.Put("/config", assistantHandler.UpdateConfig)
				r.Post("/toggle", assistantHandler.Toggle)
			})

			r.Get("/llm-providers", handler.ListLLMProviders(deps.Providers))
		})
	})

	return r
}
