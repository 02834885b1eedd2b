package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/google/uuid"
)

type contextKey string

const (
	OperatorIDKey    contextKey = "operatorID"
	OperatorEmailKey contextKey = "operatorEmail"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *security.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// BearerToken extracts the token from an "Authorization: Bearer" header. ok
// is false when the header is present but malformed.
func BearerToken(r *http.Request) (token string, present bool, ok bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false, true
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", true, false
	}
	return strings.TrimSpace(parts[1]), true, true
}

// Authenticate validates the JWT token
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, present, ok := BearerToken(r)
		if !present {
			response.Error(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		if !ok {
			response.Error(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.jwtManager.ValidateAccessToken(token)
		if err != nil {
			response.Unauthorized(w, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), claims)))
	})
}

// WithOperator stores the operator identity from claims in ctx.
func WithOperator(ctx context.Context, claims *security.Claims) context.Context {
	ctx = context.WithValue(ctx, OperatorIDKey, claims.OperatorID)
	return context.WithValue(ctx, OperatorEmailKey, claims.Email)
}

// GetOperatorID gets the operator ID from context
func GetOperatorID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OperatorIDKey).(uuid.UUID)
	return id, ok
}

// GetOperatorEmail gets the operator email from context
func GetOperatorEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(OperatorEmailKey).(string)
	return email, ok
}
