package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header      string
		wantToken   string
		wantPresent bool
		wantOK      bool
	}{
		{"", "", false, true},
		{"Bearer abc", "abc", true, true},
		{"bearer  abc ", "abc", true, true},
		{"Basic abc", "", true, false},
		{"Bearer", "", true, false},
		{"Bearer   ", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, present, ok := BearerToken(req)
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	jwtManager := security.NewJWTManager("test-secret", time.Hour)
	m := NewAuthMiddleware(jwtManager)

	operatorID := uuid.New()
	token, err := jwtManager.GenerateAccessToken(operatorID, "agent@example.com")
	require.NoError(t, err)

	var gotID uuid.UUID
	var gotEmail string
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetOperatorID(r.Context())
		gotEmail, _ = GetOperatorEmail(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + token, http.StatusNoContent},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, operatorID, gotID)
	assert.Equal(t, "agent@example.com", gotEmail)

	other := security.NewJWTManager("other-secret", time.Hour)
	foreign, err := other.GenerateAccessToken(operatorID, "agent@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+foreign)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLocalLimiter(t *testing.T) {
	l := NewLocalLimiter(60, 2)
	ctx := context.Background()

	allowed := 0
	for i := 0; i < 10; i++ {
		ok, remaining, reset, err := l.Allow(ctx, "session-1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, remaining, 0)
		assert.False(t, reset.IsZero())
		if ok {
			allowed++
		}
	}
	// Bucket holds rpm/60 + burst + 1 tokens.
	assert.Equal(t, 4, allowed)

	ok, _, _, err := l.Allow(ctx, "session-2")
	require.NoError(t, err)
	assert.True(t, ok, "buckets are per key")
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time, error) {
	f.keys = append(f.keys, key)
	return f.allowed, 3, time.Unix(1700000000, 0), f.err
}

func TestRateLimitMiddleware(t *testing.T) {
	operatorID := uuid.New()
	withOperator := func(r *http.Request) *http.Request {
		return r.WithContext(context.WithValue(r.Context(), OperatorIDKey, operatorID))
	}

	t.Run("allowed", func(t *testing.T) {
		limiter := &fakeLimiter{allowed: true}
		rec := httptest.NewRecorder()
		NewRateLimitMiddleware(limiter).Limit(http.HandlerFunc(okHandler)).
			ServeHTTP(rec, withOperator(httptest.NewRequest(http.MethodGet, "/", nil)))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "2023-11-14T22:13:20Z", rec.Header().Get("X-RateLimit-Reset"))
		assert.Equal(t, []string{operatorID.String()}, limiter.keys)
	})

	t.Run("rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRateLimitMiddleware(&fakeLimiter{}).Limit(http.HandlerFunc(okHandler)).
			ServeHTTP(rec, withOperator(httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("limiter failure allows", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRateLimitMiddleware(&fakeLimiter{err: errors.New("redis down")}).Limit(http.HandlerFunc(okHandler)).
			ServeHTTP(rec, withOperator(httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewRateLimitMiddleware(&fakeLimiter{allowed: true}).Limit(http.HandlerFunc(okHandler)).
			ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogger_PassesThrough(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/brew", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
