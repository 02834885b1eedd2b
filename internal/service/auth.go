package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles operator authentication
type AuthService struct {
	operators  domain.OperatorRepository
	jwtManager *security.JWTManager
}

// NewAuthService creates a new auth service
func NewAuthService(operators domain.OperatorRepository, jwtManager *security.JWTManager) *AuthService {
	return &AuthService{
		operators:  operators,
		jwtManager: jwtManager,
	}
}

// EnsureOperator creates the operator account if it does not exist yet.
// Existing accounts are left untouched.
func (s *AuthService) EnsureOperator(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil
	}

	_, err := s.operators.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrOperatorNotFound) {
		return fmt.Errorf("failed to look up operator: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	op := &domain.Operator{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    time.Now(),
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}

	log.Info().Str("email", email).Msg("Seeded operator account")
	return nil
}

// Login authenticates an operator and returns an access token
func (s *AuthService) Login(ctx context.Context, input domain.OperatorLogin) (*domain.AccessToken, error) {
	op, err := s.operators.GetByEmail(ctx, input.Email)
	if errors.Is(err, domain.ErrOperatorNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtManager.GenerateAccessToken(op.ID, op.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.AccessToken{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.AccessTokenTTL().Seconds()),
	}, nil
}
