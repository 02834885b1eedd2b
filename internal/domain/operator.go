package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Operator is a human support agent allowed onto the operator surface.
type Operator struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// OperatorLogin represents login credentials
type OperatorLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccessToken is returned by a successful login.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// OperatorRepository defines the interface for operator storage
type OperatorRepository interface {
	Create(ctx context.Context, op *Operator) error
	// GetByEmail returns ErrOperatorNotFound for unknown emails.
	GetByEmail(ctx context.Context, email string) (*Operator, error)
}
