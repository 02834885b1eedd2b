package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperatorRepository implements domain.OperatorRepository
type OperatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(pool *pgxpool.Pool) *OperatorRepository {
	return &OperatorRepository{pool: pool}
}

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	query := `
		INSERT INTO operators (id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, op.ID, strings.ToLower(op.Email), op.PasswordHash, op.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM operators
		WHERE email = $1
	`
	var op domain.Operator
	err := r.pool.QueryRow(ctx, query, strings.ToLower(email)).Scan(
		&op.ID,
		&op.Email,
		&op.PasswordHash,
		&op.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &op, nil
}
