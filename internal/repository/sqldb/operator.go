package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Rrens/support-chat/internal/domain"
)

// OperatorRepository implements domain.OperatorRepository
type OperatorRepository struct {
	db *DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO operators (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		op.ID.String(), strings.ToLower(op.Email), op.PasswordHash, toNanos(op.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var (
		op        domain.Operator
		createdAt int64
	)
	err := r.db.SQL.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM operators WHERE email = ?`,
		strings.ToLower(email),
	).Scan(&op.ID, &op.Email, &op.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	op.CreatedAt = fromNanos(createdAt)
	return &op, nil
}
