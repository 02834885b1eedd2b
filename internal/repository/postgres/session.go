package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	query := `
		INSERT INTO chat_sessions (id, ip_address, created_at, last_active, handed_off, message_count)
		VALUES ($1, $2, $3, $4, FALSE, 0)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		session.ID,
		session.IPAddress,
		session.CreatedAt.UTC(),
		session.LastActive.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, ip_address, created_at, last_active, handed_off, handoff_requested_at, message_count
		FROM chat_sessions
		WHERE id = $1
	`
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID,
		&s.IPAddress,
		&s.CreatedAt,
		&s.LastActive,
		&s.HandedOff,
		&s.HandoffRequestedAt,
		&s.MessageCount,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]domain.Session, error) {
	query := `
		SELECT s.id, s.ip_address, s.created_at, s.last_active, s.handed_off, s.handoff_requested_at, s.message_count,
		       m.id::text, m.seq, m.body, m.sender_type, m.created_at
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id AND m.seq = s.message_count
		ORDER BY s.last_active DESC, s.id
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var (
			s         domain.Session
			msgID     *string
			msgSeq    *int64
			msgBody   *string
			msgSender *string
			msgAt     *time.Time
		)
		if err := rows.Scan(
			&s.ID,
			&s.IPAddress,
			&s.CreatedAt,
			&s.LastActive,
			&s.HandedOff,
			&s.HandoffRequestedAt,
			&s.MessageCount,
			&msgID,
			&msgSeq,
			&msgBody,
			&msgSender,
			&msgAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if msgID != nil {
			s.LastMessage = &domain.Message{
				ID:        *msgID,
				SessionID: s.ID,
				Body:      *msgBody,
				Sender:    domain.SenderType(*msgSender),
				Seq:       *msgSeq,
				Timestamp: *msgAt,
			}
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) MarkHandedOff(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE chat_sessions
		SET handed_off = TRUE, handoff_requested_at = $2
		WHERE id = $1 AND handed_off = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark session handed off: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	if !exists {
		return false, domain.ErrSessionNotFound
	}
	return false, nil
}
