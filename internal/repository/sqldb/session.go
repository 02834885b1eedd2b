package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

const maxListLimit = 1000

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	res, err := r.db.SQL.ExecContext(ctx, r.db.dialect.insertSession,
		session.ID,
		session.IPAddress,
		toNanos(session.CreatedAt),
		toNanos(session.LastActive),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionExists
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	query := `
		SELECT id, ip_address, created_at, last_active, handed_off, handoff_requested_at, message_count
		FROM chat_sessions
		WHERE id = ?
	`
	var (
		s                  domain.Session
		createdAt, active  int64
		handoffRequestedAt sql.NullInt64
	)
	err := r.db.SQL.QueryRowContext(ctx, query, id).Scan(
		&s.ID,
		&s.IPAddress,
		&createdAt,
		&active,
		&s.HandedOff,
		&handoffRequestedAt,
		&s.MessageCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	s.CreatedAt = fromNanos(createdAt)
	s.LastActive = fromNanos(active)
	if handoffRequestedAt.Valid {
		at := fromNanos(handoffRequestedAt.Int64)
		s.HandoffRequestedAt = &at
	}
	return &s, nil
}

func (r *SessionRepository) List(ctx context.Context, limit int) ([]domain.Session, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	query := `
		SELECT s.id, s.ip_address, s.created_at, s.last_active, s.handed_off, s.handoff_requested_at, s.message_count,
		       m.id, m.seq, m.body, m.sender_type, m.created_at
		FROM chat_sessions s
		LEFT JOIN chat_messages m ON m.session_id = s.id AND m.seq = s.message_count
		ORDER BY s.last_active DESC, s.id
		LIMIT ?
	`
	rows, err := r.db.SQL.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var (
			s                  domain.Session
			createdAt, active  int64
			handoffRequestedAt sql.NullInt64
			msgID, msgBody     sql.NullString
			msgSender          sql.NullString
			msgSeq, msgAt      sql.NullInt64
		)
		if err := rows.Scan(
			&s.ID,
			&s.IPAddress,
			&createdAt,
			&active,
			&s.HandedOff,
			&handoffRequestedAt,
			&s.MessageCount,
			&msgID,
			&msgSeq,
			&msgBody,
			&msgSender,
			&msgAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		s.CreatedAt = fromNanos(createdAt)
		s.LastActive = fromNanos(active)
		if handoffRequestedAt.Valid {
			at := fromNanos(handoffRequestedAt.Int64)
			s.HandoffRequestedAt = &at
		}
		if msgID.Valid {
			s.LastMessage = &domain.Message{
				ID:        msgID.String,
				SessionID: s.ID,
				Body:      msgBody.String,
				Sender:    domain.SenderType(msgSender.String),
				Seq:       msgSeq.Int64,
				Timestamp: fromNanos(msgAt.Int64),
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
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE chat_sessions SET handed_off = ?, handoff_requested_at = ? WHERE id = ? AND handed_off = ?`,
		true, toNanos(at), id, false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark session handed off: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark session handed off: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists int
	err = r.db.SQL.QueryRowContext(ctx, `SELECT 1 FROM chat_sessions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrSessionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return false, nil
}
