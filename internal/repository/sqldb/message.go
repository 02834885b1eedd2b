package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, sessionID, body string, sender domain.SenderType, at time.Time) (*domain.Message, error) {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count, lastActive int64
	err = tx.QueryRowContext(ctx, r.db.dialect.lockSession, sessionID).Scan(&count, &lastActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	ts := toNanos(at)
	if ts < lastActive {
		ts = lastActive
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Body:      body,
		Sender:    sender,
		Seq:       count + 1,
		Timestamp: fromNanos(ts),
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, seq, body, sender_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SessionID, msg.Seq, msg.Body, string(msg.Sender), ts); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET message_count = ?, last_active = ? WHERE id = ?`,
		msg.Seq, ts, sessionID,
	); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, seq, body, sender_type, created_at FROM (
			SELECT id, session_id, seq, body, sender_type, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY seq DESC
			LIMIT ?
		) recent
		ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = int(^uint32(0) >> 1)
	}

	rows, err := r.db.SQL.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			m      domain.Message
			sender string
			at     int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Body, &sender, &at); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = domain.SenderType(sender)
		m.Timestamp = fromNanos(at)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
