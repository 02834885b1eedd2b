package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository implements domain.MessageRepository
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append locks the session row so concurrent appends to one session are
// serialized and receive consecutive sequence numbers.
func (r *MessageRepository) Append(ctx context.Context, sessionID, body string, sender domain.SenderType, at time.Time) (*domain.Message, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		count      int64
		lastActive time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT message_count, last_active FROM chat_sessions WHERE id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&count, &lastActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}

	at = at.UTC().Truncate(time.Microsecond)
	if at.Before(lastActive) {
		at = lastActive.UTC()
	}

	msg := &domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Body:      body,
		Sender:    sender,
		Seq:       count + 1,
		Timestamp: at,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO chat_messages (id, session_id, seq, body, sender_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.SessionID, msg.Seq, msg.Body, string(msg.Sender), msg.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE chat_sessions SET message_count = $2, last_active = $3 WHERE id = $1`,
		sessionID, msg.Seq, msg.Timestamp,
	); err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// ListBySession retrieves the most recent messages of a session in order
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `
		SELECT id, session_id, seq, body, sender_type, created_at FROM (
			SELECT id::text AS id, session_id, seq, body, sender_type, created_at
			FROM chat_messages
			WHERE session_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`
	if limit <= 0 {
		limit = int(^uint32(0) >> 1)
	}

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var (
			m      domain.Message
			sender string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Body, &sender, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = domain.SenderType(sender)
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}
