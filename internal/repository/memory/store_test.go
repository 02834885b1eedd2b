package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, s *Store, id string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, s.Sessions().Create(context.Background(), &domain.Session{
		ID: id, IPAddress: "127.0.0.1", CreatedAt: now, LastActive: now,
	}))
}

func TestSessionRepository_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := New()
	newSession(t, s, "session-1")

	err := s.Sessions().Create(ctx, &domain.Session{ID: "session-1"})
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	got, err := s.Sessions().Get(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", got.IPAddress)
	assert.False(t, got.HandedOff)

	_, err = s.Sessions().Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMessageRepository_AppendOrdersAndClamps(t *testing.T) {
	ctx := context.Background()
	s := New()
	newSession(t, s, "s")

	now := time.Now()
	first, err := s.Messages().Append(ctx, "s", "hello", domain.SenderVisitor, now.Add(time.Second))
	require.NoError(t, err)

	// An earlier client clock must not reorder the transcript.
	second, err := s.Messages().Append(ctx, "s", "late", domain.SenderOperator, now.Add(-time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.False(t, second.Timestamp.Before(first.Timestamp))

	sess, err := s.Sessions().Get(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(2), sess.MessageCount)
	assert.Equal(t, second.Timestamp, sess.LastActive)
	require.NotNil(t, sess.LastMessage)
	assert.Equal(t, "late", sess.LastMessage.Body)

	_, err = s.Messages().Append(ctx, "missing", "x", domain.SenderVisitor, now)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMessageRepository_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	s := New()
	newSession(t, s, "s")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Messages().Append(ctx, "s", fmt.Sprintf("m%d", i), domain.SenderVisitor, time.Now())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	msgs, err := s.Messages().ListBySession(ctx, "s", 0)
	require.NoError(t, err)
	require.Len(t, msgs, n)

	ids := make(map[string]bool)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
		assert.False(t, ids[m.ID], "duplicate id %s", m.ID)
		ids[m.ID] = true
		if i > 0 {
			assert.False(t, m.Timestamp.Before(msgs[i-1].Timestamp))
		}
	}

	tail, err := s.Messages().ListBySession(ctx, "s", 5)
	require.NoError(t, err)
	require.Len(t, tail, 5)
	assert.Equal(t, int64(n-4), tail[0].Seq)
}

func TestSessionRepository_MarkHandedOffIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New()
	newSession(t, s, "s")

	changed, err := s.Sessions().MarkHandedOff(ctx, "s", time.Now())
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.Sessions().MarkHandedOff(ctx, "s", time.Now())
	require.NoError(t, err)
	assert.False(t, changed)

	sess, err := s.Sessions().Get(ctx, "s")
	require.NoError(t, err)
	assert.True(t, sess.HandedOff)
	assert.NotNil(t, sess.HandoffRequestedAt)
}

func TestSessionRepository_ListByActivity(t *testing.T) {
	ctx := context.Background()
	s := New()
	newSession(t, s, "old")
	newSession(t, s, "new")

	_, err := s.Messages().Append(ctx, "new", "hi", domain.SenderVisitor, time.Now().Add(time.Minute))
	require.NoError(t, err)

	list, err := s.Sessions().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.NotNil(t, list[0].LastMessage)
	assert.Nil(t, list[1].LastMessage)

	list, err = s.Sessions().List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAssistantAndOperators(t *testing.T) {
	ctx := context.Background()
	s := New()

	cfg, err := s.Assistant().Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, s.Assistant().Save(ctx, &domain.AssistantConfig{Enabled: true, MaxTokens: 100}))
	cfg, err = s.Assistant().Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxTokens)

	require.NoError(t, s.Operators().Create(ctx, &domain.Operator{Email: "Agent@Example.com"}))
	assert.Error(t, s.Operators().Create(ctx, &domain.Operator{Email: "agent@example.com"}))

	op, err := s.Operators().GetByEmail(ctx, "agent@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Agent@Example.com", op.Email)

	_, err = s.Operators().GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrOperatorNotFound)
}
