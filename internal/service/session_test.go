package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSessionService_CreateIsIdempotent(t *testing.T) {
	store := memory.New()
	svc := NewSessionService(store.Sessions(), store.Messages())
	ctx := context.Background()

	created, isNew, err := svc.Create(ctx, domain.SessionCreate{SessionID: " abc ", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.Equal(t, "abc", created.ID)

	again, isNew, err := svc.Create(ctx, domain.SessionCreate{SessionID: "abc", IPAddress: "10.0.0.2"})
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, "10.0.0.1", again.IPAddress, "existing session is returned unchanged")

	_, _, err = svc.Create(ctx, domain.SessionCreate{SessionID: "  "})
	assert.True(t, domain.IsValidation(err))
}

func TestSessionService_GetWithMessages(t *testing.T) {
	store := memory.New()
	svc := NewSessionService(store.Sessions(), store.Messages())
	ctx := context.Background()

	_, _, err := svc.Create(ctx, domain.SessionCreate{SessionID: "s"})
	require.NoError(t, err)
	_, err = store.Messages().Append(ctx, "s", "Hello", domain.SenderVisitor, time.Now())
	require.NoError(t, err)
	_, err = store.Messages().Append(ctx, "s", "Hi there!", domain.SenderAssistant, time.Now())
	require.NoError(t, err)

	session, err := svc.Get(ctx, "s")
	require.NoError(t, err)
	require.Len(t, session.Messages, 2)
	require.NotNil(t, session.LastMessage)
	assert.Equal(t, "Hi there!", session.LastMessage.Body)

	msgs, err := svc.Messages(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Messages(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_ListEmpty(t *testing.T) {
	store := memory.New()
	svc := NewSessionService(store.Sessions(), store.Messages())

	sessions, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestSessionService_StoreFailure(t *testing.T) {
	repo := new(MockSessionRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	repo.On("List", mock.Anything, defaultListLimit).Return(nil, errors.New("disk full"))

	svc := NewSessionService(repo, memory.New().Messages())

	_, _, err := svc.Create(context.Background(), domain.SessionCreate{SessionID: "s"})
	var se *domain.StoreError
	assert.ErrorAs(t, err, &se)

	_, err = svc.List(context.Background(), 0)
	assert.ErrorAs(t, err, &se)
	repo.AssertExpectations(t)
}
