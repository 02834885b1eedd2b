package repository

import (
	"context"
	"fmt"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/Rrens/support-chat/internal/repository/postgres"
	"github.com/Rrens/support-chat/internal/repository/sqldb"
	"github.com/rs/zerolog/log"
)

// Store bundles the repositories of one session store backend.
type Store struct {
	Driver    string
	Sessions  domain.SessionRepository
	Messages  domain.MessageRepository
	Assistant domain.AssistantConfigRepository
	Operators domain.OperatorRepository

	ping  func(ctx context.Context) error
	close func()
}

// Ping verifies the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backend's connections.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	switch cfg.Driver {
	case "postgres":
		if cfg.AutoMigrate {
			if err := postgres.RunMigrations(cfg.DSN()); err != nil {
				return nil, err
			}
		}
		db, err := postgres.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:    cfg.Driver,
			Sessions:  postgres.NewSessionRepository(db.Pool),
			Messages:  postgres.NewMessageRepository(db.Pool),
			Assistant: postgres.NewAssistantConfigRepository(db.Pool),
			Operators: postgres.NewOperatorRepository(db.Pool),
			ping:      db.Ping,
			close:     db.Close,
		}, nil

	case "sqlite", "mysql":
		db, err := sqldb.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &Store{
			Driver:    cfg.Driver,
			Sessions:  sqldb.NewSessionRepository(db),
			Messages:  sqldb.NewMessageRepository(db),
			Assistant: sqldb.NewAssistantConfigRepository(db),
			Operators: sqldb.NewOperatorRepository(db),
			ping:      db.Ping,
			close: func() {
				if err := db.Close(); err != nil {
					log.Warn().Err(err).Msg("Failed to close database")
				}
			},
		}, nil

	case "memory", "":
		return NewMemory(), nil

	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// NewMemory returns a Store backed by process memory.
func NewMemory() *Store {
	m := memory.New()
	return &Store{
		Driver:    "memory",
		Sessions:  m.Sessions(),
		Messages:  m.Messages(),
		Assistant: m.Assistant(),
		Operators: m.Operators(),
	}
}
