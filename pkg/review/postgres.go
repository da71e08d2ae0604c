package review

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return store, nil
}

// ensureSchema creates the review tables and indexes if they don't exist.
func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS dialogue_turns (
    id          TEXT        PRIMARY KEY,
    user_id     TEXT        NOT NULL,
    question    TEXT        NOT NULL,
    answer      TEXT        NOT NULL,
    topic       TEXT        NOT NULL,
    tid         TEXT        NOT NULL DEFAULT '',
    behavior    INTEGER     NOT NULL DEFAULT 0,
    stage       TEXT        NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_dialogue_turns_user ON dialogue_turns (user_id, created_at);

CREATE TABLE IF NOT EXISTS unanswered_questions (
    id          TEXT        PRIMARY KEY,
    user_id     TEXT        NOT NULL,
    question    TEXT        NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_unanswered_created ON unanswered_questions (created_at);
`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

// SaveTurn inserts an answered turn.
func (s *PostgresStore) SaveTurn(ctx context.Context, turn Turn) error {
	query := `
INSERT INTO dialogue_turns (id, user_id, question, answer, topic, tid, behavior, stage, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING
`
	_, err := s.pool.Exec(ctx, query,
		turn.ID, turn.UserID, turn.Question, turn.Answer, turn.Topic,
		turn.TID, turn.Behavior, turn.Stage, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn %s: %w", turn.ID, err)
	}
	return nil
}

// SaveUnanswered inserts an unanswered question.
func (s *PostgresStore) SaveUnanswered(ctx context.Context, q Unanswered) error {
	query := `
INSERT INTO unanswered_questions (id, user_id, question, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING
`
	_, err := s.pool.Exec(ctx, query, q.ID, q.UserID, q.Question, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save unanswered question %s: %w", q.ID, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}
