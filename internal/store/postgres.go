package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists call turns and dispositions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS call_turns (
			id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			seq INT NOT NULL,
			customer_text TEXT NOT NULL DEFAULT '',
			agent_text TEXT NOT NULL DEFAULT '',
			digit TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL DEFAULT '',
			emotion TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_call_turns_call_seq ON call_turns (call_id, seq);`,
		`CREATE TABLE IF NOT EXISTS call_dispositions (
			call_id TEXT PRIMARY KEY,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			intent TEXT NOT NULL DEFAULT '',
			emotion TEXT NOT NULL DEFAULT '',
			turn_count INT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			add_to_dnc BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, turn Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO call_turns (id, call_id, seq, customer_text, agent_text, digit, intent, emotion, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		turn.ID,
		turn.CallID,
		turn.Seq,
		turn.CustomerText,
		turn.AgentText,
		turn.Digit,
		turn.Intent,
		turn.Emotion,
		turn.Confidence,
		turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) WriteDisposition(ctx context.Context, d Disposition) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO call_dispositions (call_id, outcome, reason, intent, emotion, turn_count, duration_ms, add_to_dnc, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (call_id) DO NOTHING`,
		d.CallID,
		d.Outcome,
		d.Reason,
		d.Intent,
		d.Emotion,
		d.TurnCount,
		d.Duration.Milliseconds(),
		d.AddToDNC,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write disposition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDispositionExists
	}
	return nil
}

func (s *PostgresStore) Turns(ctx context.Context, callID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, call_id, seq, customer_text, agent_text, digit, intent, emotion, confidence, created_at
		 FROM call_turns WHERE call_id=$1 ORDER BY seq ASC`,
		callID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.CallID, &t.Seq, &t.CustomerText, &t.AgentText, &t.Digit, &t.Intent, &t.Emotion, &t.Confidence, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return turns, nil
}

func (s *PostgresStore) DispositionFor(ctx context.Context, callID string) (Disposition, error) {
	var (
		d          Disposition
		durationMS int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT call_id, outcome, reason, intent, emotion, turn_count, duration_ms, add_to_dnc, created_at
		 FROM call_dispositions WHERE call_id=$1`,
		callID,
	).Scan(&d.CallID, &d.Outcome, &d.Reason, &d.Intent, &d.Emotion, &d.TurnCount, &durationMS, &d.AddToDNC, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Disposition{}, ErrNoDisposition
		}
		return Disposition{}, fmt.Errorf("query disposition: %w", err)
	}
	d.Duration = time.Duration(durationMS) * time.Millisecond
	return d, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
