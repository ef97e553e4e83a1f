package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wuwenbin0122/assistant-relay/internal/models"
	"github.com/wuwenbin0122/assistant-relay/internal/utils"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg utils.JournalConfig) (*Postgres, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("journal: postgres dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("journal: parse postgres dsn: %w", err)
	}
	if cfg.PostgresMaxConns > 0 {
		poolConfig.MaxConns = cfg.PostgresMaxConns
	}

	ctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.PostgresConnTimeout))
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("journal: connect postgres: %w", err)
	}

	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p == nil || p.Pool == nil {
		return
	}
	p.Pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("journal: postgres pool not initialised")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.Pool.Ping(ctx)
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("journal: postgres pool not initialised")
	}

	statements := []string{
		strings.Join([]string{
			"CREATE TABLE IF NOT EXISTS assistant_runs (",
			"    id TEXT PRIMARY KEY,",
			"    thread_id TEXT NOT NULL,",
			"    run_id TEXT NOT NULL DEFAULT '',",
			"    assistant_id TEXT NOT NULL,",
			"    variant TEXT NOT NULL DEFAULT '',",
			"    new_thread BOOLEAN NOT NULL DEFAULT FALSE,",
			"    outcome TEXT NOT NULL,",
			"    error TEXT NOT NULL DEFAULT '',",
			"    polls INTEGER NOT NULL DEFAULT 0,",
			"    started_at TIMESTAMPTZ NOT NULL,",
			"    finished_at TIMESTAMPTZ NOT NULL",
			")",
		}, "\n"),
		"CREATE INDEX IF NOT EXISTS assistant_runs_thread_idx ON assistant_runs (thread_id, started_at DESC)",
	}

	for _, stmt := range statements {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("journal: ensure schema: %w", err)
		}
	}

	return nil
}

func (p *Postgres) Record(ctx context.Context, record models.RunRecord) error {
	if p == nil || p.Pool == nil {
		return fmt.Errorf("journal: postgres pool not initialised")
	}

	const insert = `INSERT INTO assistant_runs
		(id, thread_id, run_id, assistant_id, variant, new_thread, outcome, error, polls, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := p.Pool.Exec(ctx, insert,
		record.ID,
		record.ThreadID,
		record.RunID,
		record.AssistantID,
		record.Variant,
		record.NewThread,
		string(record.Outcome),
		record.Error,
		record.Polls,
		record.StartedAt,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("journal: insert run record: %w", err)
	}
	return nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return 10 * time.Second
}
