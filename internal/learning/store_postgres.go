package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-portal/internal/catalog"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps module completion in PostgreSQL so progress survives a
// restart. Seed stats and the module list stay in memory.
type PostgresStore struct {
	*MemoryStore
	pool *pgxpool.Pool
}

// NewPostgresStore creates the store and applies any completion overrides
// already saved in module_progress.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, modules []catalog.Module, seed Stats) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	s := &PostgresStore{
		MemoryStore: NewMemoryStore(modules, seed),
		pool:        pool,
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id string, percent int) (bool, error) {
	if !s.has(id) {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO module_progress (module_id, completion, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (module_id) DO UPDATE
		 SET completion = EXCLUDED.completion, updated_at = EXCLUDED.updated_at`,
		id,
		percent,
	)
	if err != nil {
		return false, fmt.Errorf("save module progress: %w", err)
	}

	return s.MemoryStore.UpdateProgress(ctx, id, percent)
}

func (s *PostgresStore) load(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT module_id, completion FROM module_progress`)
	if err != nil {
		return fmt.Errorf("query module progress: %w", err)
	}
	defer rows.Close()

	applied := 0
	for rows.Next() {
		var id string
		var completion int
		if err := rows.Scan(&id, &completion); err != nil {
			return fmt.Errorf("scan module progress: %w", err)
		}
		if _, ok := s.apply(id, completion); !ok {
			slog.Warn("ignoring progress for unknown module", "module_id", id)
			continue
		}
		applied++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate module progress: %w", err)
	}

	slog.Info("module progress restored", "modules", applied)
	return nil
}
