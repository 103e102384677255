package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmolokov/effectcore/internal/model"
)

// SessionStatsRepository persists per-entity effect accumulators.
type SessionStatsRepository struct {
	pool *pgxpool.Pool
}

// NewSessionStatsRepository creates a repository over the given pool.
func NewSessionStatsRepository(pool *pgxpool.Pool) *SessionStatsRepository {
	return &SessionStatsRepository{pool: pool}
}

// SaveAll upserts accumulators for every entity in one transaction.
// Totals are cumulative across flushes: each write adds the in-memory
// amount to the stored value, so callers reset their in-memory sink
// after a successful flush.
func (r *SessionStatsRepository) SaveAll(ctx context.Context, totals map[model.EntityID]map[string]float64) error {
	if len(totals) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session stats tx: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err.Error() != "tx is closed" {
			slog.Error("session stats rollback failed", "error", err)
		}
	}()

	now := time.Now()
	for id, effects := range totals {
		for name, amount := range effects {
			if amount == 0 {
				continue
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO effect_session_stats (entity_id, effect_name, total, updated_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (entity_id, effect_name)
				 DO UPDATE SET total = effect_session_stats.total + EXCLUDED.total,
				               updated_at = EXCLUDED.updated_at`,
				int64(id), name, amount, now,
			)
			if err != nil {
				return fmt.Errorf("upserting stats for entity %d effect %q: %w", id, name, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing session stats: %w", err)
	}
	return nil
}

// Load returns the stored accumulators for one entity.
func (r *SessionStatsRepository) Load(ctx context.Context, id model.EntityID) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT effect_name, total FROM effect_session_stats WHERE entity_id = $1`,
		int64(id),
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats for entity %d: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scanning stats row: %w", err)
		}
		out[name] = total
	}
	return out, rows.Err()
}

// DeleteEntity drops the stored accumulators for a removed entity.
func (r *SessionStatsRepository) DeleteEntity(ctx context.Context, id model.EntityID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM effect_session_stats WHERE entity_id = $1`, int64(id))
	if err != nil {
		return fmt.Errorf("deleting stats for entity %d: %w", id, err)
	}
	return nil
}
