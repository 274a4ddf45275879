package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSlotRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresSlotRepo(pool *pgxpool.Pool) *PostgresSlotRepo {
	return &PostgresSlotRepo{pool: pool}
}

func (r *PostgresSlotRepo) Read(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx, "SELECT value FROM chat_slots WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *PostgresSlotRepo) Write(ctx context.Context, key, value string) error {
	query := `INSERT INTO chat_slots (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}

func (r *PostgresSlotRepo) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM chat_slots WHERE key = $1", key)
	return err
}
