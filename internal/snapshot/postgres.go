package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgLogPrefix = "snapshot:postgres"

const createTable = `CREATE TABLE IF NOT EXISTS snapshots (
	name     TEXT PRIMARY KEY,
	data     BYTEA NOT NULL,
	saved_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps snapshots in a postgres table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPool creates a pgx connection pool and makes sure the snapshots table exists.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	slog.Info(fmt.Sprintf("%s - Connecting to database", pgLogPrefix))

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", pgLogPrefix, err)
	}
	config.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", pgLogPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", pgLogPrefix, err)
	}
	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to create snapshots table: %w", pgLogPrefix, err)
	}
	return pool, nil
}

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

func (s *PGStore) Save(ctx context.Context, name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO snapshots (name, data, saved_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, saved_at = EXCLUDED.saved_at`,
		name, data)
	if err != nil {
		return fmt.Errorf("%s - save %q: %w", pgLogPrefix, name, err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM snapshots WHERE name = $1`, name).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s - %q: %w", pgLogPrefix, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - load %q: %w", pgLogPrefix, name, err)
	}
	return data, nil
}
