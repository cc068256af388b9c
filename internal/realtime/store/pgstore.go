package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cafe-pos/internal/config"
	"cafe-pos/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps the mirror in a Postgres table so several counters can share
// one durable store. Versioning and change events behave exactly like the
// file backend; the conditional UPDATE gives compare-and-swap for free.
type PGStore struct {
	pool     *pgxpool.Pool
	watchers *watcherSet
	mylog    logger.Logger
}

const mirrorSchema = `
CREATE TABLE IF NOT EXISTS mirror_store (
	key        TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func NewPGStore(ctx context.Context, cfg *config.StoreConfig, mylog logger.Logger) (*PGStore, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(connCtx, mirrorSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure mirror_store table: %w", err)
	}

	mylog.Action("db_connected").Info("Connected to PostgreSQL mirror store")
	return &PGStore{
		pool:     pool,
		watchers: newWatcherSet(mylog),
		mylog:    mylog,
	}, nil
}

func (s *PGStore) Read(key string) ([]byte, Version, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var value []byte
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT value, version FROM mirror_store WHERE key = $1`, key,
	).Scan(&value, &version)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.mylog.Action("store_read_failed").With("key", key).Warn(err.Error())
		}
		return nil, 0, nil
	}
	return value, Version(version), nil
}

func (s *PGStore) Write(station, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO mirror_store (key, version, value, updated_at)
		VALUES ($1, 1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET version = mirror_store.version + 1, value = $2, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("mirror write %q: %w", key, err)
	}
	s.watchers.notify(station, key, value)
	return nil
}

func (s *PGStore) CompareAndSwap(station, key string, value []byte, expect Version) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if expect == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO mirror_store (key, version, value, updated_at)
			VALUES ($1, 1, $2, now())
			ON CONFLICT (key) DO NOTHING`,
			key, value)
		if err != nil {
			return fmt.Errorf("mirror insert %q: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("key %q already exists: %w", key, ErrVersionConflict)
		}
	} else {
		tag, err := s.pool.Exec(ctx, `
			UPDATE mirror_store
			SET version = version + 1, value = $2, updated_at = now()
			WHERE key = $1 AND version = $3`,
			key, value, int64(expect))
		if err != nil {
			return fmt.Errorf("mirror cas %q: %w", key, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("key %q moved past v%d: %w", key, expect, ErrVersionConflict)
		}
	}
	s.watchers.notify(station, key, value)
	return nil
}

func (s *PGStore) Watch(station, key string, handler func(value []byte)) (func(), error) {
	return s.watchers.add(station, key, handler)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

// Pool exposes the connection pool so other repositories can share it.
func (s *PGStore) Pool() *pgxpool.Pool {
	return s.pool
}
