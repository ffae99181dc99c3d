package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"

	"closingdoors/internal/model"
)

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// PostgresMetadata keeps the aggregate record in a single-row table keyed by
// the fixed logical key.
type PostgresMetadata struct {
	db *sql.DB
}

func NewPostgresMetadata(ctx context.Context, db *sql.DB) (*PostgresMetadata, error) {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS system_metadata (
    key TEXT PRIMARY KEY,
    data JSONB NOT NULL,
    updated_at BIGINT NOT NULL,
    min_feed_updated_at BIGINT NOT NULL
)`)
	if err != nil {
		return nil, errors.Wrap(err, "ensure system_metadata table")
	}
	return &PostgresMetadata{db: db}, nil
}

func (s *PostgresMetadata) PutMetadata(ctx context.Context, meta *model.SystemMetadata) error {
	data, err := json.Marshal(meta.Data)
	if err != nil {
		return errors.Wrap(err, "encode metadata routes")
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO system_metadata (key, data, updated_at, min_feed_updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at,
    min_feed_updated_at = EXCLUDED.min_feed_updated_at`,
		model.MetadataKey, data, meta.UpdatedAt, meta.MinFeedUpdatedAt)
	return errors.Wrap(err, "upsert metadata")
}

func (s *PostgresMetadata) GetMetadata(ctx context.Context) (*model.SystemMetadata, error) {
	var data []byte
	var meta model.SystemMetadata
	err := s.db.QueryRowContext(ctx, `
SELECT data, updated_at, min_feed_updated_at FROM system_metadata WHERE key = $1`,
		model.MetadataKey).Scan(&data, &meta.UpdatedAt, &meta.MinFeedUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "query metadata")
	}
	if err := json.Unmarshal(data, &meta.Data); err != nil {
		return nil, errors.Wrap(err, "decode metadata routes")
	}
	return &meta, nil
}
