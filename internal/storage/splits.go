// Package storage persists split candidates: cut points inside shapes that
// were confirmed as several touching letters. The boundary detector reads
// them through [SplitStore.FindSplits].
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ironsheep/ocr-decoder/internal/boundary"
	ocrerrors "github.com/ironsheep/ocr-decoder/internal/errors"
	"github.com/ironsheep/ocr-decoder/internal/shape"
)

// ErrSplitNotFound is returned by LoadSplit for an unknown id.
var ErrSplitNotFound = errors.New("split not found")

const schema = `
CREATE TABLE IF NOT EXISTS ocr_split (
	split_id       BIGSERIAL PRIMARY KEY,
	split_shape_id BIGINT NOT NULL,
	split_position INTEGER NOT NULL CHECK (split_position > 0)
);
CREATE INDEX IF NOT EXISTS ocr_split_shape_idx ON ocr_split (split_shape_id);
`

const selectSplits = `SELECT split_id, split_shape_id, split_position FROM ocr_split`

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DefaultPoolConfig returns the default pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MaxOpenConns: 25, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}
}

// SplitStore reads and writes splits in PostgreSQL. It is safe for
// concurrent use.
type SplitStore struct {
	db *sql.DB
}

var _ boundary.SplitSource = (*SplitStore)(nil)

// Open connects to the database at url and checks the connection.
func Open(ctx context.Context, url string, pool PoolConfig) (*SplitStore, error) {
	if url == "" {
		return nil, ocrerrors.NewConfigurationError("database URL is required", nil)
	}
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, ocrerrors.NewStorageError("failed to open database", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, ocrerrors.NewStorageError("failed to ping database", err)
	}
	return &SplitStore{db: db}, nil
}

// NewSplitStore wraps an open database.
func NewSplitStore(db *sql.DB) *SplitStore {
	return &SplitStore{db: db}
}

// Close closes the database.
func (s *SplitStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the split table if it does not exist.
func (s *SplitStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return ocrerrors.NewStorageError("failed to create split schema", err)
	}
	return nil
}

// FindSplits implements boundary.SplitSource. Shapes that were never saved
// (Key 0) have no splits.
func (s *SplitStore) FindSplits(ctx context.Context, sh *shape.Shape) ([]boundary.Split, error) {
	if sh.Key == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		selectSplits+` WHERE split_shape_id = $1 ORDER BY split_position`, sh.Key)
	if err != nil {
		return nil, ocrerrors.NewStorageError(fmt.Sprintf("failed to find splits for shape %d", sh.Key), err)
	}
	return scanSplits(rows)
}

// FindSplitsByShapes loads the splits of several shapes in one query,
// grouped by shape key.
func (s *SplitStore) FindSplitsByShapes(ctx context.Context, keys []int64) (map[int64][]boundary.Split, error) {
	out := make(map[int64][]boundary.Split)
	if len(keys) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		selectSplits+` WHERE split_shape_id = ANY($1) ORDER BY split_shape_id, split_position`, pq.Array(keys))
	if err != nil {
		return nil, ocrerrors.NewStorageError("failed to find splits", err)
	}
	splits, err := scanSplits(rows)
	if err != nil {
		return nil, err
	}
	for _, sp := range splits {
		out[sp.ShapeKey] = append(out[sp.ShapeKey], sp)
	}
	return out, nil
}

func scanSplits(rows *sql.Rows) ([]boundary.Split, error) {
	defer rows.Close()
	var splits []boundary.Split
	for rows.Next() {
		var sp boundary.Split
		if err := rows.Scan(&sp.ID, &sp.ShapeKey, &sp.Position); err != nil {
			return nil, ocrerrors.NewStorageError("failed to scan split", err)
		}
		splits = append(splits, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, ocrerrors.NewStorageError("failed to read splits", err)
	}
	return splits, nil
}

// LoadSplit returns the split with the given id.
func (s *SplitStore) LoadSplit(ctx context.Context, id int64) (boundary.Split, error) {
	var sp boundary.Split
	err := s.db.QueryRowContext(ctx, selectSplits+` WHERE split_id = $1`, id).
		Scan(&sp.ID, &sp.ShapeKey, &sp.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return sp, ocrerrors.NewStorageError(fmt.Sprintf("split %d", id), ErrSplitNotFound)
	}
	if err != nil {
		return sp, ocrerrors.NewStorageError(fmt.Sprintf("failed to load split %d", id), err)
	}
	return sp, nil
}

// SaveSplit inserts sp, setting its ID, or updates it when it already has
// one.
func (s *SplitStore) SaveSplit(ctx context.Context, sp *boundary.Split) error {
	if sp.ShapeKey == 0 {
		return ocrerrors.NewLogicError("cannot save a split of an unsaved shape", nil)
	}
	if sp.Position <= 0 {
		return ocrerrors.NewLogicError(fmt.Sprintf("split position must be positive, got %d", sp.Position), nil)
	}

	if sp.ID == 0 {
		err := s.db.QueryRowContext(ctx,
			`INSERT INTO ocr_split (split_shape_id, split_position) VALUES ($1, $2) RETURNING split_id`,
			sp.ShapeKey, sp.Position).Scan(&sp.ID)
		if err != nil {
			return ocrerrors.NewStorageError("failed to insert split", err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ocr_split SET split_shape_id = $1, split_position = $2 WHERE split_id = $3`,
		sp.ShapeKey, sp.Position, sp.ID)
	if err != nil {
		return ocrerrors.NewStorageError(fmt.Sprintf("failed to update split %d", sp.ID), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ocrerrors.NewStorageError(fmt.Sprintf("split %d", sp.ID), ErrSplitNotFound)
	}
	return nil
}

// DeleteSplit removes the split with the given id. Deleting an unknown split
// is not an error.
func (s *SplitStore) DeleteSplit(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ocr_split WHERE split_id = $1`, id); err != nil {
		return ocrerrors.NewStorageError(fmt.Sprintf("failed to delete split %d", id), err)
	}
	return nil
}

// Preload reads the splits of every shape in arena in one query and returns
// them as an in-memory source, so that boundary detection does no I/O.
func (s *SplitStore) Preload(ctx context.Context, arena *shape.Arena) (boundary.StaticSplits, error) {
	var keys []int64
	for _, sh := range arena.Shapes() {
		if sh.Key != 0 {
			keys = append(keys, sh.Key)
		}
	}
	byShape, err := s.FindSplitsByShapes(ctx, keys)
	if err != nil {
		return nil, err
	}
	out := make(boundary.StaticSplits, len(byShape))
	for key, splits := range byShape {
		for _, sp := range splits {
			out[key] = append(out[key], sp.Position)
		}
	}
	return out, nil
}
