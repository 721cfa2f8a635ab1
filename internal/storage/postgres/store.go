// Package postgres persists harvested applications behind a conflict-tolerant
// upsert keyed on the result URL.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store writes application rows into Postgres.
type Store struct {
	pool   pgxPool
	table  string
	logger *zap.Logger
}

// NewStore connects a Postgres-backed Store using the provided config. A
// connection failure here is a hard failure; no partial sync is attempted.
func NewStore(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "grad_applications"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table, logger: logger}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool pgxPool, table string, logger *zap.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "grad_applications"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) createTableSQL() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	p_id SERIAL PRIMARY KEY,
	program TEXT,
	comments TEXT,
	date_added DATE,
	url TEXT UNIQUE,
	status TEXT,
	term TEXT,
	us_or_international TEXT,
	gpa FLOAT,
	gre FLOAT,
	gre_v FLOAT,
	gre_aw FLOAT,
	degree TEXT,
	normalized_program TEXT,
	normalized_university TEXT
)`, s.table)
}

func (s *Store) insertSQL() string {
	return fmt.Sprintf(`
INSERT INTO %s (
	program, comments, date_added, url, status, term,
	us_or_international, gpa, gre, gre_v, gre_aw,
	degree, normalized_program, normalized_university
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (url) DO NOTHING`, s.table)
}

func rowArgs(row Row) []any {
	return []any{
		row.Program,
		row.Comments,
		row.DateAdded,
		row.URL,
		row.Status,
		row.Term,
		row.Citizenship,
		row.GPA,
		row.GREGeneral,
		row.GREVerbal,
		row.GREWriting,
		row.Degree,
		row.NormalizedProgram,
		row.NormalizedUniversity,
	}
}

// EnsureSchema creates the destination table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Sync inserts rows incrementally. Rows whose URL already exists are skipped
// by the database, so re-running over previously-synced data is a no-op.
func (s *Store) Sync(ctx context.Context, rows []Row) (int64, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return 0, err
	}
	var inserted int64
	sql := s.insertSQL()
	for i := range rows {
		tag, err := s.pool.Exec(ctx, sql, rowArgs(rows[i])...)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		inserted += tag.RowsAffected()
	}
	s.logger.Info("incremental sync complete",
		zap.Int("rows", len(rows)),
		zap.Int64("inserted", inserted),
	)
	return inserted, nil
}

// Rebuild truncates the destination table and reloads it from rows, all
// inside one transaction so a failure leaves the table in its pre-rebuild
// state.
func (s *Store) Rebuild(ctx context.Context, rows []Row) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE %s RESTART IDENTITY", s.table)); err != nil {
		return fmt.Errorf("truncate %s: %w", s.table, err)
	}

	sql := s.insertSQL()
	for i := range rows {
		if _, err := tx.Exec(ctx, sql, rowArgs(rows[i])...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rebuild tx: %w", err)
	}
	s.logger.Info("full rebuild complete", zap.Int("rows", len(rows)))
	return nil
}
