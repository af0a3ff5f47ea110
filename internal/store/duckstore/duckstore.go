// Package duckstore reads GFAS records with DuckDB, either from tables in a
// database file or from parquet exports laid out as <dir>/<table>*.parquet.
// Rows carry datetime, lon, lat and value columns.
package duckstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/duckdb/duckdb-go/v2"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/query"
	"github.com/mohammed-shakir/emission-explorer/internal/store"
)

const backend = "duckdb"

type Store struct {
	connector *duckdb.Connector
	db        *sql.DB
	dataDir   string
}

// Open creates a DuckDB handle on path ("" for in-memory) and loads the
// spatial extension. With dataDir set, tables are read from parquet files.
func Open(ctx context.Context, path, dataDir string) (*Store, error) {
	connector, err := duckdb.NewConnector(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: duckdb connector: %v", model.ErrConnectionFailure, err)
	}
	db := sql.OpenDB(connector)
	if _, err := db.ExecContext(ctx, "INSTALL spatial; LOAD spatial;"); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("%w: load spatial extension: %v", model.ErrConnectionFailure, err)
	}
	return &Store{connector: connector, db: db, dataDir: dataDir}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping duckdb: %v", model.ErrConnectionFailure, err)
	}
	return nil
}

func (s *Store) Close() error {
	return errors.Join(s.db.Close(), s.connector.Close())
}

func (s *Store) Acquire(ctx context.Context) (store.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: duckdb conn: %v", model.ErrConnectionFailure, err)
	}
	return &session{conn: conn, dataDir: s.dataDir}, nil
}

// Seed creates the variable's table if needed and appends recs. It only
// applies to database-backed stores.
func (s *Store) Seed(ctx context.Context, v model.Variable, recs []model.PointRecord) (err error) {
	if s.dataDir != "" {
		return errors.New("seed: store reads parquet files")
	}
	table := quoteIdent(v.Table())
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (datetime DATE, lon DOUBLE, lat DOUBLE, value DOUBLE)", table)); err != nil {
		return fmt.Errorf("create %s: %w", table, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (?, ?, ?, ?)", table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err = stmt.ExecContext(ctx, model.Day(r.Date), r.Point.X, r.Point.Y, r.Value); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}

type session struct {
	conn    *sql.Conn
	dataDir string
}

func (ss *session) source(f query.Filter) string {
	if ss.dataDir == "" {
		return quoteIdent(f.Table)
	}
	glob := filepath.Join(ss.dataDir, f.Table+"*.parquet")
	return "read_parquet('" + strings.ReplaceAll(glob, "'", "''") + "')"
}

func (ss *session) Daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	start := time.Now()
	out, err := ss.daily(ctx, f)
	observability.ObserveStoreFetch(backend, store.KindDaily, err, len(out), time.Since(start).Seconds())
	return out, err
}

func (ss *session) daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	q, args, err := f.SQL(query.DuckDB, query.KindDaily, ss.source(f))
	if err != nil {
		return nil, err
	}
	rows, err := ss.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("daily %s: %w", f.Table, err)
	}
	defer rows.Close()

	var out []model.DailyValue
	for rows.Next() {
		var (
			day time.Time
			v   sql.NullFloat64
		)
		if err := rows.Scan(&day, &v); err != nil {
			return nil, fmt.Errorf("scan daily %s: %w", f.Table, err)
		}
		out = append(out, model.DailyValue{Date: model.Day(day), Value: orNaN(v)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daily %s rows: %w", f.Table, err)
	}
	return out, nil
}

func (ss *session) Points(ctx context.Context, f query.Filter) ([]model.PointRecord, error) {
	start := time.Now()
	out, err := ss.points(ctx, f)
	observability.ObserveStoreFetch(backend, store.KindPoints, err, len(out), time.Since(start).Seconds())
	return out, err
}

func (ss *session) points(ctx context.Context, f query.Filter) ([]model.PointRecord, error) {
	q, args, err := f.SQL(query.DuckDB, query.KindPoints, ss.source(f))
	if err != nil {
		return nil, err
	}
	rows, err := ss.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("points %s: %w", f.Table, err)
	}
	defer rows.Close()

	var out []model.PointRecord
	for rows.Next() {
		var (
			day      time.Time
			lon, lat float64
			v        sql.NullFloat64
		)
		if err := rows.Scan(&day, &lon, &lat, &v); err != nil {
			return nil, fmt.Errorf("scan points %s: %w", f.Table, err)
		}
		out = append(out, model.PointRecord{
			Date:     model.Day(day),
			Point:    geo.Point{X: lon, Y: lat},
			Value:    orNaN(v),
			Variable: f.Variable,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("points %s rows: %w", f.Table, err)
	}
	return out, nil
}

func (ss *session) Close() error { return ss.conn.Close() }

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
