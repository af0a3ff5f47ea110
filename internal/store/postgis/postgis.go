// Package postgis reads GFAS records from PostGIS tables with one row per
// (datetime, point).
package postgis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/query"
	"github.com/mohammed-shakir/emission-explorer/internal/store"
)

const backend = "postgis"

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to db: %v", model.ErrConnectionFailure, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping db: %v", model.ErrConnectionFailure, err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping db: %v", model.ErrConnectionFailure, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Acquire(ctx context.Context) (store.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire conn: %v", model.ErrConnectionFailure, err)
	}
	return &session{conn: conn}, nil
}

type session struct {
	conn *pgxpool.Conn
}

func source(f query.Filter) string { return pgx.Identifier{f.Table}.Sanitize() }

func (ss *session) Daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	start := time.Now()
	out, err := ss.daily(ctx, f)
	observability.ObserveStoreFetch(backend, store.KindDaily, err, len(out), time.Since(start).Seconds())
	return out, err
}

func (ss *session) daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	sql, args, err := f.SQL(query.PostGIS, query.KindDaily, source(f))
	if err != nil {
		return nil, err
	}
	rows, err := ss.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("daily %s: %w", f.Table, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.DailyValue, error) {
		var (
			day time.Time
			v   *float64
		)
		if err := row.Scan(&day, &v); err != nil {
			return model.DailyValue{}, err
		}
		return model.DailyValue{Date: model.Day(day), Value: orNaN(v)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan daily %s: %w", f.Table, err)
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
	sql, args, err := f.SQL(query.PostGIS, query.KindPoints, source(f))
	if err != nil {
		return nil, err
	}
	rows, err := ss.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("points %s: %w", f.Table, err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PointRecord, error) {
		var (
			day      time.Time
			lon, lat float64
			v        *float64
		)
		if err := row.Scan(&day, &lon, &lat, &v); err != nil {
			return model.PointRecord{}, err
		}
		return model.PointRecord{
			Date:     model.Day(day),
			Point:    geo.Point{X: lon, Y: lat},
			Value:    orNaN(v),
			Variable: f.Variable,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan points %s: %w", f.Table, err)
	}
	return out, nil
}

func (ss *session) Close() error {
	ss.conn.Release()
	return nil
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
