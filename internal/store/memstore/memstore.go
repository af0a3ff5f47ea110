// Package memstore is an in-process Store over a fixed set of records.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/query"
	"github.com/mohammed-shakir/emission-explorer/internal/store"
)

const backend = "memory"

type Store struct {
	mu      sync.RWMutex
	records map[model.Variable][]model.PointRecord

	acquireErr error

	acquired atomic.Int64
	released atomic.Int64
	fetches  atomic.Int64
}

type Option func(*Store)

// WithAcquireError makes every Acquire fail with err wrapped as a connection
// failure.
func WithAcquireError(err error) Option {
	return func(s *Store) { s.acquireErr = err }
}

func New(opts ...Option) *Store {
	s := &Store{records: make(map[model.Variable][]model.PointRecord)}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Add(recs ...model.PointRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		r.Date = model.Day(r.Date)
		s.records[r.Variable] = append(s.records[r.Variable], r)
	}
}

func (s *Store) Acquire(ctx context.Context) (store.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.acquireErr != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConnectionFailure, s.acquireErr)
	}
	s.acquired.Add(1)
	return &session{s: s}, nil
}

func (s *Store) Ping(context.Context) error {
	if s.acquireErr != nil {
		return fmt.Errorf("%w: %v", model.ErrConnectionFailure, s.acquireErr)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// Acquisitions, Releases and Fetches count store access.
func (s *Store) Acquisitions() int64 { return s.acquired.Load() }
func (s *Store) Releases() int64     { return s.released.Load() }
func (s *Store) Fetches() int64      { return s.fetches.Load() }

type session struct {
	s      *Store
	closed atomic.Bool
}

func (ss *session) matching(f query.Filter) []model.PointRecord {
	ss.s.mu.RLock()
	defer ss.s.mu.RUnlock()
	var out []model.PointRecord
	for _, r := range ss.s.records[f.Variable] {
		if f.MatchesRecord(r) {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b model.PointRecord) int { return a.Date.Compare(b.Date) })
	return out
}

func (ss *session) Points(ctx context.Context, f query.Filter) ([]model.PointRecord, error) {
	start := time.Now()
	if err := ss.check(ctx); err != nil {
		observability.ObserveStoreFetch(backend, store.KindPoints, err, 0, time.Since(start).Seconds())
		return nil, err
	}
	ss.s.fetches.Add(1)
	out := ss.matching(f)
	observability.ObserveStoreFetch(backend, store.KindPoints, nil, len(out), time.Since(start).Seconds())
	return out, nil
}

func (ss *session) Daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	start := time.Now()
	out, err := ss.daily(ctx, f)
	observability.ObserveStoreFetch(backend, store.KindDaily, err, len(out), time.Since(start).Seconds())
	return out, err
}

func (ss *session) daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error) {
	if err := ss.check(ctx); err != nil {
		return nil, err
	}
	ss.s.fetches.Add(1)
	recs := ss.matching(f)
	in := aggregate.Input{Fields: []string{"value"}, Records: make([]aggregate.Record, len(recs))}
	for i, r := range recs {
		in.Records[i] = aggregate.Record{Date: r.Date, Values: []float64{r.Value}}
	}
	tbl, err := aggregate.Aggregate(in, aggregate.Keys{aggregate.KeyDate}, []aggregate.Operator{f.Operator})
	if err != nil {
		return nil, fmt.Errorf("daily aggregate: %w", err)
	}
	out := make([]model.DailyValue, len(tbl.Groups))
	for i, g := range tbl.Groups {
		out[i] = model.DailyValue{Date: g.Date, Value: g.Values[0]}
	}
	return out, nil
}

func (ss *session) check(ctx context.Context) error {
	if ss.closed.Load() {
		return fmt.Errorf("%w: session closed", model.ErrConnectionFailure)
	}
	return ctx.Err()
}

func (ss *session) Close() error {
	if ss.closed.CompareAndSwap(false, true) {
		ss.s.released.Add(1)
	}
	return nil
}
