// Package store defines the storage collaborator the extractor reads from.
package store

import (
	"context"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/query"
)

// Session is a scoped connection. Callers must Close it on every path.
type Session interface {
	// Daily returns one server-side aggregated value per observed day,
	// ascending.
	Daily(ctx context.Context, f query.Filter) ([]model.DailyValue, error)
	// Points returns the raw records inside the filter, ascending by date.
	Points(ctx context.Context, f query.Filter) ([]model.PointRecord, error)
	Close() error
}

type Store interface {
	// Acquire fails with an error wrapping model.ErrConnectionFailure when
	// the backend is unreachable.
	Acquire(ctx context.Context) (Session, error)
	Ping(ctx context.Context) error
	Close() error
}

const (
	KindDaily  = "daily"
	KindPoints = "points"
)
