package model

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

type Mode string

const (
	ModeScalar  Mode = "scalar"
	ModeGridded Mode = "gridded"
)

type GridKind string

const (
	GridSquare GridKind = "square"
	GridH3     GridKind = "h3"
)

type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case "":
		return Daily, nil
	case Daily, Weekly, Monthly:
		return g, nil
	default:
		return "", fmt.Errorf("%w: granularity %q", ErrUnsupportedMode, s)
	}
}

// DefaultResolution is the square cell edge in degrees used when a gridded
// request names none.
const DefaultResolution = 0.1

const (
	minH3Res = 0
	maxH3Res = 15
)

type AggregationRequest struct {
	Variable          Variable
	Start             time.Time
	End               time.Time
	Area              geo.MultiPolygon
	Operator          aggregate.Operator
	Mode              Mode
	Resolution        float64
	Grid              GridKind
	H3Res             int
	KeepSeparateDates bool
}

func (r AggregationRequest) Window() Window { return Window{Start: r.Start, End: r.End} }

// Validate checks the request without touching any store. The window is
// checked first so a reversed window is reported as such even when other
// fields are also wrong.
func (r AggregationRequest) Validate() error {
	if err := r.Window().Validate(); err != nil {
		return err
	}
	if !r.Variable.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownVariable, int(r.Variable))
	}
	if err := r.Area.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	if _, err := aggregate.ParseOperator(string(r.Operator)); err != nil || r.Operator == "" {
		return fmt.Errorf("%w: operator %q", ErrUnsupportedMode, r.Operator)
	}
	switch r.Mode {
	case ModeScalar:
		return nil
	case ModeGridded:
	default:
		return fmt.Errorf("%w: mode %q", ErrUnsupportedMode, r.Mode)
	}
	switch r.Grid {
	case GridSquare, "":
		if !(r.Resolution > 0) || math.IsInf(r.Resolution, 0) {
			return fmt.Errorf("%w: resolution %v must be positive", ErrUnsupportedMode, r.Resolution)
		}
	case GridH3:
		if r.H3Res < minH3Res || r.H3Res > maxH3Res {
			return fmt.Errorf("%w: h3 resolution %d outside [%d,%d]", ErrUnsupportedMode, r.H3Res, minH3Res, maxH3Res)
		}
	default:
		return fmt.Errorf("%w: grid %q", ErrUnsupportedMode, r.Grid)
	}
	return nil
}

// GroupKeys are the aggregation keys a gridded extraction uses.
func (r AggregationRequest) GroupKeys() aggregate.Keys {
	if r.KeepSeparateDates {
		return aggregate.Keys{aggregate.KeyDate, aggregate.KeyCell}
	}
	return aggregate.Keys{aggregate.KeyCell}
}
