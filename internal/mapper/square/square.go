// Package square bins points into a regular lon/lat grid.
package square

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

type Binner struct {
	res      float64
	decimals int
}

func New(res float64) (*Binner, error) {
	if !(res > 0) || math.IsInf(res, 0) {
		return nil, fmt.Errorf("%w: resolution %v must be positive", model.ErrUnsupportedMode, res)
	}
	return &Binner{res: res, decimals: decimalsOf(res)}, nil
}

// CellIDFor returns "x_y" where x, y are the lower-left corner of the cell
// holding p. Cells are half-open: a point on a grid line belongs to the cell
// whose lower-left corner it sits on.
func (b *Binner) CellIDFor(p geo.Point) string {
	return b.format(b.corner(p.X)) + "_" + b.format(b.corner(p.Y))
}

func (b *Binner) CellID(p geo.Point) (string, error) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return "", fmt.Errorf("%w: non-finite point %v", model.ErrInvalidGeometry, p)
	}
	return b.CellIDFor(p), nil
}

// BBoxFor inverts CellIDFor.
func (b *Binner) BBoxFor(id string) (geo.BBox, error) {
	xs, ys, ok := strings.Cut(id, "_")
	if !ok {
		return geo.BBox{}, fmt.Errorf("malformed cell id %q", id)
	}
	x, errX := strconv.ParseFloat(xs, 64)
	y, errY := strconv.ParseFloat(ys, 64)
	if err := errors.Join(errX, errY); err != nil {
		return geo.BBox{}, fmt.Errorf("malformed cell id %q: %w", id, err)
	}
	return geo.BBox{X1: x, Y1: y, X2: b.round(x + b.res), Y2: b.round(y + b.res)}, nil
}

func (b *Binner) Cell(id string) (model.GridCell, error) {
	bb, err := b.BBoxFor(id)
	if err != nil {
		return model.GridCell{}, err
	}
	return model.GridCell{ID: id, Boundary: bb.Ring(), BBox: bb}, nil
}

// corner floors v onto the grid. v/res carries division noise, so a value
// is on a grid line only when it equals that line at the grid's precision.
func (b *Binner) corner(v float64) float64 {
	q := v / b.res
	k := math.Floor(q)
	if r := math.Round(q); r != k && b.round(r*b.res) == v {
		k = r
	}
	return b.round(k * b.res)
}

func (b *Binner) round(v float64) float64 {
	p := math.Pow10(b.decimals)
	v = math.Round(v*p) / p
	if v == 0 {
		return 0
	}
	return v
}

func (b *Binner) format(v float64) string {
	return strconv.FormatFloat(v, 'f', b.decimals, 64)
}

func decimalsOf(res float64) int {
	s := strconv.FormatFloat(res, 'f', -1, 64)
	if _, frac, ok := strings.Cut(s, "."); ok {
		return len(frac)
	}
	return 0
}
