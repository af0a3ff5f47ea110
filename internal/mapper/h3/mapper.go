// Package h3mapper bins points into H3 hexagonal cells.
package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

type Binner struct {
	res int
}

func New(res int) (*Binner, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Binner{res: res}, nil
}

func (b *Binner) CellID(p geo.Point) (string, error) {
	// v4 wants degrees
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Y, Lng: p.X}, b.res)
	if err != nil {
		return "", fmt.Errorf("h3 index %v: %w", p, err)
	}
	return c.String(), nil
}

func (b *Binner) Cell(id string) (model.GridCell, error) {
	c, err := parseCell(id)
	if err != nil {
		return model.GridCell{}, err
	}
	boundary, err := c.Boundary()
	if err != nil {
		return model.GridCell{}, fmt.Errorf("h3 boundary %s: %w", id, err)
	}
	ring := make(geo.Ring, 0, len(boundary))
	for _, ll := range boundary {
		ring = append(ring, geo.Point{X: ll.Lng, Y: ll.Lat})
	}
	return model.GridCell{ID: id, Boundary: ring, BBox: ring.Envelope()}, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("%w: invalid H3 resolution %d (must be 0..15)", model.ErrUnsupportedMode, res)
	}
	return nil
}

func parseCell(id string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(id)); err != nil {
		return 0, fmt.Errorf("parse cell: %w", err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", id)
	}
	return c, nil
}
