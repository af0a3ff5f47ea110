package h3mapper

import (
	"errors"
	"testing"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
)

func TestCellID_StableAndInsideBoundary(t *testing.T) {
	b, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p := geo.Point{X: 18.0686, Y: 59.3293}
	id1, err := b.CellID(p)
	if err != nil {
		t.Fatalf("CellID: %v", err)
	}
	id2, _ := b.CellID(p)
	if id1 != id2 {
		t.Fatalf("non-deterministic ids %q %q", id1, id2)
	}
	cell, err := b.Cell(id1)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if len(cell.Boundary) < 5 {
		t.Fatalf("hex boundary has %d vertices", len(cell.Boundary))
	}
	if !cell.Boundary.Contains(p) {
		t.Fatalf("point %v not inside its cell boundary", p)
	}
	if !cell.BBox.Contains(p) {
		t.Fatalf("point %v outside cell envelope %v", p, cell.BBox)
	}
}

func TestInvalidInputs(t *testing.T) {
	if _, err := New(16); !errors.Is(err, model.ErrUnsupportedMode) {
		t.Fatalf("New(16): err=%v", err)
	}
	b, _ := New(5)
	if _, err := b.Cell("not-a-cell"); err == nil {
		t.Fatalf("expected parse error")
	}
}
