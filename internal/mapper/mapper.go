// Package mapper bins points into grid cells and resolves cell geometry.
package mapper

import (
	"fmt"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	h3mapper "github.com/mohammed-shakir/emission-explorer/internal/mapper/h3"
	"github.com/mohammed-shakir/emission-explorer/internal/mapper/square"
)

type Binner interface {
	CellID(p geo.Point) (string, error)
	Cell(id string) (model.GridCell, error)
}

// ForRequest picks the binner a gridded request asks for.
func ForRequest(req model.AggregationRequest) (Binner, error) {
	switch req.Grid {
	case model.GridSquare, "":
		return square.New(req.Resolution)
	case model.GridH3:
		return h3mapper.New(req.H3Res)
	default:
		return nil, fmt.Errorf("%w: grid %q", model.ErrUnsupportedMode, req.Grid)
	}
}
