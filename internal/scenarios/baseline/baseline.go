// Package baseline serves every query from the store.
package baseline

import (
	"log/slog"

	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
	"github.com/mohammed-shakir/emission-explorer/internal/scenarios"
)

func init() {
	scenarios.Register("baseline", newBaseline)
}

func newBaseline(_ config.Config, logger *slog.Logger, deps scenarios.Deps) (pipeline.Runner, error) {
	return pipeline.New(deps.Extractor, logger, scenarios.EngineOptions(deps)...), nil
}
