// Package cache serves queries through the Redis result cache and falls back
// to the store on a miss.
package cache

import (
	"errors"
	"log/slog"

	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
	"github.com/mohammed-shakir/emission-explorer/internal/scenarios"
)

func init() {
	scenarios.Register("cache", newCache)
}

func newCache(_ config.Config, logger *slog.Logger, deps scenarios.Deps) (pipeline.Runner, error) {
	if deps.Cache == nil {
		return nil, errors.New("cache scenario: result cache is not configured")
	}
	opts := append(scenarios.EngineOptions(deps), pipeline.WithCache(deps.Cache))
	return pipeline.New(deps.Extractor, logger, opts...), nil
}
