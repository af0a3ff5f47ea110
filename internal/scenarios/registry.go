// Package scenarios selects how queries are served: straight through the
// pipeline, or through the result cache.
package scenarios

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
)

// Deps are the collaborators a scenario may wire. Cache is nil when Redis is
// not configured.
type Deps struct {
	Extractor pipeline.Extractor
	Cache     pipeline.ResultCache
	Observers []pipeline.Observer
}

type Factory func(cfg config.Config, logger *slog.Logger, deps Deps) (pipeline.Runner, error)

var reg = map[string]Factory{}

func Register(name string, f Factory) {
	reg[name] = f
}

func Names() []string {
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func New(name string, cfg config.Config, logger *slog.Logger, deps Deps) (pipeline.Runner, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("scenario %q: extractor is required", name)
	}
	if f, ok := reg[name]; ok {
		return f(cfg, logger, deps)
	}
	if f, ok := reg["baseline"]; ok {
		logger.Warn("unknown scenario; falling back to baseline", "scenario", name)
		return f(cfg, logger, deps)
	}
	return nil, fmt.Errorf("no factory for scenario %q and no baseline registered", name)
}

// EngineOptions turns the observers in deps into pipeline options.
func EngineOptions(deps Deps) []pipeline.Option {
	opts := make([]pipeline.Option, 0, len(deps.Observers))
	for _, o := range deps.Observers {
		opts = append(opts, pipeline.WithObserver(o))
	}
	return opts
}
