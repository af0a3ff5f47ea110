// Package pipeline runs a full query: validation, extraction of the primary
// and reference windows, resampling and merging.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/merge"
	"github.com/mohammed-shakir/emission-explorer/internal/resample"
)

type Query struct {
	Request     model.AggregationRequest
	Granularity model.Granularity
	Reference   *model.Window
}

// Validate runs every check that must precede store access.
func (q Query) Validate() error {
	if err := q.Request.Validate(); err != nil {
		return err
	}
	if q.Reference != nil {
		if err := q.Reference.Validate(); err != nil {
			return fmt.Errorf("reference period: %w", err)
		}
	}
	g, err := model.ParseGranularity(string(q.Granularity))
	if err != nil {
		return err
	}
	if q.Request.Mode == model.ModeGridded {
		if q.Reference != nil {
			return fmt.Errorf("%w: reference periods are not supported for gridded output", model.ErrUnsupportedMode)
		}
		if g != model.Daily {
			return fmt.Errorf("%w: %s resampling of gridded output", model.ErrUnsupportedMode, g)
		}
	}
	return nil
}

type Extractor interface {
	Extract(ctx context.Context, req model.AggregationRequest) (model.Result, error)
}

// ResultCache stores finished results. Errors are logged by the engine and
// treated as misses.
type ResultCache interface {
	Get(ctx context.Context, q Query) (model.Result, bool, error)
	Put(ctx context.Context, q Query, r model.Result) error
}

type Outcome struct {
	Query    Query
	Rows     int
	Cached   bool
	Duration time.Duration
	Err      error
}

// Observer is told about every finished query. Implementations must not block.
type Observer interface {
	Observe(ctx context.Context, o Outcome)
}

type Runner interface {
	Run(ctx context.Context, q Query) (model.Result, error)
}

type Engine struct {
	ex        Extractor
	cache     ResultCache
	observers []Observer
	log       *slog.Logger
}

type Option func(*Engine)

func WithCache(c ResultCache) Option { return func(e *Engine) { e.cache = c } }

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

func New(ex Extractor, log *slog.Logger, opts ...Option) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{ex: ex, log: log}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Engine) Run(ctx context.Context, q Query) (res model.Result, err error) {
	start := time.Now()
	cached := false
	defer func() {
		d := time.Since(start)
		observability.ObserveExtraction(string(q.Request.Mode), err, res.Len(), d.Seconds())
		out := Outcome{Query: q, Rows: res.Len(), Cached: cached, Duration: d, Err: err}
		for _, o := range e.observers {
			o.Observe(ctx, out)
		}
	}()

	if err := q.Validate(); err != nil {
		return model.Result{}, err
	}
	if q.Granularity == "" {
		q.Granularity = model.Daily
	}

	if e.cache != nil {
		r, ok, cerr := e.cache.Get(ctx, q)
		switch {
		case cerr != nil:
			e.log.WarnContext(ctx, "cache get failed", "error", cerr)
		case ok:
			cached = true
			return r, nil
		}
	}

	res, err = e.compute(ctx, q)
	if err != nil {
		return model.Result{}, err
	}

	if e.cache != nil {
		if perr := e.cache.Put(ctx, q, res); perr != nil {
			e.log.WarnContext(ctx, "cache put failed", "error", perr)
		}
	}
	return res, nil
}

func (e *Engine) compute(ctx context.Context, q Query) (model.Result, error) {
	var primary, reference model.Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.ex.Extract(gctx, q.Request)
		if err != nil {
			return fmt.Errorf("primary window: %w", err)
		}
		primary = r
		return nil
	})
	if q.Reference != nil {
		refReq := q.Request
		refReq.Start, refReq.End = q.Reference.Start, q.Reference.End
		g.Go(func() error {
			r, err := e.ex.Extract(gctx, refReq)
			if err != nil {
				return fmt.Errorf("reference window: %w", err)
			}
			reference = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Result{}, err
	}

	primary, err := resample.Resample(primary, q.Granularity)
	if err != nil {
		return model.Result{}, err
	}
	if q.Reference == nil {
		if primary.Series != nil {
			primary.Series.Sort()
		}
		return primary, nil
	}

	reference, err = resample.Resample(reference, q.Granularity)
	if err != nil {
		return model.Result{}, err
	}
	merged, err := merge.Merge(reference, primary)
	if err != nil {
		return model.Result{}, err
	}
	merged.Series.Sort()
	return merged, nil
}
