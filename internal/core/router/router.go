// Package router exposes the query pipeline over HTTP.
package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/emission-explorer/internal/aggregate"
	"github.com/mohammed-shakir/emission-explorer/internal/composer"
	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	mylog "github.com/mohammed-shakir/emission-explorer/internal/logger"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
	"github.com/mohammed-shakir/emission-explorer/internal/regions"
	"github.com/mohammed-shakir/emission-explorer/internal/resample"
)

// DefaultH3Res is the H3 resolution used when a gridded request names none.
const DefaultH3Res = 5

type Defaults struct {
	Resolution float64
	H3Res      int
}

type API struct {
	runner   pipeline.Runner
	regions  regions.Resolver
	defaults Defaults
	log      *slog.Logger
}

func New(runner pipeline.Runner, resolver regions.Resolver, defaults Defaults, log *slog.Logger) *API {
	if log == nil {
		log = slog.Default()
	}
	if defaults.Resolution <= 0 {
		defaults.Resolution = model.DefaultResolution
	}
	if defaults.H3Res <= 0 {
		defaults.H3Res = DefaultH3Res
	}
	return &API{runner: runner, regions: resolver, defaults: defaults, log: log}
}

func (a *API) Routes(r chi.Router) {
	r.Get("/v1/series", a.handle("/v1/series", model.ModeScalar, nil, nil))
	r.Get("/v1/grid", a.handle("/v1/grid", model.ModeGridded, nil, nil))
	r.Get("/v1/profile", a.handle("/v1/profile", model.ModeScalar, profileParams, profilePlan))
	r.Get("/v1/variables", a.Variables)
	r.Get("/v1/regions", a.Regions)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// prepFn rewrites query parameters before parsing. planFn validates the
// route's extra parameters before the store is touched and returns the postFn
// that reshapes the pipeline result before encoding.
type (
	prepFn func(url.Values) url.Values
	planFn func(url.Values) (postFn, error)
	postFn func(model.Result) (model.Result, error)
)

func (a *API) handle(route string, mode model.Mode, prep prepFn, plan planFn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		params := r.URL.Query()
		if prep != nil {
			params = prep(params)
		}
		q, err := ParseQuery(params, mode, a.regions, a.defaults)
		if err != nil {
			a.fail(sw, r, err)
			return
		}
		neg, err := composer.NegotiateFormat(composer.NegotiationInput{
			AcceptHeader: r.Header.Get("Accept"),
			OutputFormat: params.Get("outputFormat"),
			Gridded:      mode == model.ModeGridded,
		})
		if err != nil {
			a.fail(sw, r, err)
			return
		}
		var post postFn
		if plan != nil {
			if post, err = plan(params); err != nil {
				a.fail(sw, r, err)
				return
			}
		}

		ctx := mylog.WithVariable(r.Context(), q.Request.Variable.Field())
		res, err := a.runner.Run(ctx, q)
		if err == nil && post != nil {
			res, err = post(res)
		}
		if err != nil {
			a.fail(sw, r.WithContext(ctx), err)
			return
		}

		var buf bytes.Buffer
		if err := composer.Encode(&buf, neg.Format, res); err != nil {
			a.fail(sw, r.WithContext(ctx), fmt.Errorf("encode %s: %w", neg.Format, err))
			return
		}
		sw.Header().Set("Content-Type", neg.ContentType)
		sw.Header().Set("X-Result-Rows", strconv.Itoa(res.Len()))
		sw.WriteHeader(http.StatusOK)
		_, _ = sw.Write(buf.Bytes())
	}
}

// profileParams forces a daily series without climatology collapse or a
// reference period, since the profile needs every observed day.
func profileParams(v url.Values) url.Values {
	out := url.Values{}
	for k, vals := range v {
		out[k] = vals
	}
	out.Set("keep_separate_dates", "true")
	out.Del("granularity")
	out.Del("reference_start")
	out.Del("reference_end")
	return out
}

func profilePlan(v url.Values) (postFn, error) {
	qs, err := parseQuantiles(v.Get("quantiles"))
	if err != nil {
		return nil, err
	}
	return func(res model.Result) (model.Result, error) {
		if res.Series.Empty() || len(res.Series.Columns) == 0 {
			return model.EmptyResult(model.ModeScalar), nil
		}
		s, err := resample.DayOfYearQuantiles(res.Series, res.Series.Columns[0].Name, qs)
		if err != nil {
			return model.Result{}, fmt.Errorf("%w: %w", model.ErrUnsupportedMode, err)
		}
		return model.Result{Mode: model.ModeScalar, Series: s}, nil
	}, nil
}

func parseQuantiles(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return resample.DefaultQuantiles, nil
	}
	var out []float64
	for p := range strings.SplitSeq(s, ",") {
		q, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: quantiles: %w", model.ErrUnsupportedMode, err)
		}
		if !(q >= 0 && q <= 1) {
			return nil, fmt.Errorf("%w: quantile %v outside [0,1]", model.ErrUnsupportedMode, q)
		}
		out = append(out, q)
	}
	return out, nil
}

type variableInfo struct {
	Field   string `json:"field"`
	Display string `json:"display"`
	Table   string `json:"table"`
	Unit    string `json:"unit"`
}

func (a *API) Variables(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out := struct {
		Variables []variableInfo       `json:"variables"`
		Operators []aggregate.Operator `json:"operators"`
		Modes     []model.Mode         `json:"modes"`
		Grids     []model.GridKind     `json:"grids"`
		Granular  []model.Granularity  `json:"granularities"`
	}{
		Operators: aggregate.Operators(),
		Modes:     []model.Mode{model.ModeScalar, model.ModeGridded},
		Grids:     []model.GridKind{model.GridSquare, model.GridH3},
		Granular:  []model.Granularity{model.Daily, model.Weekly, model.Monthly},
	}
	for _, v := range model.Variables() {
		i := v.Info()
		out.Variables = append(out.Variables, variableInfo{Field: i.Field, Display: i.Display, Table: i.Table, Unit: i.Unit})
	}
	w.Header().Set("Content-Type", composer.ContentTypeJSON)
	_ = json.NewEncoder(w).Encode(out)
	observability.ObserveHTTP(r.Method, "/v1/variables", http.StatusOK, time.Since(start).Seconds())
}

// Regions lists the region and continent names accepted by the region
// parameter. Both lists are empty when no catalogue is loaded.
func (a *API) Regions(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	out := struct {
		Regions    []string `json:"regions"`
		Continents []string `json:"continents"`
		Separator  string   `json:"separator"`
	}{Regions: []string{}, Continents: []string{}, Separator: regions.UnionSep}
	if l, ok := a.regions.(regions.Lister); ok {
		out.Regions = append(out.Regions, l.Names()...)
		out.Continents = append(out.Continents, l.Continents()...)
	}
	w.Header().Set("Content-Type", composer.ContentTypeJSON)
	_ = json.NewEncoder(w).Encode(out)
	observability.ObserveHTTP(r.Method, "/v1/regions", http.StatusOK, time.Since(start).Seconds())
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidWindow),
		errors.Is(err, model.ErrUnsupportedMode),
		errors.Is(err, model.ErrInvalidGeometry),
		errors.Is(err, model.ErrResolution),
		errors.Is(err, model.ErrUnknownVariable):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConnectionFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "query failed", "status", code, "err", err)
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		a.log.DebugContext(r.Context(), "query rejected", "status", code, "err", err)
	}
	w.Header().Set("Content-Type", composer.ContentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error     string `json:"error"`
		RequestID string `json:"request_id,omitempty"`
	}{Error: msg, RequestID: mylog.RequestID(r.Context())})
}

// ParseQuery validates query parameters into a pipeline query. Geometry comes
// from either a GeoJSON polygon or region names resolved through res.
func ParseQuery(v url.Values, mode model.Mode, res regions.Resolver, d Defaults) (pipeline.Query, error) {
	get := func(k string) string { return strings.TrimSpace(v.Get(k)) }

	w, err := model.ParseWindow(get("start"), get("end"))
	if err != nil {
		return pipeline.Query{}, err
	}
	if get("variable") == "" {
		return pipeline.Query{}, fmt.Errorf("%w: missing required parameter: variable", model.ErrUnknownVariable)
	}
	variable, err := model.ParseVariable(get("variable"))
	if err != nil {
		return pipeline.Query{}, err
	}
	op, err := aggregate.ParseOperator(get("operator"))
	if err != nil {
		return pipeline.Query{}, fmt.Errorf("%w: %w", model.ErrUnsupportedMode, err)
	}
	area, err := parseArea(get("polygon"), get("region"), res)
	if err != nil {
		return pipeline.Query{}, err
	}
	gran, err := model.ParseGranularity(get("granularity"))
	if err != nil {
		return pipeline.Query{}, err
	}
	keep, err := parseBool(get("keep_separate_dates"))
	if err != nil {
		return pipeline.Query{}, fmt.Errorf("%w: keep_separate_dates: %w", model.ErrUnsupportedMode, err)
	}

	req := model.AggregationRequest{
		Variable:          variable,
		Start:             w.Start,
		End:               w.End,
		Area:              area,
		Operator:          op,
		Mode:              mode,
		KeepSeparateDates: keep,
	}
	if mode == model.ModeGridded {
		if err := parseGrid(v, d, &req); err != nil {
			return pipeline.Query{}, err
		}
	}

	q := pipeline.Query{Request: req, Granularity: gran}
	rs, re := get("reference_start"), get("reference_end")
	switch {
	case rs == "" && re == "":
	case rs == "" || re == "":
		return pipeline.Query{}, fmt.Errorf("%w: reference_start and reference_end go together", model.ErrInvalidWindow)
	default:
		ref, err := model.ParseWindow(rs, re)
		if err != nil {
			return pipeline.Query{}, fmt.Errorf("reference period: %w", err)
		}
		q.Reference = &ref
	}
	return q, q.Validate()
}

func parseArea(polygon, region string, res regions.Resolver) (geo.MultiPolygon, error) {
	switch {
	case polygon != "" && region != "":
		return nil, fmt.Errorf("%w: polygon and region are mutually exclusive", model.ErrInvalidGeometry)
	case polygon != "":
		mp, err := geo.ParseGeoJSON([]byte(polygon))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidGeometry, err)
		}
		return mp, nil
	case region != "":
		if res == nil {
			return nil, fmt.Errorf("%w: no region catalogue loaded", model.ErrResolution)
		}
		return res.Resolve(region)
	default:
		return nil, fmt.Errorf("%w: one of polygon or region is required", model.ErrInvalidGeometry)
	}
}

func parseGrid(v url.Values, d Defaults, req *model.AggregationRequest) error {
	req.Grid = model.GridKind(strings.ToLower(strings.TrimSpace(v.Get("grid"))))
	if req.Grid == "" {
		req.Grid = model.GridSquare
	}
	req.Resolution = d.Resolution
	req.H3Res = d.H3Res
	if s := strings.TrimSpace(v.Get("resolution")); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: resolution: %w", model.ErrUnsupportedMode, err)
		}
		req.Resolution = f
	}
	if s := strings.TrimSpace(v.Get("h3_res")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: h3_res: %w", model.ErrUnsupportedMode, err)
		}
		req.H3Res = n
	}
	return nil
}

func parseBool(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
