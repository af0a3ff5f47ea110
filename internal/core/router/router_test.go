package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/emission-explorer/internal/core/model"
	"github.com/mohammed-shakir/emission-explorer/internal/extract"
	"github.com/mohammed-shakir/emission-explorer/internal/geo"
	"github.com/mohammed-shakir/emission-explorer/internal/pipeline"
	"github.com/mohammed-shakir/emission-explorer/internal/regions"
	"github.com/mohammed-shakir/emission-explorer/internal/store/memstore"
)

const unitSquare = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seeded(opts ...memstore.Option) *memstore.Store {
	st := memstore.New(opts...)
	for d := 1; d <= 2; d++ {
		day := time.Date(2020, 6, d, 0, 0, 0, 0, time.UTC)
		st.Add(
			model.PointRecord{Date: day, Point: geo.Point{X: 0.1, Y: 0.1}, Value: 10, Variable: model.CO2Fire},
			model.PointRecord{Date: day, Point: geo.Point{X: 0.6, Y: 0.6}, Value: 5, Variable: model.CO2Fire},
			model.PointRecord{Date: day, Point: geo.Point{X: 5, Y: 5}, Value: 1000, Variable: model.CO2Fire},
		)
	}
	return st
}

func server(t *testing.T, st *memstore.Store) *httptest.Server {
	t.Helper()
	cat, err := regions.New([]regions.Region{{Name: "Square", Area: geo.Box(0, 0, 1, 1)}})
	if err != nil {
		t.Fatalf("regions.New: %v", err)
	}
	eng := pipeline.New(extract.New(st, discard()), discard())
	api := New(eng, cat, Defaults{}, discard())

	r := chi.NewRouter()
	api.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, q url.Values) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(srv.URL + path + "?" + q.Encode())
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, b
}

func seriesParams() url.Values {
	q := url.Values{}
	q.Set("variable", "co2fire")
	q.Set("start", "01-06-2020")
	q.Set("end", "02-06-2020")
	q.Set("polygon", unitSquare)
	q.Set("keep_separate_dates", "true")
	return q
}

func TestSeries_JSON(t *testing.T) {
	srv := server(t, seeded())
	resp, body := get(t, srv, "/v1/series", seriesParams())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type=%q", ct)
	}
	var out struct {
		Index   []string             `json:"index"`
		Columns map[string][]float64 `json:"columns"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	col := out.Columns["01/06/2020 - 02/06/2020"]
	if len(out.Index) != 2 || len(col) != 2 || col[0] != 15 || col[1] != 15 {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestSeries_RegionEqualsPolygon(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Del("polygon")
	q.Set("region", "square")
	resp, body := get(t, srv, "/v1/series", q)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "[15,15]") {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}

	q.Set("region", "Atlantis")
	resp, _ = get(t, srv, "/v1/series", q)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown region status=%d", resp.StatusCode)
	}
}

func TestSeries_ReversedWindowRejectedBeforeStore(t *testing.T) {
	st := seeded()
	srv := server(t, st)
	q := seriesParams()
	q.Set("start", "01-01-2020")
	q.Set("end", "31-01-2019")
	resp, body := get(t, srv, "/v1/series", q)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	if st.Acquisitions() != 0 {
		t.Fatalf("store touched %d times", st.Acquisitions())
	}
}

func TestSeries_ConnectionFailureIs503(t *testing.T) {
	srv := server(t, seeded(memstore.WithAcquireError(errors.New("db down"))))
	resp, body := get(t, srv, "/v1/series", seriesParams())
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestSeries_CSV(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Set("outputFormat", "csv")
	resp, body := get(t, srv, "/v1/series", q)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 3 || lines[1] != "2020-06-01,15" {
		t.Fatalf("csv=%q", lines)
	}
}

func TestSeries_GeoJSONRejected(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Set("outputFormat", "geojson")
	resp, _ := get(t, srv, "/v1/series", q)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestGrid_GeoJSON(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Set("keep_separate_dates", "false")
	q.Set("resolution", "0.5")
	q.Set("outputFormat", "geojson")
	resp, body := get(t, srv, "/v1/grid", q)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(body, &fc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features=%d want 2: %s", len(fc.Features), body)
	}
	if resp.Header.Get("X-Result-Rows") != "2" {
		t.Fatalf("X-Result-Rows=%q", resp.Header.Get("X-Result-Rows"))
	}
}

func TestGrid_ReferenceRejected(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Set("reference_start", "01-06-2019")
	q.Set("reference_end", "02-06-2019")
	resp, _ := get(t, srv, "/v1/grid", q)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestVariables(t *testing.T) {
	srv := server(t, seeded())
	resp, body := get(t, srv, "/v1/variables", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out struct {
		Variables []variableInfo `json:"variables"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Variables) != 12 || out.Variables[10].Unit != "W" {
		t.Fatalf("variables=%+v", out.Variables)
	}
}

func TestRegions(t *testing.T) {
	srv := server(t, seeded())
	resp, body := get(t, srv, "/v1/regions", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var out struct {
		Regions    []string `json:"regions"`
		Continents []string `json:"continents"`
		Separator  string   `json:"separator"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Regions) != 1 || out.Regions[0] != "Square" || out.Continents == nil || out.Separator != "+" {
		t.Fatalf("body=%s", body)
	}

	rec := httptest.NewRecorder()
	New(nil, nil, Defaults{}, discard()).Regions(rec, httptest.NewRequest(http.MethodGet, "/v1/regions", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"regions":[]`) {
		t.Fatalf("no catalogue: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestParseQuery_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(url.Values)
		is   error
	}{
		{"missing variable", func(q url.Values) { q.Del("variable") }, model.ErrUnknownVariable},
		{"bad operator", func(q url.Values) { q.Set("operator", "mode") }, model.ErrUnsupportedMode},
		{"no geometry", func(q url.Values) { q.Del("polygon") }, model.ErrInvalidGeometry},
		{"both geometries", func(q url.Values) { q.Set("region", "Square") }, model.ErrInvalidGeometry},
		{"bad polygon", func(q url.Values) { q.Set("polygon", `{"type":"Point"}`) }, model.ErrInvalidGeometry},
		{"bad granularity", func(q url.Values) { q.Set("granularity", "hourly") }, model.ErrUnsupportedMode},
		{"half reference", func(q url.Values) { q.Set("reference_start", "01-01-2019") }, model.ErrInvalidWindow},
		{"bad date", func(q url.Values) { q.Set("start", "2020-06-01") }, model.ErrInvalidWindow},
	}
	for _, tc := range cases {
		q := seriesParams()
		tc.mut(q)
		_, err := ParseQuery(q, model.ModeScalar, nil, Defaults{Resolution: 0.1, H3Res: 5})
		if !errors.Is(err, tc.is) {
			t.Fatalf("%s: err=%v want %v", tc.name, err, tc.is)
		}
	}
}

func TestParseQuery_GridDefaults(t *testing.T) {
	q := seriesParams()
	q.Set("grid", "H3")
	got, err := ParseQuery(q, model.ModeGridded, nil, Defaults{Resolution: 0.25, H3Res: 6})
	if err != nil {
		t.Fatalf("ParseQuery: %v", err)
	}
	r := got.Request
	if r.Grid != model.GridH3 || r.H3Res != 6 || r.Resolution != 0.25 || r.Operator != "sum" {
		t.Fatalf("request=%+v", r)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{model.ErrInvalidWindow, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", model.ErrResolution), http.StatusBadRequest},
		{&regions.ResolutionError{Name: "Georgia", Matches: 2}, http.StatusBadRequest},
		{fmt.Errorf("x: %w", model.ErrConnectionFailure), http.StatusServiceUnavailable},
		{errors.New("surprise"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := StatusFor(tc.err); got != tc.want {
			t.Fatalf("StatusFor(%v)=%d want %d", tc.err, got, tc.want)
		}
	}
}

func TestProfile_DayOfYearQuantiles(t *testing.T) {
	srv := server(t, seeded())
	q := seriesParams()
	q.Set("keep_separate_dates", "false")
	q.Set("granularity", "monthly")
	q.Set("quantiles", "0.5,1")
	resp, body := get(t, srv, "/v1/profile", q)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
	var out struct {
		Index   []string             `json:"index"`
		Columns map[string][]float64 `json:"columns"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v\n%s", err, body)
	}
	if len(out.Index) != 2 || len(out.Columns) != 2 {
		t.Fatalf("unexpected body: %s", body)
	}
	for _, name := range []string{"0.5", "1"} {
		col := out.Columns[name]
		if len(col) != 2 || col[0] != 15 || col[1] != 15 {
			t.Fatalf("column %s: %v", name, col)
		}
	}

	q.Set("quantiles", "2")
	resp, body = get(t, srv, "/v1/profile", q)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestProfile_BadQuantilesRejectedBeforeStore(t *testing.T) {
	for _, qs := range []string{"abc", "2", "0.5,-0.1", "NaN"} {
		st := seeded()
		srv := server(t, st)
		q := seriesParams()
		q.Set("quantiles", qs)
		resp, body := get(t, srv, "/v1/profile", q)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("quantiles=%s status=%d body=%s", qs, resp.StatusCode, body)
		}
		if st.Acquisitions() != 0 {
			t.Fatalf("quantiles=%s: store touched %d times", qs, st.Acquisitions())
		}
	}
}
