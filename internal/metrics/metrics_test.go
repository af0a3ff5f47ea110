package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p.Path(), nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	return rr.Body.String()
}

func TestProvider_RuntimeCollectorsAndBuildInfo(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "1.2.0", Revision: "abc123", Branch: "main", BuildDate: "2026-10-01"}})
	body := scrape(t, p)

	for _, want := range []string{
		"go_goroutines",
		`app_build_info{branch="main",build_date="2026-10-01",revision="abc123",version="1.2.0"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in payload; got:\n%s", want, body)
		}
	}
	if !strings.Contains(body, "process_start_time_seconds") && !strings.Contains(body, "process_cpu_seconds_total") {
		t.Fatalf("expected process_* metrics in payload")
	}
}

func TestProvider_VersionDefaultsToDev(t *testing.T) {
	p := Init(Config{})
	if !strings.Contains(scrape(t, p), `version="dev"`) {
		t.Fatalf("expected dev version label")
	}
}

func TestProvider_RegisterAndScrapeCount(t *testing.T) {
	p := Init(Config{Enabled: true})
	rows := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_rows_total", Help: "rows"})
	p.Register(rows)
	rows.Add(31)

	if got := testutil.ToFloat64(rows); got != 31 {
		t.Fatalf("rows=%v", got)
	}
	scrape(t, p)
	body := scrape(t, p)
	if !strings.Contains(body, "test_rows_total 31") {
		t.Fatalf("registered counter missing:\n%s", body)
	}
	if !strings.Contains(body, `promhttp_metric_handler_requests_total{code="200"} 1`) {
		t.Fatalf("handler self-instrumentation missing:\n%s", body)
	}
}

func TestProvider_DefaultsPath(t *testing.T) {
	p := Init(Config{Enabled: true})
	if !p.Enabled() || p.Path() != "/metrics" {
		t.Fatalf("enabled=%v path=%q", p.Enabled(), p.Path())
	}
	p = Init(Config{Path: "/internal/metrics"})
	if p.Enabled() || p.Path() != "/internal/metrics" {
		t.Fatalf("enabled=%v path=%q", p.Enabled(), p.Path())
	}
}
