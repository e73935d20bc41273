package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mohammed-shakir/dggs-stac-export/internal/core/observability"
)

func scrape(t *testing.T, h http.Handler) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code, rr.Body.String()
}

func TestProvider_RegistersStandardAndPipelineCollectors(t *testing.T) {
	p, err := Init(Config{Enabled: true, Version: "test"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "smoke"})
	p.Register(g)
	g.Set(42)
	if n := testutil.CollectAndCount(g); n == 0 {
		t.Fatalf("expected at least 1 sample from test_gauge, got %d", n)
	}

	observability.IncZoneFetch(observability.ZoneOK)
	observability.ObserveUpstreamLatency("zones_list", 0.05)

	code, body := scrape(t, p.Handler())
	if code != http.StatusOK {
		t.Fatalf("status=%d want 200", code)
	}
	for _, want := range []string{
		"go_goroutines",
		`app_build_info{version="test"} 1`,
		`dggs_zone_fetch_total{outcome="ok"}`,
		`dggs_upstream_latency_seconds_count{endpoint="zones_list"}`,
		"test_gauge 42",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("payload missing %q; got:\n%s", want, body)
		}
	}
}

func TestProvider_DisabledServesNotFound(t *testing.T) {
	p, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if code, _ := scrape(t, p.Handler()); code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", code)
	}
}
