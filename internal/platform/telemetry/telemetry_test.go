package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestProvider_Counters(t *testing.T) {
	p := NewProvider("test", "1.0")

	p.Inc(CounterCommissionsRecorded)
	p.Inc(CounterCommissionsRecorded)
	p.Add(CounterTargetsRetired, 5)

	if got := p.Counter(CounterCommissionsRecorded); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := p.Counter(CounterTargetsRetired); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	if got := p.Counter("unknown"); got != 0 {
		t.Errorf("expected 0 for unknown counter, got %d", got)
	}
}

func TestProvider_Gauges(t *testing.T) {
	p := NewProvider("test", "1.0")

	p.SetGauge("active_targets", 12)
	if got := p.Gauge("active_targets"); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}

	p.SetGauge("active_targets", 7)
	if got := p.Gauge("active_targets"); got != 7 {
		t.Errorf("expected 7 after overwrite, got %d", got)
	}
}

func TestProvider_ConcurrentInc(t *testing.T) {
	p := NewProvider("test", "1.0")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Inc(CounterTargetIncrements)
			}
		}()
	}
	wg.Wait()

	if got := p.Counter(CounterTargetIncrements); got != 5000 {
		t.Errorf("expected 5000, got %d", got)
	}
}

func TestPrometheusHandler(t *testing.T) {
	p := NewProvider("incentive-server", "0.1.0")
	p.Inc(CounterSweepsRun)
	p.SetGauge("active_targets", 3)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := p.PrometheusHandler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`service_info{service="incentive-server",version="0.1.0"} 1`,
		"target_sweeps_total 1",
		"active_targets 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q\nbody:\n%s", want, body)
		}
	}
}

func TestMetricsMiddleware_CountsByStatusClass(t *testing.T) {
	p := NewProvider("test", "1.0")
	e := echo.New()

	handler := p.MetricsMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := `http_requests_total{method="GET",status="2xx"}`
	if got := p.Counter(key); got != 1 {
		t.Errorf("expected 1 for %s, got %d", key, got)
	}
}
