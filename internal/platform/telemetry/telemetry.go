// Package telemetry provides lightweight in-process metrics for the
// incentive engine -- counters and gauges with a Prometheus text exposition
// endpoint -- using only standard library constructs.
package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Provider collects engine metrics. All methods are safe for concurrent use.
type Provider struct {
	serviceName    string
	serviceVersion string
	startedAt      time.Time

	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]int64
}

func NewProvider(serviceName, serviceVersion string) *Provider {
	if serviceName == "" {
		serviceName = "incentive-server"
	}
	if serviceVersion == "" {
		serviceVersion = "0.0.0"
	}
	return &Provider{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		startedAt:      time.Now(),
		counters:       make(map[string]int64),
		gauges:         make(map[string]int64),
	}
}

// Counter names used across the engine.
const (
	CounterCommissionsRecorded   = "commissions_recorded_total"
	CounterCommissionsDuplicate  = "commissions_duplicate_total"
	CounterTargetsCompleted      = "targets_completed_total"
	CounterTargetIncrements      = "target_increments_total"
	CounterSweepsRun             = "target_sweeps_total"
	CounterTargetsRetired        = "targets_retired_total"
	CounterHTTPRequests          = "http_requests_total"
)

// Inc increments the named counter by 1.
func (p *Provider) Inc(name string) {
	p.Add(name, 1)
}

// Add increments the named counter by delta.
func (p *Provider) Add(name string, delta int64) {
	p.mu.Lock()
	p.counters[name] += delta
	p.mu.Unlock()
}

// Counter returns the current value of the named counter.
func (p *Provider) Counter(name string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[name]
}

// SetGauge sets the named gauge to val.
func (p *Provider) SetGauge(name string, val int64) {
	p.mu.Lock()
	p.gauges[name] = val
	p.mu.Unlock()
}

// Gauge returns the current value of the named gauge.
func (p *Provider) Gauge(name string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gauges[name]
}

// MetricsMiddleware counts requests by method and status class.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			key := fmt.Sprintf("%s{method=%q,status=%q}",
				CounterHTTPRequests, c.Request().Method, statusClass(status))
			p.Add(key, 1)

			return err
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// PrometheusHandler returns the /metrics endpoint in Prometheus text
// exposition format.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		fmt.Fprintf(&b, "# HELP service_info Service metadata.\n")
		fmt.Fprintf(&b, "# TYPE service_info gauge\n")
		fmt.Fprintf(&b, "service_info{service=%q,version=%q} 1\n",
			p.serviceName, p.serviceVersion)

		fmt.Fprintf(&b, "# HELP service_uptime_seconds Seconds since process start.\n")
		fmt.Fprintf(&b, "# TYPE service_uptime_seconds gauge\n")
		fmt.Fprintf(&b, "service_uptime_seconds %.0f\n", time.Since(p.startedAt).Seconds())

		p.mu.RLock()
		counterNames := make([]string, 0, len(p.counters))
		for name := range p.counters {
			counterNames = append(counterNames, name)
		}
		sort.Strings(counterNames)
		for _, name := range counterNames {
			fmt.Fprintf(&b, "%s %d\n", name, p.counters[name])
		}

		gaugeNames := make([]string, 0, len(p.gauges))
		for name := range p.gauges {
			gaugeNames = append(gaugeNames, name)
		}
		sort.Strings(gaugeNames)
		for _, name := range gaugeNames {
			fmt.Fprintf(&b, "%s %d\n", name, p.gauges[name])
		}
		p.mu.RUnlock()

		return c.String(http.StatusOK, b.String())
	}
}
