package mcpgateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vikashloomba/mcp-openapi-proxy/pkg/mcpmgr"
)

var nodeStates = []mcpmgr.State{
	mcpmgr.StateUnstarted,
	mcpmgr.StateConnecting,
	mcpmgr.StateReady,
	mcpmgr.StateClosing,
	mcpmgr.StateClosed,
	mcpmgr.StateFailed,
}

type metrics struct {
	registry  *prometheus.Registry
	calls     *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	state     *prometheus.GaugeVec
	endpoints *prometheus.GaugeVec
}

func newMetrics(reg *prometheus.Registry) *metrics {
	m := &metrics{
		registry: reg,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcp_openapi_proxy_tool_calls_total",
				Help: "Tool invocations by server, tool and outcome.",
			},
			[]string{"server", "tool", "outcome"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcp_openapi_proxy_tool_call_duration_seconds",
				Help:    "Tool invocation latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"server", "tool"},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcp_openapi_proxy_server_state",
				Help: "1 for the lifecycle state each tool server is currently in.",
			},
			[]string{"server", "state"},
		),
		endpoints: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mcp_openapi_proxy_server_endpoints",
				Help: "Tool endpoints currently bound per server.",
			},
			[]string{"server"},
		),
	}
	reg.MustRegister(m.calls, m.latency, m.state, m.endpoints)
	return m
}

func (m *metrics) observeCall(server, tool, outcome string, elapsed time.Duration) {
	m.calls.WithLabelValues(server, tool, outcome).Inc()
	m.latency.WithLabelValues(server, tool).Observe(elapsed.Seconds())
}

func (m *metrics) setState(server string, current mcpmgr.State) {
	for _, s := range nodeStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(server, string(s)).Set(v)
	}
}

func (m *metrics) setEndpoints(server string, n int) {
	m.endpoints.WithLabelValues(server).Set(float64(n))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
