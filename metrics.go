package bproxy

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records dispatch outcomes in Prometheus collectors.
type Metrics struct {
	responses *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "bproxy_responses_total", Help: "proxy responses by method and status code"},
			[]string{"method", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bproxy_dispatch_duration_seconds",
				Help:    "time spent producing a proxy response",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"method"},
		),
	}

	for _, c := range []prometheus.Collector{m.responses, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}

	return m, nil
}

// Middleware observes every response produced by the wrapped invoker.
func (m *Metrics) Middleware() Middleware {
	return func(next Invoker) Invoker {
		return InvokerFunc(func(ctx context.Context, req *Request) Response {
			start := time.Now()
			resp := next.HandleRequest(ctx, req)

			method := strings.ToLower(req.HTTPMethod)
			m.responses.WithLabelValues(method, strconv.Itoa(resp.StatusCode())).Inc()
			m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())

			return resp
		})
	}
}
