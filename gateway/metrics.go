package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's prometheus instruments. Construct with
// NewMetrics and attach via WithMetrics; a gateway without metrics skips
// instrumentation entirely.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Retries         prometheus.Counter
	RefreshTriggers prometheus.Counter
	AuthFailures    prometheus.Counter
}

// NewMetrics registers the gateway collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cartomap_gateway_requests_total",
			Help: "Backend responses observed by the gateway, by method and status.",
		}, []string{"method", "status"}),
		Retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "cartomap_gateway_retries_total",
			Help: "Transient failures replayed with backoff.",
		}),
		RefreshTriggers: factory.NewCounter(prometheus.CounterOpts{
			Name: "cartomap_gateway_refresh_triggers_total",
			Help: "Requests whose 401 triggered the token refresh path.",
		}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "cartomap_gateway_auth_failures_total",
			Help: "Requests that ended in an unrecoverable authentication failure.",
		}),
	}
}
