// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

// Collector gathers the session lifecycle metrics.
type Collector struct {
	logins        *prometheus.CounterVec
	logouts       *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewCollector registers the session metrics on the given registry.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestia_logins_total",
			Help: "Successful logins by method.",
		}, []string{"method"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gestia_logouts_total",
			Help: "Logouts by kind (explicit, forced) and reason.",
		}, []string{"kind", "reason"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gestia_session_authenticated",
			Help: "1 while the session manager is in the authenticated state.",
		}),
	}

	reg.MustRegister(c.logins, c.logouts, c.authenticated)
	return c
}

// RecordLogin counts a successful login. method is "password" or "oauth".
func (c *Collector) RecordLogin(method string) {
	c.logins.WithLabelValues(method).Inc()
}

// RecordLogout counts a logout by kind and reason.
func (c *Collector) RecordLogout(kind, reason string) {
	c.logouts.WithLabelValues(kind, reason).Inc()
}

// SetAuthenticated tracks the session manager state.
func (c *Collector) SetAuthenticated(authenticated bool) {
	if authenticated {
		c.authenticated.Set(1)
	} else {
		c.authenticated.Set(0)
	}
}

// Handler exposes the registry in Prometheus text format.
func Handler(reg *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
