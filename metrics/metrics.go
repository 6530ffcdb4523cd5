// Package metrics exposes Prometheus counters for token acquisition and
// management API traffic. A nil *Recorder is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "azure_status_web"

// Exchange outcomes
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder owns a private registry so tests can build as many as they like.
type Recorder struct {
	registry        *prometheus.Registry
	tokenExchanges  *prometheus.CounterVec
	tokenCacheHits  prometheus.Counter
	failOpen        prometheus.Counter
	managementCalls *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "exchanges_total",
			Help:      "Token exchanges against the identity provider, by result.",
		}, []string{"result"}),
		tokenCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "cache_hits_total",
			Help:      "Access token requests served from the cache.",
		}),
		failOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interceptor",
			Name:      "fail_open_total",
			Help:      "Outbound requests forwarded without a bearer token after acquisition failed.",
		}),
		managementCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "management",
			Name:      "requests_total",
			Help:      "Management API operations, by operation and HTTP status (0 for transport errors).",
		}, []string{"operation", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.tokenExchanges,
		r.tokenCacheHits,
		r.failOpen,
		r.managementCalls,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// TokenExchange counts one exchange with the given result.
func (r *Recorder) TokenExchange(result string) {
	if r == nil {
		return
	}
	r.tokenExchanges.WithLabelValues(result).Inc()
}

// TokenCacheHit counts a token served without an exchange.
func (r *Recorder) TokenCacheHit() {
	if r == nil {
		return
	}
	r.tokenCacheHits.Inc()
}

// InterceptorFailOpen counts a request forwarded without a token.
func (r *Recorder) InterceptorFailOpen() {
	if r == nil {
		return
	}
	r.failOpen.Inc()
}

// ManagementCall counts a management API operation.
func (r *Recorder) ManagementCall(operation string, status int) {
	if r == nil {
		return
	}
	r.managementCalls.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}
