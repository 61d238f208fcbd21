// Package metrics holds the Prometheus collectors for the ledger service.
// Every method is safe on a nil *Collector so components can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	ledgerSize      prometheus.Gauge
	operations      *prometheus.CounterVec
	storageFailures *prometheus.CounterVec
	remoteFailures  prometheus.Counter
	droppedMessages *prometheus.CounterVec
	pushConnections *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ledgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_records",
			Help:      "Number of records currently held in the deleted-contract ledger",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by kind and outcome",
		}, []string{"op", "result"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_write_failures_total",
			Help:      "Best-effort storage writes that failed",
		}, []string{"target"}),
		remoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_purge_failures_total",
			Help:      "Remote purge calls that failed or were rejected by the circuit breaker",
		}),
		droppedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_messages_dropped_total",
			Help:      "Inbound push records discarded as malformed",
		}, []string{"reason"}),
		pushConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_connections_total",
			Help:      "Push channel connection attempts by transport and outcome",
		}, []string{"transport", "result"}),
	}

	registry.MustRegister(
		c.ledgerSize,
		c.operations,
		c.storageFailures,
		c.remoteFailures,
		c.droppedMessages,
		c.pushConnections,
		prometheus.NewGoCollector(),
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) SetLedgerSize(n int) {
	if c == nil {
		return
	}
	c.ledgerSize.Set(float64(n))
}

func (c *Collector) Operation(op string, result string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(op, result).Inc()
}

func (c *Collector) StorageFailure(target string) {
	if c == nil {
		return
	}
	c.storageFailures.WithLabelValues(target).Inc()
}

func (c *Collector) RemoteFailure() {
	if c == nil {
		return
	}
	c.remoteFailures.Inc()
}

func (c *Collector) DroppedMessage(reason string) {
	if c == nil {
		return
	}
	c.droppedMessages.WithLabelValues(reason).Inc()
}

func (c *Collector) PushConnection(transport string, result string) {
	if c == nil {
		return
	}
	c.pushConnections.WithLabelValues(transport, result).Inc()
}
