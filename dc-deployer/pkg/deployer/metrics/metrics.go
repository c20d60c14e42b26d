package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/ethereum/go-ethereum/core/types"
)

const Namespace = "dc_deployer"

// Metrics tracks the transactions of a single deployer run. The run is a
// batch job, so the registry is pushed to a Pushgateway once it finishes
// instead of being scraped.
type Metrics struct {
	registry *prometheus.Registry

	txTotal   *prometheus.CounterVec
	txGasUsed *prometheus.HistogramVec
	info      *prometheus.GaugeVec
}

func NewMetrics(network string) *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transactions_total",
			Help:      "Number of transactions sent, by call label and status",
		}, []string{"label", "status"}),
		txGasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "transaction_gas_used",
			Help:      "Gas used by confirmed transactions",
			Buckets:   prometheus.ExponentialBuckets(21_000, 2, 10),
		}, []string{"label"}),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "info",
			Help:      "Network the deployer ran against",
		}, []string{"network"}),
	}
	registry.MustRegister(m.txTotal, m.txGasUsed, m.info)
	m.info.WithLabelValues(network).Set(1)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordTx(label string, receipt *types.Receipt, err error) {
	status := "success"
	switch {
	case err != nil && receipt != nil:
		status = "reverted"
	case err != nil:
		status = "failed"
	}
	m.txTotal.WithLabelValues(label, status).Inc()
	if receipt != nil {
		m.txGasUsed.WithLabelValues(label).Observe(float64(receipt.GasUsed))
	}
}

// Push sends the collected metrics to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url string, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
