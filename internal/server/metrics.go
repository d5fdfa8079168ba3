package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsRegistry struct {
	registry         *prometheus.Registry
	transfersTotal   *prometheus.CounterVec
	completionsTotal *prometheus.CounterVec
	escrowBalance    *prometheus.GaugeVec
	volumeUSD        prometheus.Gauge
}

func newMetricsRegistry() *metricsRegistry {
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitrails_transfers_total",
		Help: "Transfer initiation attempts by outcome",
	}, []string{"status"})

	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "remitrails_completions_total",
		Help: "Operator completion attestations by outcome",
	}, []string{"outcome"})

	escrow := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "remitrails_escrow_balance",
		Help: "Net amount currently held in escrow per asset, smallest units",
	}, []string{"asset"})

	volume := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "remitrails_volume_usd",
		Help: "Cumulative USD volume at feed precision",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(transfers, completions, escrow, volume)

	return &metricsRegistry{
		registry:         r,
		transfersTotal:   transfers,
		completionsTotal: completions,
		escrowBalance:    escrow,
		volumeUSD:        volume,
	}
}

func (m *metricsRegistry) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsRegistry) incTransfer(status string) {
	m.transfersTotal.WithLabelValues(status).Inc()
}

func (m *metricsRegistry) incCompletion(outcome string) {
	m.completionsTotal.WithLabelValues(outcome).Inc()
}

func (m *metricsRegistry) setEscrow(asset string, balance float64) {
	m.escrowBalance.WithLabelValues(asset).Set(balance)
}

func (m *metricsRegistry) setVolumeUSD(volume float64) {
	m.volumeUSD.Set(volume)
}
