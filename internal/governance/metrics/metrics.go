package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for governance routers.
// Every series is labelled with the observing router's domain.
type Metrics struct {
	// Local entry point outcomes by operation and result (ok, denied, error)
	Operations *prometheus.CounterVec

	// Inbound envelopes by action kind and result (accepted, rejected)
	InboundMessages *prometheus.CounterVec

	// Outbound envelopes by action kind and result (sent, failed)
	OutboundMessages *prometheus.CounterVec

	// Governor transfers committed locally, by how they were applied (local, message)
	GovernorTransfers *prometheus.CounterVec

	// Current governor domain as seen by each router
	GovernorDomain *prometheus.GaugeVec

	// 1 while the recovery manager holds local authority
	RecoveryActive *prometheus.GaugeVec

	// Latency of local entry points including outbound sends
	OperationLatency *prometheus.HistogramVec
}

// New creates Metrics registered with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govnet_router_operations_total",
			Help: "Local governance entry point calls by operation and result",
		}, []string{"domain", "operation", "result"}),

		InboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govnet_router_inbound_messages_total",
			Help: "Inbound governance envelopes by action kind and result",
		}, []string{"domain", "kind", "result"}),

		OutboundMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govnet_router_outbound_messages_total",
			Help: "Outbound governance envelopes by action kind and result",
		}, []string{"domain", "kind", "result"}),

		GovernorTransfers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "govnet_router_governor_transfers_total",
			Help: "Governor transfers applied by this router",
		}, []string{"domain", "source"}),

		GovernorDomain: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "govnet_router_governor_domain",
			Help: "Governor domain currently recognised by this router",
		}, []string{"domain"}),

		RecoveryActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "govnet_router_recovery_active",
			Help: "1 while the recovery manager holds local authority",
		}, []string{"domain"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govnet_router_operation_duration_seconds",
			Help:    "Duration of local governance entry points",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"domain", "operation"}),
	}
}

// ObserveOperation records the result and latency of a local entry point.
func (m *Metrics) ObserveOperation(domain, operation, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(domain, operation, result).Inc()
	m.OperationLatency.WithLabelValues(domain, operation).Observe(d.Seconds())
}

func (m *Metrics) IncrementInbound(domain, kind, result string) {
	if m != nil {
		m.InboundMessages.WithLabelValues(domain, kind, result).Inc()
	}
}

func (m *Metrics) IncrementOutbound(domain, kind, result string) {
	if m != nil {
		m.OutboundMessages.WithLabelValues(domain, kind, result).Inc()
	}
}

func (m *Metrics) IncrementGovernorTransfer(domain, source string) {
	if m != nil {
		m.GovernorTransfers.WithLabelValues(domain, source).Inc()
	}
}

// SetGovernorDomain publishes the governor domain a router recognises.
func (m *Metrics) SetGovernorDomain(domain string, governor uint32) {
	if m != nil {
		m.GovernorDomain.WithLabelValues(domain).Set(float64(governor))
	}
}

func (m *Metrics) SetRecoveryActive(domain string, active bool) {
	if m == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	m.RecoveryActive.WithLabelValues(domain).Set(v)
}
