package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveOperation("1000", "transfer_governor", "ok", time.Millisecond)
	m.IncrementInbound("2000", "set_governor", "accepted")
	m.IncrementInbound("2000", "set_governor", "rejected")
	m.IncrementOutbound("1000", "set_governor", "failed")
	m.SetGovernorDomain("2000", 3000)
	m.SetRecoveryActive("2000", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("1000", "transfer_governor", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("2000", "set_governor", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundMessages.WithLabelValues("1000", "set_governor", "failed")))
	assert.Equal(t, 3000.0, testutil.ToFloat64(m.GovernorDomain.WithLabelValues("2000")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecoveryActive.WithLabelValues("2000")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("1", "op", "ok", time.Second)
		m.IncrementInbound("1", "call", "accepted")
		m.SetRecoveryActive("1", false)
	})
}
