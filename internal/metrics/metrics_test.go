package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCreated(0.01)
	m.RecordRejected("insufficient_stock")
	m.RecordRejected("insufficient_stock")
	m.RecordTransition("PAID")
	m.RecordDeadLettered("dispatch")
	m.RecordSaleTransitions("ACTIVE", 3)
	m.RecordSaleTransitions("COMPLETED", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreatedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OrdersRejectedTotal.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrderTransitionTotal.WithLabelValues("PAID")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesDeadLetteredTotal.WithLabelValues("dispatch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SaleTransitionsTotal.WithLabelValues("ACTIVE")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordCreated(1)
		m.RecordRejected("x")
		m.RecordTransition("PAID")
		m.RecordPayment("APPROVED")
		m.RecordConsumed("dispatch", "ok")
		m.RecordDeadLettered("dispatch")
		m.RecordSaleTransitions("ACTIVE", 1)
	})
}
