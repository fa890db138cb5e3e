// Package metrics содержит Prometheus-метрики сервиса флеш-распродаж.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics содержит все метрики заказов, очередей и распродаж.
type Metrics struct {
	// Заказы
	OrdersCreatedTotal   prometheus.Counter
	OrdersRejectedTotal  *prometheus.CounterVec
	OrderCreateDuration  prometheus.Histogram
	OrderTransitionTotal *prometheus.CounterVec

	// Платежи
	PaymentsTotal *prometheus.CounterVec

	// Очереди
	MessagesConsumedTotal     *prometheus.CounterVec
	MessagesDeadLetteredTotal *prometheus.CounterVec

	// Распродажи
	SaleTransitionsTotal *prometheus.CounterVec
}

// New регистрирует метрики в reg. Для nil используется глобальный регистратор.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		OrdersCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "flashsales_orders_created_total",
			Help: "Общее количество созданных заказов",
		}),
		OrdersRejectedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_orders_rejected_total",
				Help: "Количество отклонённых попыток создать заказ",
			},
			[]string{"reason"},
		),
		OrderCreateDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashsales_order_create_duration_seconds",
			Help:    "Время создания заказа с резервированием квоты",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		OrderTransitionTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_order_transitions_total",
				Help: "Количество применённых переходов статуса заказа",
			},
			[]string{"to"},
		),
		PaymentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_payments_total",
				Help: "Исходы обращений к платёжному шлюзу",
			},
			[]string{"result"},
		),
		MessagesConsumedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_messages_consumed_total",
				Help: "Обработанные сообщения по каналам и результатам",
			},
			[]string{"channel", "result"},
		),
		MessagesDeadLetteredTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_messages_dead_lettered_total",
				Help: "Сообщения, отправленные в dead-letter после исчерпания попыток",
			},
			[]string{"channel"},
		),
		SaleTransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flashsales_sale_transitions_total",
				Help: "Переходы распродаж по жизненному циклу",
			},
			[]string{"to"},
		),
	}
}

// RecordRejected учитывает отклонённый заказ. Безопасен для nil.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.OrdersRejectedTotal.WithLabelValues(reason).Inc()
}

// RecordCreated учитывает созданный заказ и длительность его создания.
func (m *Metrics) RecordCreated(seconds float64) {
	if m == nil {
		return
	}
	m.OrdersCreatedTotal.Inc()
	m.OrderCreateDuration.Observe(seconds)
}

// RecordTransition учитывает применённый переход заказа в статус to.
func (m *Metrics) RecordTransition(to string) {
	if m == nil {
		return
	}
	m.OrderTransitionTotal.WithLabelValues(to).Inc()
}

// RecordPayment учитывает исход платежа.
func (m *Metrics) RecordPayment(result string) {
	if m == nil {
		return
	}
	m.PaymentsTotal.WithLabelValues(result).Inc()
}

// RecordConsumed учитывает обработанное сообщение.
func (m *Metrics) RecordConsumed(channel, result string) {
	if m == nil {
		return
	}
	m.MessagesConsumedTotal.WithLabelValues(channel, result).Inc()
}

// RecordDeadLettered учитывает сообщение, ушедшее в dead-letter.
func (m *Metrics) RecordDeadLettered(channel string) {
	if m == nil {
		return
	}
	m.MessagesDeadLetteredTotal.WithLabelValues(channel).Inc()
}

// RecordSaleTransitions учитывает n распродаж, переведённых в статус to.
func (m *Metrics) RecordSaleTransitions(to string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.SaleTransitionsTotal.WithLabelValues(to).Add(float64(n))
}
