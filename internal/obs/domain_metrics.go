package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillingQuotesTotal counts computed quotes by promotion tier and coupon status.
	BillingQuotesTotal *prometheus.CounterVec
	// BillingPaymentsTotal counts payment attempts by method and outcome.
	BillingPaymentsTotal *prometheus.CounterVec
	// QuoteLatency records quote computation latency in milliseconds.
	QuoteLatency prometheus.Histogram
	// PromotionChangesTotal counts admin promotion mutations.
	PromotionChangesTotal *prometheus.CounterVec
	// RemindersCreatedTotal counts due-soon reminder notifications written.
	RemindersCreatedTotal prometheus.Counter
	// LoginAttemptsTotal counts demo login attempts by outcome.
	LoginAttemptsTotal *prometheus.CounterVec
	// NotificationsSentTotal counts notifications stored by target.
	NotificationsSentTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillingQuotesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_quotes_total",
			Help:      "Count of billing quotes by tier and coupon status.",
		}, []string{"tier", "coupon"})
		BillingPaymentsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_payments_total",
			Help:      "Count of payment attempts by method and result.",
		}, []string{"method", "result"})
		QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "billing_quote_duration_ms",
			Help:      "Latency of quote computation in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100},
		})
		PromotionChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_changes_total",
			Help:      "Count of admin promotion changes by action.",
		}, []string{"action"})
		RemindersCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Number of due-soon reminder notifications created.",
		})
		LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Count of login attempts by result.",
		}, []string{"result"})

		NotificationsSentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Count of notifications sent by target.",
		}, []string{"target"})

		mustRegisterCollector(reg, BillingQuotesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillingQuotesTotal = v
			}
		})
		mustRegisterCollector(reg, BillingPaymentsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BillingPaymentsTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteLatency = v
			}
		})
		mustRegisterCollector(reg, PromotionChangesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromotionChangesTotal = v
			}
		})
		mustRegisterCollector(reg, RemindersCreatedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RemindersCreatedTotal = v
			}
		})
		mustRegisterCollector(reg, LoginAttemptsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LoginAttemptsTotal = v
			}
		})
		mustRegisterCollector(reg, NotificationsSentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				NotificationsSentTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register metric: %w", err))
	}
}
