package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	vouchersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vouchers_total",
			Help: "Voucher state transitions (issued/activated/redeemed/rejected).",
		},
		[]string{"transition"},
	)

	paymentPushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_pushes_total",
			Help: "STK push requests by outcome (accepted/failed).",
		},
		[]string{"outcome"},
	)

	paymentCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Provider callbacks by outcome (success/failure/duplicate/malformed).",
		},
		[]string{"outcome"},
	)

	pendingSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_vouchers_swept_total",
			Help: "Stale pending vouchers moved to rejected by the sweeper.",
		},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			vouchersTotal,
			paymentPushesTotal,
			paymentCallbacksTotal,
			pendingSweptTotal,
		)
	})
}

func IncVoucherTransition(transition string) {
	vouchersTotal.WithLabelValues(transition).Inc()
}

func IncPaymentPush(outcome string) {
	paymentPushesTotal.WithLabelValues(outcome).Inc()
}

func IncPaymentCallback(outcome string) {
	paymentCallbacksTotal.WithLabelValues(outcome).Inc()
}

func AddPendingSwept(n int) {
	pendingSweptTotal.Add(float64(n))
}
