package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total number of checkout initiations",
	}, []string{"outcome"})

	PaymentTokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_tokens_issued_total",
		Help: "Total number of payment-session tokens issued by the gateway",
	})

	SettlementCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_callbacks_total",
		Help: "Total number of gateway webhook callbacks by result",
	}, []string{"result"})

	DiscountIncrementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discount_increments_total",
		Help: "Total number of discount usage-counter increments",
	})

	TicketScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_scans_total",
		Help: "Total number of ticket scans by outcome",
	}, []string{"outcome"})
)
