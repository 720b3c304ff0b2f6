package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trancongquochuy123/e-commerce-platform-sub000/services/marketplace/internal/domain"
)

var (
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkouts_total",
		Help: "Checkout requests by outcome.",
	}, []string{"outcome"})

	checkoutAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_checkout_attempts",
		Help:    "Validate-and-apply attempts used per checkout.",
		Buckets: []float64{1, 2, 3, 5, 10},
	})

	checkoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_checkout_duration_seconds",
		Help:    "Checkout latency.",
		Buckets: prometheus.DefBuckets,
	})

	checkoutCompensations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_checkout_compensations_total",
		Help: "Committed orders revoked because the cart could not be emptied.",
	})

	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_order_status_transitions_total",
		Help: "Applied order status transitions.",
	}, []string{"from", "to"})
)

// checkoutOutcome labels a finished checkout by its error kind.
func checkoutOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrCheckoutFailed):
		return "checkout_failed"
	default:
		return "error"
	}
}
