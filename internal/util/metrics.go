package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutQuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_quotes_total",
		Help: "Total number of checkout quotes computed",
	}, []string{"result"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrderValueCents = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_value_cents",
		Help:    "Order totals in minor currency units",
		Buckets: prometheus.ExponentialBuckets(100, 4, 8),
	})

	PromoValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promo_validations_total",
		Help: "Total number of promo code validations",
	}, []string{"result"})

	WizardTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wizard_transitions_total",
		Help: "Listing wizard step transitions",
	}, []string{"direction", "outcome"})

	ListingsSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_submitted_total",
		Help: "Listings submitted from the wizard",
	}, []string{"status", "mode"})

	PayoutsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payouts_recorded_total",
		Help: "Total number of seller payouts recorded",
	})

	BackendRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_latency_seconds",
		Help:    "Latency of repository calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
