// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	SubmissionSucceeded = "succeeded"
	SubmissionFailed    = "failed"
	SubmissionRejected  = "rejected"
	SubmissionCanceled  = "canceled"
)

const (
	UpdateApplied  = "applied"
	UpdateInvalid  = "invalid"
	UpdateNotFound = "not_found"
	UpdateError    = "error"
)

const (
	DeliverySucceeded = "succeeded"
	DeliveryRetried   = "retried"
	DeliveryExhausted = "exhausted"
	DeliverySkipped   = "skipped"
)

var (
	initOnce sync.Once

	editorSubmissionsCounter    *prometheus.CounterVec
	featureUpdatesCounter       *prometheus.CounterVec
	featureUpdateDurationMetric prometheus.Histogram
	webhookDeliveriesCounter    *prometheus.CounterVec
	notifierClaimLatencyMetric  prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		editorSubmissionsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "editor_submissions_total",
				Help: "Edit session submission outcomes by outcome.",
			},
			[]string{"outcome"},
		)

		featureUpdatesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feature_updates_total",
				Help: "Feature update requests handled by the API by result.",
			},
			[]string{"result"},
		)

		featureUpdateDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feature_update_duration_seconds",
				Help:    "Duration of feature update transactions in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		webhookDeliveriesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webhook_deliveries_total",
				Help: "Feature event webhook delivery attempts by result.",
			},
			[]string{"result"},
		)

		notifierClaimLatencyMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "notifier_claim_latency_seconds",
				Help:    "Latency of notifier event claim queries in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			editorSubmissionsCounter,
			featureUpdatesCounter,
			featureUpdateDurationMetric,
			webhookDeliveriesCounter,
			notifierClaimLatencyMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, outcome := range []string{
			SubmissionSucceeded,
			SubmissionFailed,
			SubmissionRejected,
			SubmissionCanceled,
		} {
			editorSubmissionsCounter.WithLabelValues(outcome)
		}

		for _, result := range []string{
			UpdateApplied,
			UpdateInvalid,
			UpdateNotFound,
			UpdateError,
		} {
			featureUpdatesCounter.WithLabelValues(result)
		}

		for _, result := range []string{
			DeliverySucceeded,
			DeliveryRetried,
			DeliveryExhausted,
			DeliverySkipped,
		} {
			webhookDeliveriesCounter.WithLabelValues(result)
		}
	})
}

func IncEditorSubmission(outcome string) {
	Init()
	editorSubmissionsCounter.WithLabelValues(outcome).Inc()
}

func IncFeatureUpdate(result string) {
	Init()
	featureUpdatesCounter.WithLabelValues(result).Inc()
}

func ObserveFeatureUpdateDuration(d time.Duration) {
	Init()
	featureUpdateDurationMetric.Observe(d.Seconds())
}

func IncWebhookDelivery(result string) {
	Init()
	webhookDeliveriesCounter.WithLabelValues(result).Inc()
}

func ObserveNotifierClaimLatency(d time.Duration) {
	Init()
	notifierClaimLatencyMetric.Observe(d.Seconds())
}
