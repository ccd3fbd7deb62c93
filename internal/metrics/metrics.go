// Package metrics exposes Prometheus counters for the session gate and the
// deferred upload flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "producthub"

var (
	// GateDecisions counts session gate outcomes by how they were reached
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Session gate decisions by source (signal, status, status_error) and result.",
	}, []string{"source", "result"})

	// Uploads counts upload attempts by outcome state
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Upload attempts by outcome (succeeded, failed, awaiting_auth) and whether it was a resubmission.",
	}, []string{"outcome", "resubmission"})

	// UploadBytes observes submitted file sizes
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_file_bytes",
		Help:      "Size of submitted spreadsheet files.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
	})

	// LoginRedirects counts provider login redirects started
	LoginRedirects = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_redirects_total",
		Help:      "Provider login redirects by trigger (sign_in, upload) and result.",
	}, []string{"trigger", "result"})

	// PendingPruned counts expired pending submissions removed by the janitor
	PendingPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pending_pruned_total",
		Help:      "Expired pending submissions deleted.",
	})
)
