// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typing_exam_login_attempts_total",
			Help: "Login attempts by role and outcome",
		},
		[]string{"role", "outcome"},
	)

	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typing_exam_gate_decisions_total",
			Help: "Test page admissions by resulting state and route",
		},
		[]string{"state", "route"},
	)

	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "typing_exam_submissions_total",
			Help: "Result submissions by outcome",
		},
		[]string{"outcome"},
	)

	SubmissionWPM = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "typing_exam_submission_wpm",
			Help:    "Words per minute of recorded attempts",
			Buckets: prometheus.LinearBuckets(0, 10, 12),
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "typing_exam_active_typing_sessions",
			Help: "Typing sessions currently held in memory",
		},
	)
)

// Outcome labels for Submissions.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)
