// Package metrics defines the prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Discovery metrics
var (
	// DiscoveryTicksTotal tracks scan ticks by scan id and outcome.
	DiscoveryTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_ticks_total",
			Help: "Total number of discovery ticks by scan and status",
		},
		[]string{"scan_id", "status"},
	)

	// DiscoveryTickDuration tracks how long one scan tick takes.
	DiscoveryTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_tick_duration_seconds",
			Help:    "Discovery tick duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"scan_id"},
	)

	// DiscoveredAssets tracks how many assets the last tick of a scan
	// found.
	DiscoveredAssets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "discovery_assets",
			Help: "Number of assets found by the last tick of a scan",
		},
		[]string{"scan_id"},
	)

	// ScansEnabled tracks the number of currently enabled scans.
	ScansEnabled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_scans_enabled",
			Help: "Number of currently enabled scans",
		},
	)

	// ResultsPublished tracks discovery results handed to the bus.
	ResultsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_results_published_total",
			Help: "Total number of discovery results published to subscribers",
		},
	)
)

// Assurance metrics
var (
	// RuleEvaluationsTotal tracks rule evaluations by rule and outcome.
	RuleEvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_evaluations_total",
			Help: "Total number of rule evaluations by rule and outcome",
		},
		[]string{"rule", "outcome"},
	)

	// RuleEvaluationDuration tracks how long evaluating one discovery
	// result against all rules takes.
	RuleEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rule_evaluation_duration_seconds",
			Help:    "Duration of evaluating one discovery result in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"scan_id"},
	)

	// ControlFulfillment tracks control fulfillment states.
	ControlFulfillment = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "control_fulfillment",
			Help: "Control fulfillment (1 in the labelled state, 0 otherwise)",
		},
		[]string{"control_id", "state"},
	)

	// RulesLoaded tracks how many rules are active after the last load.
	RulesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rules_loaded",
			Help: "Number of successfully compiled rules",
		},
	)

	// RulesRejected tracks rule-pack entries rejected at load time.
	RulesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rules_rejected_total",
			Help: "Total number of rule-pack entries rejected at load time",
		},
	)
)
