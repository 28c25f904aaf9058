// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// It adapts the generic metrics.Backend interface to Prometheus by mapping
// the pipeline's labels onto CounterVec/SummaryVec collectors and pushing the
// collected registry to a Pushgateway instance when the run finishes. All
// Prometheus-specific dependencies live here so the rest of the project can
// swap metric systems without changes to the core pipeline.
package prompush

import (
	"fmt"

	"cytotable/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter  *prometheus.CounterVec // "cytotable_step_total"
	stepDuration *prometheus.SummaryVec // "cytotable_step_duration_seconds"

	rowCounter      *prometheus.CounterVec // "cytotable_rows_total"
	mismatchCounter *prometheus.CounterVec // "cytotable_mismatch_total"
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName is the Pushgateway "job" grouping; gatewayURL is the base URL of
// the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "cytotable"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cytotable_step_total",
			Help: "Total pipeline step executions, partitioned by group, step, and status.",
		},
		[]string{"group", "step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "cytotable_step_duration_seconds",
			Help:       "Duration of pipeline steps in seconds, partitioned by group, step, and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"group", "step", "status"},
	)
	rowCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cytotable_rows_total",
			Help: "Row-level counts per record group and kind (read, extracted, concatenated).",
		},
		[]string{"group", "kind"},
	)
	mismatchCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cytotable_mismatch_total",
			Help: "Embedded-database cells replaced with NULL because their storage class disagreed with the declared column type.",
		},
		[]string{"table", "column"},
	)

	if err := reg.Register(stepCounter); err != nil {
		return nil, fmt.Errorf("prompush: register step counter: %w", err)
	}
	if err := reg.Register(stepDuration); err != nil {
		return nil, fmt.Errorf("prompush: register step summary: %w", err)
	}
	if err := reg.Register(rowCounter); err != nil {
		return nil, fmt.Errorf("prompush: register row counter: %w", err)
	}
	if err := reg.Register(mismatchCounter); err != nil {
		return nil, fmt.Errorf("prompush: register mismatch counter: %w", err)
	}

	return &Backend{
		gatewayURL:      gatewayURL,
		jobName:         jobName,
		reg:             reg,
		stepCounter:     stepCounter,
		stepDuration:    stepDuration,
		rowCounter:      rowCounter,
		mismatchCounter: mismatchCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case "cytotable_step_total":
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["group"], labels["step"], labels["status"]).Add(delta)

	case "cytotable_rows_total":
		if b.rowCounter == nil {
			return
		}
		b.rowCounter.WithLabelValues(labels["group"], labels["kind"]).Add(delta)

	case "cytotable_mismatch_total":
		if b.mismatchCounter == nil {
			return
		}
		b.mismatchCounter.WithLabelValues(labels["table"], labels["column"]).Add(delta)

	default:
		// unknown metric name: ignore
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != "cytotable_step_duration_seconds" || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["group"], labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
