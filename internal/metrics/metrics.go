// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the conversion pipeline.
//
// It exposes a narrow Backend interface focused on counters and timing data,
// with a global, pluggable backend defaulting to a no-op implementation so
// metric calls are always safe even when nothing is configured. Concrete
// metric systems stay isolated in subpackages (see prompush).
//
// Beyond step timing and row counts, the package carries the pipeline's one
// deliberate observability hook: per-column counts of embedded-database
// values whose storage class disagreed with the declared column type and
// were therefore replaced with NULL during extraction.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency plus success/failure for one pipeline step
// (gather, read, extract, write, concat) of one record group.
func RecordStep(group, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"group":  group,
		"step":   step,
		"status": status,
	}

	backend.IncCounter("cytotable_step_total", 1, lbls)
	backend.ObserveHistogram("cytotable_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given group and kind.
//
// Typical kinds:
//   - "read"         rows parsed from delimited sources
//   - "extracted"    rows read from embedded-database windows
//   - "concatenated" rows folded into a merged artifact
func RecordRows(group, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("cytotable_rows_total", float64(delta), Labels{
		"group": group,
		"kind":  kind,
	})
}

// RecordMismatch counts embedded-database cells whose storage class differed
// from the declared column type and were replaced with NULL. Partitioned by
// table and column so corrupt columns are identifiable after a run.
func RecordMismatch(table, column string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("cytotable_mismatch_total", float64(delta), Labels{
		"table":  table,
		"column": column,
	})
}
