// Package config defines the canonical, JSON-serializable configuration model
// for conversion runs. It is intentionally small, explicit, and dependency-
// free so that run files can be loaded from disk and passed through the
// program without additional glue code.
//
// Example (trimmed):
//
//	{
//	  "source":  { "path": "/data/run42", "targets": ["image", "cells"] },
//	  "dest":    { "path": "/data/out", "format": "parquet" },
//	  "runtime": { "workers": 8, "window_size": 50000 },
//	  "metrics": { "backend": "pushgateway", "pushgateway_url": "http://pg:9091" }
//	}
package config

import (
	"encoding/json"
	"os"
)

// Run describes one conversion run in JSON. It is the top-level object
// decoded from a run file.
type Run struct {
	// Source describes where input data comes from.
	Source Source `json:"source"`

	// Dest describes where artifacts are written.
	Dest Dest `json:"dest"`

	// Runtime controls concurrency and extraction windowing.
	Runtime Runtime `json:"runtime"`

	// Metrics selects an optional metrics backend.
	Metrics Metrics `json:"metrics"`
}

// Source identifies the input tree and what to select from it.
type Source struct {
	// Path is the root directory scanned for source files.
	Path string `json:"path"`

	// Datatype pins the source suffix (e.g. "csv", "sqlite"). Empty means
	// infer from the scanned files.
	Datatype string `json:"datatype"`

	// Targets lists the dataset stems to convert. Empty accepts all.
	Targets []string `json:"targets"`
}

// Dest describes the output side of a run.
type Dest struct {
	// Path is the directory artifacts are written to.
	Path string `json:"path"`

	// Format selects the artifact representation. Current value: "parquet"
	// (the default when empty).
	Format string `json:"format"`

	// Concat merges each group's artifacts into one dataset. Defaults to
	// true when omitted.
	Concat *bool `json:"concat"`
}

// ConcatEnabled resolves the Concat default.
func (d Dest) ConcatEnabled() bool {
	return d.Concat == nil || *d.Concat
}

// Runtime controls concurrency and extraction windowing.
type Runtime struct {
	// Workers bounds the pool for file-level work. 0 means NumCPU.
	Workers int `json:"workers"`

	// WindowSize is the row count per database extraction window. 0 means
	// the built-in default.
	WindowSize int64 `json:"window_size"`

	// Serial processes groups one at a time.
	Serial bool `json:"serial"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend names the metrics backend. Current values: "none" (default
	// when empty) and "pushgateway".
	Backend string `json:"backend"`

	// PushgatewayURL is the base URL of the Pushgateway server.
	PushgatewayURL string `json:"pushgateway_url"`

	// Job is the Pushgateway job grouping label.
	Job string `json:"job"`
}

// Load reads and decodes a run file.
func Load(path string) (Run, error) {
	var r Run
	f, err := os.Open(path)
	if err != nil {
		return r, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return r, err
	}
	return r, nil
}
