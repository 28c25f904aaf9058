// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Run.
//
// Path is a dotted path into the config (e.g. "dest.format"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidateRun performs static validation / linting of a Run.
//
// It does not mutate the run. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidateRun(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Source.Path) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.path",
			Message:  "source.path must not be empty",
		})
	}

	switch strings.ToLower(r.Dest.Format) {
	case "", "parquet":
		if strings.TrimSpace(r.Dest.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "dest.path",
				Message:  "dest.path must not be empty for parquet output",
			})
		}
	case "arrow":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dest.format",
			Message:  "arrow output is an in-process representation; it cannot be requested from a run file",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dest.format",
			Message:  fmt.Sprintf("unknown format %q (want parquet)", r.Dest.Format),
		})
	}

	if len(r.Source.Targets) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "source.targets",
			Message:  "no targets listed; every discovered file becomes eligible",
		})
	}
	for idx, t := range r.Source.Targets {
		if strings.TrimSpace(t) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("source.targets[%d]", idx),
				Message:  "target stems must not be empty",
			})
		}
	}

	if r.Runtime.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}
	if r.Runtime.WindowSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.window_size",
			Message:  "window_size must not be negative",
		})
	}

	issues = append(issues, validateMetrics(r.Metrics)...)
	return issues
}

// validateMetrics validates the Metrics configuration.
func validateMetrics(m Metrics) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none":
		// metrics disabled; URL and job are ignored
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "no URL configured; falling back to PUSHGATEWAY_URL or the local default",
			})
		}
	default:
		// Unknown kinds are warnings for forward compatibility.
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}
