package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains a finding at path with the given
// severity.
func hasIssue(issues []Issue, severity IssueSeverity, path string) bool {
	for _, iss := range issues {
		if iss.Severity == severity && iss.Path == path {
			return true
		}
	}
	return false
}

func validRun() Run {
	return Run{
		Source: Source{Path: "/data/run42", Targets: []string{"image", "cells"}},
		Dest:   Dest{Path: "/data/out", Format: "parquet"},
	}
}

/*
TestValidateRun exercises the static checks: a valid run yields no issues,
and each broken field surfaces at its dotted path.
*/
func TestValidateRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Run)
		severity IssueSeverity
		path     string
	}{
		{
			name:   "valid run",
			mutate: func(r *Run) {},
		},
		{
			name:     "missing source path",
			mutate:   func(r *Run) { r.Source.Path = " " },
			severity: SeverityError,
			path:     "source.path",
		},
		{
			name:     "missing dest path",
			mutate:   func(r *Run) { r.Dest.Path = "" },
			severity: SeverityError,
			path:     "dest.path",
		},
		{
			name:     "arrow format rejected",
			mutate:   func(r *Run) { r.Dest.Format = "arrow" },
			severity: SeverityError,
			path:     "dest.format",
		},
		{
			name:     "unknown format",
			mutate:   func(r *Run) { r.Dest.Format = "orc" },
			severity: SeverityError,
			path:     "dest.format",
		},
		{
			name:     "empty target stem",
			mutate:   func(r *Run) { r.Source.Targets = []string{"image", ""} },
			severity: SeverityError,
			path:     "source.targets[1]",
		},
		{
			name:     "no targets warns",
			mutate:   func(r *Run) { r.Source.Targets = nil },
			severity: SeverityWarning,
			path:     "source.targets",
		},
		{
			name:     "negative workers",
			mutate:   func(r *Run) { r.Runtime.Workers = -1 },
			severity: SeverityError,
			path:     "runtime.workers",
		},
		{
			name:     "negative window size",
			mutate:   func(r *Run) { r.Runtime.WindowSize = -5 },
			severity: SeverityError,
			path:     "runtime.window_size",
		},
		{
			name:     "pushgateway without URL warns",
			mutate:   func(r *Run) { r.Metrics.Backend = "pushgateway" },
			severity: SeverityWarning,
			path:     "metrics.pushgateway_url",
		},
		{
			name:     "unknown metrics backend warns",
			mutate:   func(r *Run) { r.Metrics.Backend = "statsd" },
			severity: SeverityWarning,
			path:     "metrics.backend",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := validRun()
			tt.mutate(&r)
			issues := ValidateRun(r)

			if tt.path == "" {
				if len(issues) != 0 {
					t.Fatalf("expected no issues, got %+v", issues)
				}
				return
			}
			if !hasIssue(issues, tt.severity, tt.path) {
				t.Fatalf("expected %s at %s, got %+v", tt.severity, tt.path, issues)
			}
		})
	}
}

func TestIssue_Error(t *testing.T) {
	t.Parallel()

	iss := Issue{Severity: SeverityError, Path: "dest.path", Message: "must not be empty"}
	got := iss.Error()
	for _, want := range []string{"error", "dest.path", "must not be empty"} {
		if !strings.Contains(got, want) {
			t.Fatalf("Error() = %q, missing %q", got, want)
		}
	}
}
