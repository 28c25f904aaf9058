// Command cytotable converts per-experiment measurement exports (delimited
// files or SQLite databases) into Parquet artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"cytotable"
	"cytotable/internal/config"
	"cytotable/internal/metrics"
	"cytotable/internal/metrics/prompush"
)

// artifact is the JSON shape reported per written file.
type artifact struct {
	Source   string `json:"source"`
	Table    string `json:"table,omitempty"`
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
}

// main loads the run config (file and/or flags), optionally initializes a
// metrics backend, and executes the conversion.
func main() {
	var (
		cfgPath           string
		sourcePath        string
		destPath          string
		sourceDatatype    string
		targetsFlg        string
		concatFlg         bool
		workersFlg        int
		windowFlg         int64
		serialFlg         bool
		metricsBackendFlg string
		pushGatewayURLFlg string
		validate          bool
	)

	flag.StringVar(&cfgPath, "config", "", "run config JSON path; explicit flags override file values")
	flag.StringVar(&sourcePath, "source", "", "source directory to scan")
	flag.StringVar(&destPath, "dest", "", "destination directory for artifacts")
	flag.StringVar(&sourceDatatype, "source-datatype", "", "pin the source datatype (e.g. csv, sqlite); inferred when empty")
	flag.StringVar(&targetsFlg, "targets", strings.Join(cytotable.DefaultTargets, ","), "comma-separated dataset stems to convert; \"all\" converts everything")
	flag.BoolVar(&concatFlg, "concat", true, "merge each group's artifacts into one dataset")
	flag.IntVar(&workersFlg, "workers", 0, "worker pool size (overrides env CYTOTABLE_MAX_WORKERS; 0 = NumCPU)")
	flag.Int64Var(&windowFlg, "window", cytotable.DefaultWindowSize, "rows per database extraction window")
	flag.BoolVar(&serialFlg, "serial", false, "process groups one at a time")
	flag.StringVar(&metricsBackendFlg, "metrics-backend", "none", "metrics backend to use (e.g. pushgateway, none)")
	flag.StringVar(&pushGatewayURLFlg, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	flag.BoolVar(&validate, "validate", false, "validate the run config and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	run := config.Run{
		Source: config.Source{
			Path:     sourcePath,
			Datatype: sourceDatatype,
			Targets:  splitTargets(targetsFlg),
		},
		Dest: config.Dest{Path: destPath, Concat: &concatFlg},
		Runtime: config.Runtime{
			Workers:    workersFlg,
			WindowSize: windowFlg,
			Serial:     serialFlg,
		},
		Metrics: config.Metrics{
			Backend:        metricsBackendFlg,
			PushgatewayURL: pushGatewayURLFlg,
		},
	}

	if cfgPath != "" {
		fromFile, err := config.Load(cfgPath)
		if err != nil {
			fatalf("load config: %v", err)
		}
		run = mergeFlags(fromFile, run)
	}

	// Validate the run config.
	issues := config.ValidateRun(run)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("run configuration is invalid")
		os.Exit(1)
	}
	if validate {
		log.Printf("run configuration is valid")
		os.Exit(0)
	}

	workers := run.Runtime.Workers
	if workers == 0 {
		if env := os.Getenv("CYTOTABLE_MAX_WORKERS"); env != "" {
			n, err := strconv.Atoi(env)
			if err != nil {
				fatalf("CYTOTABLE_MAX_WORKERS: %v", err)
			}
			workers = n
		}
	}

	setupMetrics(run.Metrics, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	opts := cytotable.Options{
		SourcePath:     run.Source.Path,
		DestPath:       run.Dest.Path,
		DestFormat:     cytotable.DestParquet,
		SourceDatatype: run.Source.Datatype,
		Targets:        run.Source.Targets,
		Concat:         run.Dest.ConcatEnabled(),
		Workers:        workers,
		WindowSize:     run.Runtime.WindowSize,
	}
	if run.Runtime.Serial {
		opts.Strategy = cytotable.Sequential{}
	}

	ctx := context.Background()
	start := time.Now()

	if *verbose {
		log.Printf("convert: source=%s dest=%s targets=%v concat=%v workers=%d",
			opts.SourcePath, opts.DestPath, opts.Targets, opts.Concat, workers)
	}

	results, err := cytotable.Convert(ctx, opts)
	if err != nil {
		log.Fatalf("%v", err)
	}

	report := make(map[string][]artifact, len(results))
	for key, recs := range results {
		for _, rec := range recs {
			report[key] = append(report[key], artifact{
				Source:   rec.SourcePath,
				Table:    rec.TableName,
				Path:     rec.DestPath,
				Checksum: fmt.Sprintf("%016x", rec.Checksum),
			})
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fatalf("encode results: %v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// splitTargets parses the -targets flag. "all" disables the filter.
func splitTargets(s string) []string {
	if s == "all" {
		return nil
	}
	var targets []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// mergeFlags overlays explicitly set command-line flags onto a run loaded
// from a config file. File values win for anything left at its flag default.
func mergeFlags(base, flags config.Run) config.Run {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["source"] {
		base.Source.Path = flags.Source.Path
	}
	if set["source-datatype"] {
		base.Source.Datatype = flags.Source.Datatype
	}
	if set["targets"] {
		base.Source.Targets = flags.Source.Targets
	}
	if set["dest"] {
		base.Dest.Path = flags.Dest.Path
	}
	if set["concat"] {
		base.Dest.Concat = flags.Dest.Concat
	}
	if set["workers"] {
		base.Runtime.Workers = flags.Runtime.Workers
	}
	if set["window"] {
		base.Runtime.WindowSize = flags.Runtime.WindowSize
	}
	if set["serial"] {
		base.Runtime.Serial = flags.Runtime.Serial
	}
	if set["metrics-backend"] {
		base.Metrics.Backend = flags.Metrics.Backend
	}
	if set["pushgateway-url"] {
		base.Metrics.PushgatewayURL = flags.Metrics.PushgatewayURL
	}
	return base
}

// setupMetrics decides the metrics backend: config/flag → env → disabled.
func setupMetrics(m config.Metrics, verbose bool) {
	backendName := m.Backend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "pushgateway":
		gwURL := m.PushgatewayURL
		if gwURL == "" {
			gwURL = os.Getenv("PUSHGATEWAY_URL")
		}
		if gwURL == "" {
			gwURL = "http://localhost:9091"
		}
		jobName := m.Job
		if jobName == "" {
			jobName = "cytotable"
		}
		b, err := prompush.NewBackend(jobName, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		if verbose {
			log.Printf("metrics: url=%v backend=%v job_name=%v", gwURL, backendName, jobName)
		}
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
