package cytotable

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/apache/arrow-go/v18/arrow"

	"cytotable/internal/arrowio"
	"cytotable/internal/concat"
	"cytotable/internal/metrics"
	"cytotable/internal/source"
	"cytotable/internal/sqlite"
	"cytotable/pkg/records"
)

// Task is one schedulable unit of group-level work.
type Task func(ctx context.Context) error

// Strategy schedules group tasks. Implementations must run every task exactly
// once and return the first error encountered.
type Strategy interface {
	Execute(ctx context.Context, tasks []Task) error
}

// Parallel runs group tasks concurrently. A failing task does not cancel the
// others; groups already in flight complete best-effort.
type Parallel struct{}

func (Parallel) Execute(ctx context.Context, tasks []Task) error {
	var g errgroup.Group
	for _, task := range tasks {
		task := task
		g.Go(func() error { return task(ctx) })
	}
	return g.Wait()
}

// Sequential runs group tasks one at a time in order, continuing past
// failures. Useful for debugging and deterministic log output.
type Sequential struct{}

func (Sequential) Execute(ctx context.Context, tasks []Task) error {
	var first error
	for _, task := range tasks {
		if err := task(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// runner carries the per-run configuration plus the semaphore bounding
// file-level read/extract/write work across all groups.
type runner struct {
	opts Options
	sem  *semaphore.Weighted
}

func newRunner(opts Options) *runner {
	if opts.Workers < 1 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.WindowSize < 1 {
		opts.WindowSize = DefaultWindowSize
	}
	if opts.Strategy == nil {
		opts.Strategy = Parallel{}
	}
	return &runner{
		opts: opts,
		sem:  semaphore.NewWeighted(int64(opts.Workers)),
	}
}

// expandDatabases rewrites file-level groups into table-level groups: every
// database file is opened, its tables listed and filtered by the run's
// targets, and each surviving table becomes one member record under the
// virtual key "<table>.<datatype>". Tables sharing a name across database
// files merge into one dataset, mirroring how identically named delimited
// files merge across directories.
func (r *runner) expandDatabases(ctx context.Context, groups records.Group, datatype string) (records.Group, error) {
	targets := make(map[string]bool, len(r.opts.Targets))
	for _, t := range r.opts.Targets {
		targets[strings.ToLower(t)] = true
	}

	out := make(records.Group)
	for _, key := range sortedKeys(groups) {
		for _, member := range groups[key] {
			tables, err := r.listTables(ctx, member.SourcePath)
			if err != nil {
				return nil, err
			}
			for _, table := range tables {
				if len(targets) > 0 && !targets[strings.ToLower(table)] {
					continue
				}
				vkey := strings.ToLower(table) + "." + datatype
				out[vkey] = append(out[vkey], &records.Record{
					SourcePath: member.SourcePath,
					TableName:  table,
				})
			}
		}
	}
	if len(out) == 0 {
		return nil, &source.NoInputError{Path: r.opts.SourcePath}
	}
	return out, nil
}

func (r *runner) listTables(ctx context.Context, path string) ([]string, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return sqlite.Tables(ctx, db)
}

// run executes the per-group pipeline for every group under the configured
// strategy and collects the final artifact records. The first group error is
// returned together with the results of the groups that succeeded.
func (r *runner) run(ctx context.Context, groups records.Group, datatype string) (records.Group, error) {
	out := make(records.Group, len(groups))
	var mu sync.Mutex

	keys := sortedKeys(groups)
	tasks := make([]Task, 0, len(keys))
	for _, key := range keys {
		key, members := key, groups[key]
		tasks = append(tasks, func(ctx context.Context) error {
			var (
				res []*records.Record
				err error
			)
			switch {
			case isDatabase(datatype):
				res, err = r.runDatabaseGroup(ctx, key, members)
			case r.opts.DestFormat == DestArrow:
				res, err = r.runArrowGroup(ctx, key, members)
			default:
				res, err = r.runDelimitedGroup(ctx, key, members)
			}
			if err != nil {
				return fmt.Errorf("group %s: %w", key, err)
			}
			mu.Lock()
			out[key] = res
			mu.Unlock()
			return nil
		})
	}

	err := r.opts.Strategy.Execute(ctx, tasks)
	return out, err
}

// readMembers parses every delimited member of a group concurrently under the
// worker semaphore. Tables come back in member order.
func (r *runner) readMembers(ctx context.Context, key string, members []*records.Record) ([]arrow.Table, error) {
	tables := make([]arrow.Table, len(members))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			start := time.Now()
			tbl, err := arrowio.ReadCSV(member.SourcePath)
			metrics.RecordStep(key, "read", err, time.Since(start))
			if err != nil {
				return err
			}
			metrics.RecordRows(key, "read", tbl.NumRows())
			tables[i] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, tbl := range tables {
			if tbl != nil {
				tbl.Release()
			}
		}
		return nil, err
	}
	return tables, nil
}

// runArrowGroup converts one delimited group into in-memory Arrow tables,
// optionally merged into a single table.
func (r *runner) runArrowGroup(ctx context.Context, key string, members []*records.Record) ([]*records.Record, error) {
	tables, err := r.readMembers(ctx, key, members)
	if err != nil {
		return nil, err
	}

	if !r.opts.Concat || len(tables) < 2 {
		out := make([]*records.Record, len(members))
		for i, member := range members {
			out[i] = &records.Record{SourcePath: member.SourcePath, Table: tables[i]}
		}
		return out, nil
	}

	start := time.Now()
	merged, err := concat.Tables(tables)
	metrics.RecordStep(key, "concat", err, time.Since(start))
	for _, tbl := range tables {
		tbl.Release()
	}
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(key, "concatenated", merged.NumRows())

	return []*records.Record{{
		SourcePath: mergedSourceName(members[0].SourcePath, source.Stem(key)),
		Table:      merged,
	}}, nil
}

// runDelimitedGroup converts one delimited group into Parquet artifacts:
// one file per member, then an optional merged file replacing the members.
func (r *runner) runDelimitedGroup(ctx context.Context, key string, members []*records.Record) ([]*records.Record, error) {
	stem := source.Stem(key)
	unique := len(members) >= 2

	out := make([]*records.Record, len(members))
	var rowTotal int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			start := time.Now()
			tbl, err := arrowio.ReadCSV(member.SourcePath)
			metrics.RecordStep(key, "read", err, time.Since(start))
			if err != nil {
				return err
			}
			defer tbl.Release()
			metrics.RecordRows(key, "read", tbl.NumRows())

			destPath := filepath.Join(r.opts.DestPath, memberDestName(member.SourcePath, stem, unique))
			start = time.Now()
			err = arrowio.WriteTable(tbl, destPath)
			metrics.RecordStep(key, "write", err, time.Since(start))
			if err != nil {
				return err
			}

			sum, err := records.ChecksumFile(destPath)
			if err != nil {
				return err
			}

			mu.Lock()
			rowTotal += tbl.NumRows()
			mu.Unlock()

			out[i] = &records.Record{
				SourcePath: member.SourcePath,
				DestPath:   destPath,
				Checksum:   sum,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !r.opts.Concat || len(out) < 2 {
		return out, nil
	}
	return r.concatArtifacts(ctx, key, stem, members[0].SourcePath, "", out, rowTotal)
}

// runDatabaseGroup extracts one table-level group from its database files in
// bounded row windows, writing one Parquet chunk per window, then optionally
// merging the chunks.
func (r *runner) runDatabaseGroup(ctx context.Context, key string, members []*records.Record) ([]*records.Record, error) {
	stem := source.Stem(key)
	unique := len(members) >= 2

	chunksPerMember := make([][]*records.Record, len(members))
	var rowTotal int64
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			if err := r.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer r.sem.Release(1)

			chunks, rows, err := r.extractMember(gctx, key, stem, unique, member)
			if err != nil {
				return err
			}
			mu.Lock()
			chunksPerMember[i] = chunks
			rowTotal += rows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*records.Record
	for _, chunks := range chunksPerMember {
		out = append(out, chunks...)
	}
	if !r.opts.Concat || len(out) < 2 {
		return out, nil
	}
	return r.concatArtifacts(ctx, key, stem, members[0].SourcePath, members[0].TableName, out, rowTotal)
}

// extractMember pulls one table out of one database file window by window,
// writing each window as its own Parquet chunk.
func (r *runner) extractMember(ctx context.Context, key, stem string, unique bool, member *records.Record) ([]*records.Record, int64, error) {
	db, err := sqlite.Open(ctx, member.SourcePath)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	counts, err := sqlite.MismatchCounts(ctx, db, member.TableName)
	if err != nil {
		return nil, 0, err
	}
	for column, n := range counts {
		metrics.RecordMismatch(member.TableName, column, n)
	}

	prefix := stem
	if unique {
		prefix = filepath.Base(filepath.Dir(member.SourcePath)) + "." + stem
	}

	var (
		chunks []*records.Record
		rows   int64
	)
	start := time.Now()
	err = sqlite.ExtractTable(ctx, db, member.SourcePath, member.TableName, r.opts.WindowSize,
		func(rec arrow.Record, offset int64) error {
			chunkPath := filepath.Join(r.opts.DestPath, fmt.Sprintf("%s-%d.parquet", prefix, offset))
			if err := arrowio.WriteRecord(rec, chunkPath); err != nil {
				return err
			}
			sum, err := records.ChecksumFile(chunkPath)
			if err != nil {
				return err
			}
			rows += rec.NumRows()
			chunks = append(chunks, &records.Record{
				SourcePath: member.SourcePath,
				TableName:  member.TableName,
				DestPath:   chunkPath,
				Checksum:   sum,
			})
			return nil
		})
	metrics.RecordStep(key, "extract", err, time.Since(start))
	if err != nil {
		return nil, 0, err
	}
	metrics.RecordRows(key, "extracted", rows)
	return chunks, rows, nil
}

// concatArtifacts merges a group's written artifacts into one dataset named
// after the shared ancestor directory, consuming the member files.
func (r *runner) concatArtifacts(ctx context.Context, key, stem, firstSource, tableName string, members []*records.Record, rowTotal int64) ([]*records.Record, error) {
	paths := make([]string, len(members))
	for i, m := range members {
		paths[i] = m.DestPath
	}
	destPath := filepath.Join(r.opts.DestPath, concatDestName(firstSource, stem))

	start := time.Now()
	err := concat.Files(ctx, paths, destPath)
	metrics.RecordStep(key, "concat", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	metrics.RecordRows(key, "concatenated", rowTotal)

	sum, err := records.ChecksumFile(destPath)
	if err != nil {
		return nil, err
	}
	return []*records.Record{{
		SourcePath: mergedSourceName(firstSource, stem),
		TableName:  tableName,
		DestPath:   destPath,
		Checksum:   sum,
	}}, nil
}

// memberDestName names a member artifact "<stem>.parquet", prefixed with the
// member's parent directory when siblings would otherwise collide.
func memberDestName(sourcePath, stem string, unique bool) string {
	name := stem + ".parquet"
	if unique {
		if parent := filepath.Base(filepath.Dir(sourcePath)); validNamePart(parent) {
			name = parent + "." + name
		}
	}
	return name
}

// concatDestName names a merged artifact "<grandparent>.<stem>.parquet",
// falling back to "<stem>.parquet" near the filesystem root.
func concatDestName(firstSource, stem string) string {
	name := stem + ".parquet"
	if gp := filepath.Base(filepath.Dir(filepath.Dir(firstSource))); validNamePart(gp) {
		name = gp + "." + name
	}
	return name
}

// mergedSourceName is the logical source identity of a merged dataset: the
// members' shared ancestor directory joined with the group stem.
func mergedSourceName(firstSource, stem string) string {
	return filepath.Join(filepath.Dir(filepath.Dir(firstSource)), stem)
}

func validNamePart(part string) bool {
	switch part {
	case "", ".", "..", string(filepath.Separator):
		return false
	}
	return true
}

func sortedKeys(groups records.Group) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
