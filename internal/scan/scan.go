// Package scan applies a filter to a set of rows and collects the surviving cells in row key
// order.
package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/hashicorp/go-multierror"
	"github.com/litetable/litetable-filter/internal/filter"
	"github.com/litetable/litetable-filter/internal/litetable"
	"github.com/litetable/litetable-filter/internal/observability"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"runtime"
	"sort"
	"time"
)

// Config configures an Executor.
type Config struct {
	// Workers bounds the number of rows evaluated at once. Zero uses GOMAXPROCS.
	Workers int
	// Metrics is optional.
	Metrics *observability.Metrics
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Workers < 0 {
		errGrp = append(errGrp, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	return errors.Join(errGrp...)
}

// Executor evaluates filters over rows. It holds no per-scan state and is safe for concurrent
// use.
type Executor struct {
	workers int
	metrics *observability.Metrics
}

// New creates an Executor.
func New(cfg *Config) (*Executor, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Executor{
		workers: workers,
		metrics: cfg.Metrics,
	}, nil
}

// FamilyCells are the surviving cells of one column family, in filtered order.
type FamilyCells struct {
	Family string           `json:"family"`
	Cells  []litetable.Cell `json:"cells"`
}

// ResultRow is a row that kept at least one cell.
type ResultRow struct {
	Key      []byte        `json:"key"`
	Families []FamilyCells `json:"families"`
}

// RowError records a row whose evaluation failed. The row is left out of the result.
type RowError struct {
	Key []byte
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %q: %v", e.Key, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Result holds the rows of a scan sorted by key and the rows that failed, also sorted by key.
type Result struct {
	Rows   []ResultRow
	Errors []*RowError
}

// Err returns the row failures combined into one error, or nil when every row succeeded.
func (r *Result) Err() error {
	var result *multierror.Error
	for _, e := range r.Errors {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

// Scan compiles f and evaluates it against every row. An invalid filter fails the whole scan;
// a row that fails to evaluate is recorded in Result.Errors and does not stop the others.
func (e *Executor) Scan(ctx context.Context, rows []litetable.Row, f filter.Filter, opts ...filter.Option) (*Result, error) {
	prog, err := filter.Compile(f, opts...)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, rows, prog), nil
}

// Run evaluates an already compiled program against every row.
func (e *Executor) Run(ctx context.Context, rows []litetable.Row, prog *filter.Program) *Result {
	ctx, span := observability.StartSpan(ctx, "scan",
		attribute.String("filter", prog.Filter().String()),
		attribute.Int("rows", len(rows)),
	)
	start := time.Now()

	outputs := make([]litetable.Row, len(rows))
	failures := make([]error, len(rows))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range rows {
		g.Go(func() error {
			outputs[i], failures[i] = evaluate(ctx, prog, rows[i])
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{}
	for i, row := range rows {
		if failures[i] != nil {
			result.Errors = append(result.Errors, &RowError{Key: row.Key, Err: failures[i]})
			continue
		}
		if outputs[i].IsEmpty() {
			continue
		}
		result.Rows = append(result.Rows, group(outputs[i]))
	}

	sort.SliceStable(result.Rows, func(i, j int) bool {
		return bytes.Compare(result.Rows[i].Key, result.Rows[j].Key) < 0
	})
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return bytes.Compare(result.Errors[i].Key, result.Errors[j].Key) < 0
	})

	e.record(rows, result, time.Since(start))
	span.SetAttributes(
		attribute.Int("rows.emitted", len(result.Rows)),
		attribute.Int("rows.failed", len(result.Errors)),
	)
	observability.EndSpan(span, result.Err())

	for _, rowErr := range result.Errors {
		log.Warn().Err(rowErr.Err).Bytes("row", rowErr.Key).Msg("row excluded from scan")
	}
	return result
}

// evaluate runs the program over one row, turning a cancelled context or a panic into a row
// error.
func evaluate(ctx context.Context, prog *filter.Program, row litetable.Row) (out litetable.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = litetable.Row{}, fmt.Errorf("panic during evaluation: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return litetable.Row{}, err
	}
	return prog.Evaluate(row)
}

// group splits the cells of a row by family in the order the families first appear.
func group(row litetable.Row) ResultRow {
	out := ResultRow{Key: row.Key}
	index := make(map[string]int)
	for _, c := range row.Cells {
		i, ok := index[c.Family]
		if !ok {
			i = len(out.Families)
			index[c.Family] = i
			out.Families = append(out.Families, FamilyCells{Family: c.Family})
		}
		out.Families[i].Cells = append(out.Families[i].Cells, c)
	}
	return out
}

func (e *Executor) record(rows []litetable.Row, result *Result, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}

	status := "ok"
	if len(result.Errors) > 0 {
		status = "partial"
	}
	e.metrics.ScanRows.WithLabelValues("scanned").Add(float64(len(rows)))
	e.metrics.ScanRows.WithLabelValues("emitted").Add(float64(len(result.Rows)))
	e.metrics.ScanRows.WithLabelValues("failed").Add(float64(len(result.Errors)))
	e.metrics.ScanDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}
