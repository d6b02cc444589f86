// Package job runs the full pipeline over a list of files: record
// assembly, optional uniqueness collapse, optional similarity merge, and
// pagination into sheet batches.
package job

import (
	"context"
	"io"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/dedup"
	"github.com/bimmerbailey/logsheet/internal/logging"
	"github.com/bimmerbailey/logsheet/internal/merge"
	"github.com/bimmerbailey/logsheet/internal/paginate"
	"github.com/bimmerbailey/logsheet/internal/parser"
	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/bimmerbailey/logsheet/internal/source"
	"github.com/bimmerbailey/logsheet/internal/tokenize"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Options are the parameters of one job.
type Options struct {
	UniqueRecords  bool
	GatherMessages bool
	ErrorsOnly     bool
	TraceOnly      bool
	StartRow       int
	FinishRow      int

	Threshold     float64
	DenyPrefixes  []string
	SheetCapacity int

	// Progress, when set, receives every byte read from the input files.
	Progress io.Writer
}

// OptionsFromConfig returns the job defaults held in cfg. The result does
// not share memory with cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	c := cfg.Clone()
	deny := c.TraceDenyPrefixes
	if deny == nil {
		deny = config.DefaultTraceDenyPrefixes()
	}
	return Options{
		UniqueRecords:  c.Parse.UniqueRecords,
		GatherMessages: c.Parse.GatherMessages,
		ErrorsOnly:     c.Parse.ErrorsOnly,
		TraceOnly:      c.Parse.TraceOnly,
		StartRow:       c.Parse.StartRow,
		FinishRow:      c.Parse.FinishRow,
		Threshold:      c.Merge.Threshold,
		DenyPrefixes:   deny,
		SheetCapacity:  c.Sheet.Capacity,
	}
}

// Validate checks the row bounds.
func (o Options) Validate() error {
	if o.StartRow < 0 {
		return &ParamError{Msg: "start row must not be negative"}
	}
	if o.FinishRow < 0 {
		return &ParamError{Msg: "finish row must not be negative"}
	}
	return nil
}

// Stats describes a finished job.
type Stats struct {
	Files       int
	Assembled   int // records emitted by the parser
	Distinct    int // records after the uniqueness collapse
	Records     int // records after the merge
	Sheets      int
	Interrupted bool
	Elapsed     time.Duration
}

// Result is the output of Run.
type Result struct {
	ID      string
	Files   []string
	Batches [][]*record.Record
	Stats   Stats
}

// Records returns every record across all batches in order.
func (r *Result) Records() []*record.Record {
	out := make([]*record.Record, 0, r.Stats.Records)
	for _, b := range r.Batches {
		out = append(out, b...)
	}
	return out
}

// Run processes files in the given order as one logical stream. ctx is
// checked between files; a cancelled job returns ctx.Err() and no result.
func Run(ctx context.Context, files []string, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ParamError{Msg: "no input files"}
	}

	start := time.Now()
	id := uuid.NewString()
	logger := logging.FromContext(ctx).With("job_id", id)
	logger.Info("job started",
		"files", len(files),
		"unique", opts.UniqueRecords,
		"gather", opts.GatherMessages,
		"errors_only", opts.ErrorsOnly,
		"trace_only", opts.TraceOnly,
		"start_row", opts.StartRow,
		"finish_row", opts.FinishRow,
	)

	p := parser.New(parser.Options{
		ErrorsOnly:   opts.ErrorsOnly,
		TraceOnly:    opts.TraceOnly,
		DenyPrefixes: opts.DenyPrefixes,
		FinishRow:    opts.FinishRow,
	}, tokenize.New(opts.GatherMessages))

	collection := dedup.New(opts.UniqueRecords)
	emit := func(r *record.Record) error {
		collection.Add(r)
		return nil
	}

	srcOpts := source.Options{StartRow: opts.StartRow, Progress: opts.Progress}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("job cancelled", "error", err)
			return nil, err
		}
		logger.Debug("reading file", "file", file)
		if err := p.ParseFileStream(file, srcOpts, emit); err != nil {
			logger.Error("job failed", "file", file, "error", err)
			return nil, err
		}
		logger.Debug("finished file", "file", file, "records", collection.Added())
	}
	if last := p.Finish(); last != nil {
		collection.Add(last)
	}

	records := collection.Records()
	stats := Stats{
		Files:       len(files),
		Assembled:   collection.Added(),
		Distinct:    len(records),
		Interrupted: p.Interrupted(),
	}

	if opts.GatherMessages {
		engine := merge.New(opts.Threshold)
		merged, err := engine.Merge(records)
		if err != nil {
			logger.Error("job failed", "error", err)
			return nil, errors.Wrap(err, "merge similar records")
		}
		ms := engine.Stats()
		logger.Debug("merged similar records",
			"groups", ms.Groups,
			"representatives", ms.Representatives,
			"folded", ms.Folded,
			"threshold", engine.Threshold(),
		)
		records = merged
	}

	batches := paginate.Paginate(records, opts.SheetCapacity)
	stats.Records = len(records)
	stats.Sheets = len(batches)
	stats.Elapsed = time.Since(start)

	logger.Info("job finished",
		"assembled", stats.Assembled,
		"records", stats.Records,
		"sheets", stats.Sheets,
		"interrupted", stats.Interrupted,
		"elapsed", stats.Elapsed,
	)

	return &Result{ID: id, Files: files, Batches: batches, Stats: stats}, nil
}
