package cmd

import (
	"context"
	"os"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/job"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// defaultOutput names the workbook of a multi-file run.
const defaultOutput = "logsheet" + job.WorkbookExt

// addJobFlags registers the per-job flags shared by parse, show, stats
// and watch. Unset flags fall back to the configuration.
func addJobFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("unique", false, "collapse identical records and count them")
	f.Bool("gather", false, "merge messages that differ only in variable values")
	f.Bool("errors-only", false, "keep only ERROR, FATAL and OFF records")
	f.Bool("trace-only", false, "drop stack frames of infrastructure packages")
	f.Int("start-row", 0, "first line number read in each file")
	f.Int("finish-row", 0, "last line number that may open a record (0 = no limit)")
	f.Float64("threshold", config.DefaultThreshold, "share of equal tokens above which messages merge")
	f.String("dir", "", "read every file in this directory")
	f.String("name", "", "read only this file inside --dir")
}

// jobOptions merges the configured job defaults with explicitly set flags.
func jobOptions(cmd *cobra.Command, cfg *config.Config) (job.Options, error) {
	opts := job.OptionsFromConfig(cfg)
	f := cmd.Flags()

	if f.Changed("unique") {
		opts.UniqueRecords, _ = f.GetBool("unique")
	}
	if f.Changed("gather") {
		opts.GatherMessages, _ = f.GetBool("gather")
	}
	if f.Changed("errors-only") {
		opts.ErrorsOnly, _ = f.GetBool("errors-only")
	}
	if f.Changed("trace-only") {
		opts.TraceOnly, _ = f.GetBool("trace-only")
	}
	if f.Changed("start-row") {
		opts.StartRow, _ = f.GetInt("start-row")
	}
	if f.Changed("finish-row") {
		opts.FinishRow, _ = f.GetInt("finish-row")
	}
	if f.Changed("threshold") {
		threshold, _ := f.GetFloat64("threshold")
		if threshold <= 0 || threshold > 1 {
			return job.Options{}, errors.Errorf("--threshold must be in (0, 1]: %v", threshold)
		}
		opts.Threshold = threshold
	}

	return opts, opts.Validate()
}

// resolveInputs returns the files of a job and the default workbook name.
// --dir and --name follow the directory addressing of the HTTP endpoint;
// positional arguments may be files, directories or glob patterns.
func resolveInputs(cmd *cobra.Command, args []string) ([]string, string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	name, _ := cmd.Flags().GetString("name")

	if dir != "" {
		if len(args) > 0 {
			return nil, "", errors.New("use either --dir or path arguments, not both")
		}
		return job.Resolve(dir, name)
	}
	if name != "" {
		return nil, "", errors.New("--name requires --dir")
	}
	if len(args) == 0 {
		return nil, "", errors.New("no input given: pass paths or --dir")
	}

	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return job.Resolve(args[0], "")
		}
	}

	files, err := config.ExpandGlobs(args)
	if err != nil {
		return nil, "", err
	}
	if len(files) == 1 {
		return files, job.OutputName(files[0]), nil
	}
	return files, defaultOutput, nil
}

// runConfiguredJob loads the configuration and runs the job described by
// the command's flags and arguments.
func runConfiguredJob(cmd *cobra.Command, args []string) (*job.Result, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	opts, err := jobOptions(cmd, cfg)
	if err != nil {
		return nil, err
	}
	files, _, err := resolveInputs(cmd, args)
	if err != nil {
		return nil, err
	}
	return job.Run(commandContext(cmd), files, opts)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// totalSize sums the on-disk sizes of files. Unreadable files count as
// zero; the job reports them.
func totalSize(files []string) int64 {
	var total int64
	for _, f := range files {
		if info, err := os.Stat(f); err == nil {
			total += info.Size()
		}
	}
	return total
}
