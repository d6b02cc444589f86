package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/job"
	"github.com/bimmerbailey/logsheet/internal/logging"
	"github.com/bimmerbailey/logsheet/internal/watch"
	"github.com/bimmerbailey/logsheet/internal/workbook"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <dir|file>",
	Short: "Rebuild the workbook whenever the logs change",
	Long: `Watch a log directory or a single log file and rerun the whole job after
every change, rewriting the workbook. Changes closer together than the
debounce interval trigger a single run.

Examples:
  logsheet watch /var/log/app
  logsheet watch --gather --debounce 5s -o /srv/reports/app.xlsx /var/log/app`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addJobFlags(watchCmd)
	watchCmd.Flags().StringP("output", "o", "", "workbook path (default derived from the watched path)")
	watchCmd.Flags().String("debounce", "2s", "quiet period before a change triggers a run")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := jobOptions(cmd, cfg)
	if err != nil {
		return err
	}
	debounceStr, _ := cmd.Flags().GetString("debounce")
	debounce, err := config.ParseDuration(debounceStr)
	if err != nil {
		return fmt.Errorf("invalid --debounce: %w", err)
	}

	path := args[0]
	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		outPath = job.OutputName(path)
	}
	outPath, err = filepath.Abs(outPath)
	if err != nil {
		return err
	}

	w, err := watch.New(watch.Options{
		Path:     path,
		Debounce: debounce,
		Ignore:   workbookFiles(outPath),
		Run: func(ctx context.Context) error {
			return rebuild(ctx, cmd, path, outPath, opts)
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s, writing %s (Ctrl-C to stop)\n", path, outPath)
	return w.Watch(ctx)
}

// rebuild reruns the job over the current contents of path.
func rebuild(ctx context.Context, cmd *cobra.Command, path, outPath string, opts job.Options) error {
	var files []string
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		files, _, err = job.Resolve(path, "")
		if err != nil {
			return err
		}
		files = dropPath(files, outPath)
	} else {
		files = []string{path}
	}

	res, err := job.Run(ctx, files, opts)
	if err != nil {
		return err
	}
	if err := workbook.SaveFile(outPath, res.Batches); err != nil {
		return err
	}

	logging.FromContext(ctx).Debug("workbook rewritten", "job_id", res.ID, "path", outPath)
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s records from %s file(s) -> %s\n",
		time.Now().Format("15:04:05"),
		humanize.Comma(int64(res.Stats.Records)),
		humanize.Comma(int64(res.Stats.Files)),
		filepath.Base(outPath))
	return nil
}

// workbookFiles matches the workbook, its lock file and the temporary
// files written while saving it.
func workbookFiles(outPath string) func(string) bool {
	tmpPrefix := "." + filepath.Base(outPath) + "."
	return func(name string) bool {
		abs, err := filepath.Abs(name)
		if err != nil {
			abs = name
		}
		if abs == outPath || abs == outPath+".lock" {
			return true
		}
		return filepath.Dir(abs) == filepath.Dir(outPath) && strings.HasPrefix(filepath.Base(abs), tmpPrefix)
	}
}

func dropPath(files []string, path string) []string {
	ignore := workbookFiles(path)
	out := files[:0:0]
	for _, f := range files {
		if ignore(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}
