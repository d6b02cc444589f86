package cmd

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bimmerbailey/logsheet/internal/analyzer"
	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/output"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] [path...]",
	Short: "Summarize the assembled records",
	Long: `Display a statistical summary of the job output: record and occurrence
counts, priority distribution, time range, error rate, merged templates
and the most repeated messages.

Examples:
  logsheet stats /var/log/app/server.log
  logsheet stats --gather --unique --top 20 logs/
  logsheet stats --group-by category --window 1h -f json logs/`,
	RunE: runStats,
}

func init() {
	addJobFlags(statsCmd)
	statsCmd.Flags().Int("top", 10, "number of top messages to show")
	statsCmd.Flags().String("group-by", "", "also count occurrences by field (priority, category, thread, log)")
	statsCmd.Flags().String("window", "", "also bucket occurrences into time windows (e.g. 15m, 1h, 1d)")

	rootCmd.AddCommand(statsCmd)
}

// statsReport is the JSON form of the stats output.
type statsReport struct {
	analyzer.Summary
	Groups  []analyzer.GroupedResult   `json:"groups,omitempty"`
	Windows []analyzer.TimeWindowStats `json:"windows,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	top, _ := cmd.Flags().GetInt("top")
	if top < 0 {
		return errors.Errorf("--top must not be negative: %d", top)
	}
	groupBy, _ := cmd.Flags().GetString("group-by")
	windowStr, _ := cmd.Flags().GetString("window")

	var window time.Duration
	if windowStr != "" {
		var err error
		window, err = config.ParseDuration(windowStr)
		if err != nil {
			return errors.Wrap(err, "invalid --window")
		}
	}

	res, err := runConfiguredJob(cmd, args)
	if err != nil {
		return err
	}
	records := res.Records()

	a := analyzer.New()
	report := statsReport{Summary: a.Summarize(records, top)}
	if groupBy != "" {
		report.Groups, err = a.GroupBy(records, groupBy, top)
		if err != nil {
			return err
		}
	}
	if window > 0 {
		report.Windows = a.AnalyzeByWindow(records, window)
	}

	format := output.ParseFormat(viper.GetString("format"))
	if format == output.FormatJSON {
		return output.New(cmd.OutOrStdout(), format, output.ColorNever).WriteJSON(report)
	}
	writeStatsText(cmd.OutOrStdout(), report, groupBy)
	return nil
}

func writeStatsText(w io.Writer, r statsReport, groupBy string) {
	fmt.Fprintf(w, "Records: %s\n", humanize.Comma(int64(r.Records)))
	fmt.Fprintf(w, "Occurrences: %s\n", humanize.Comma(int64(r.Occurrences)))
	fmt.Fprintf(w, "Error Rate: %.2f%%\n", r.ErrorRate*100)
	fmt.Fprintf(w, "Merged Templates: %s\n", humanize.Comma(int64(r.Templates)))
	fmt.Fprintf(w, "With Stack Trace: %s\n", humanize.Comma(int64(r.WithStackTrace)))
	fmt.Fprintf(w, "Not Parsed: %s\n", humanize.Comma(int64(r.NotParsed)))
	if !r.FirstEntry.IsZero() {
		fmt.Fprintf(w, "Time Range: %s .. %s (%s)\n",
			r.FirstEntry.Format("2006-01-02 15:04:05"),
			r.LastEntry.Format("2006-01-02 15:04:05"),
			r.LastEntry.Sub(r.FirstEntry))
	}

	if len(r.PriorityCounts) > 0 {
		fmt.Fprintln(w, "\nPriorities:")
		keys := make([]string, 0, len(r.PriorityCounts))
		for k := range r.PriorityCounts {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return r.PriorityCounts[keys[i]] > r.PriorityCounts[keys[j]] ||
				(r.PriorityCounts[keys[i]] == r.PriorityCounts[keys[j]] && keys[i] < keys[j])
		})
		for _, k := range keys {
			fmt.Fprintf(w, "  %-6s %s\n", k, humanize.Comma(int64(r.PriorityCounts[k])))
		}
	}

	if len(r.TopMessages) > 0 {
		fmt.Fprintln(w, "\nTop Messages:")
		for i, m := range r.TopMessages {
			fmt.Fprintf(w, "  %d. [%s] %s (row %d, %s)\n", i+1, humanize.Comma(int64(m.Count)), firstLine(m.Message), m.Row, m.Priority)
		}
	}

	if len(r.Groups) > 0 {
		fmt.Fprintf(w, "\nBy %s:\n", groupBy)
		for _, g := range r.Groups {
			fmt.Fprintf(w, "  %-40s %8s  %5.1f%%\n", g.Key, humanize.Comma(int64(g.Count)), g.Percent)
		}
	}

	if len(r.Windows) > 0 {
		fmt.Fprintln(w, "\nWindows:")
		for _, win := range r.Windows {
			fmt.Fprintf(w, "  %s  %8s  errors %5.1f%%  change %+.1f%%\n",
				win.Start.Format("2006-01-02 15:04"), humanize.Comma(int64(win.Count)), win.ErrorPercent, win.ChangePercent)
		}
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}
