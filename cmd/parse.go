package cmd

import (
	"fmt"
	"os"

	"github.com/bimmerbailey/logsheet/internal/job"
	"github.com/bimmerbailey/logsheet/internal/output"
	"github.com/bimmerbailey/logsheet/internal/workbook"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] [path...]",
	Short: "Convert log files into an Excel workbook",
	Long: `Reassemble log entries from the given files and write them to a workbook,
one sheet per million records. Paths may be files, a directory, or glob
patterns; files are read in name order as one continuous log.

Examples:
  logsheet parse /var/log/app/server.log
  logsheet parse --dir /var/log/app --name server.log
  logsheet parse --gather --unique -o errors.xlsx 'logs/*.log.gz'
  logsheet parse --errors-only --trace-only --progress logs/`,
	RunE: runParse,
}

func init() {
	addJobFlags(parseCmd)
	parseCmd.Flags().StringP("output", "o", "", "workbook path (default derived from the input name)")
	parseCmd.Flags().Bool("progress", false, "show a progress bar over the input bytes")

	rootCmd.AddCommand(parseCmd)
}

// parseSummary is the JSON form of a finished parse.
type parseSummary struct {
	JobID       string `json:"job_id"`
	Output      string `json:"output"`
	Bytes       int64  `json:"bytes"`
	Files       int    `json:"files"`
	Assembled   int    `json:"assembled"`
	Records     int    `json:"records"`
	Sheets      int    `json:"sheets"`
	Interrupted bool   `json:"interrupted"`
	ElapsedMS   int64  `json:"elapsed_ms"`
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := jobOptions(cmd, cfg)
	if err != nil {
		return err
	}
	files, outName, err := resolveInputs(cmd, args)
	if err != nil {
		return err
	}
	if o, _ := cmd.Flags().GetString("output"); o != "" {
		outName = o
	}

	if showProgress, _ := cmd.Flags().GetBool("progress"); showProgress {
		bar := progressbar.NewOptions64(totalSize(files),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("reading"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer func() { _ = bar.Finish() }()
		opts.Progress = bar
	}

	res, err := job.Run(commandContext(cmd), files, opts)
	if err != nil {
		return err
	}
	if err := workbook.SaveFile(outName, res.Batches); err != nil {
		return err
	}

	var size int64
	if info, err := os.Stat(outName); err == nil {
		size = info.Size()
	}

	format := output.ParseFormat(viper.GetString("format"))
	if format == output.FormatJSON {
		return output.New(cmd.OutOrStdout(), format, output.ColorNever).WriteJSON(parseSummary{
			JobID:       res.ID,
			Output:      outName,
			Bytes:       size,
			Files:       res.Stats.Files,
			Assembled:   res.Stats.Assembled,
			Records:     res.Stats.Records,
			Sheets:      res.Stats.Sheets,
			Interrupted: res.Stats.Interrupted,
			ElapsedMS:   res.Stats.Elapsed.Milliseconds(),
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s (%s)\n", outName, humanize.Bytes(uint64(size)))
	fmt.Fprintf(out, "  Files:     %s\n", humanize.Comma(int64(res.Stats.Files)))
	fmt.Fprintf(out, "  Assembled: %s\n", humanize.Comma(int64(res.Stats.Assembled)))
	fmt.Fprintf(out, "  Records:   %s\n", humanize.Comma(int64(res.Stats.Records)))
	fmt.Fprintf(out, "  Sheets:    %d\n", res.Stats.Sheets)
	if res.Stats.Interrupted {
		fmt.Fprintf(out, "  Stopped at finish row %s\n", humanize.Comma(int64(opts.FinishRow)))
	}
	if viper.GetBool("verbose") {
		fmt.Fprintf(out, "  Job:       %s (%s)\n", res.ID, res.Stats.Elapsed)
	}
	return nil
}
