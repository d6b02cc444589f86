package cmd

import (
	"github.com/bimmerbailey/logsheet/internal/output"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show [flags] [path...]",
	Short: "Print assembled records to the terminal",
	Long: `Run the same job as parse but print the records instead of writing a
workbook. Text output is colored by priority when stdout is a terminal.

Examples:
  logsheet show /var/log/app/server.log
  logsheet show --errors-only -f table logs/
  logsheet show --gather --unique -f json 'logs/*.log' | jq '.[0]'`,
	RunE: runShow,
}

func init() {
	addJobFlags(showCmd)
	showCmd.Flags().String("color", "auto", "colorize text output (auto, always, never)")
	showCmd.Flags().Int("limit", 0, "print at most this many records (0 = all)")

	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return errors.Errorf("--limit must not be negative: %d", limit)
	}
	color, _ := cmd.Flags().GetString("color")

	res, err := runConfiguredJob(cmd, args)
	if err != nil {
		return err
	}

	records := res.Records()
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	w := output.New(cmd.OutOrStdout(), output.ParseFormat(viper.GetString("format")), output.ParseColorMode(color))
	return w.WriteRecords(records)
}
