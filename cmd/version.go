package cmd

import (
	"fmt"
	"runtime"

	"github.com/bimmerbailey/logsheet/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
	Go      string `json:"go"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{Version: version, Commit: commit, Built: date, Go: runtime.Version()}
		if output.ParseFormat(viper.GetString("format")) == output.FormatJSON {
			return output.New(cmd.OutOrStdout(), output.FormatJSON, output.ColorNever).WriteJSON(info)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "logsheet %s (commit: %s, built: %s, %s)\n", info.Version, info.Commit, info.Built, info.Go)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
