package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/logging"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	closeLogger = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "logsheet",
	Short: "Turn application logs into spreadsheets",
	Long: `Logsheet reassembles multi-line application log entries (header line,
continuation lines, stack traces) into records and writes them to an
Excel workbook, optionally collapsing duplicates and merging messages
that differ only in variable values.

Examples:
  logsheet parse /var/log/app/server.log
  logsheet parse --gather --unique --output report.xlsx 'logs/*.log'
  logsheet show --errors-only -f table /var/log/app/server.log
  logsheet stats --gather logs/
  logsheet serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		closeFn, err := logging.Setup(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		closeLogger = closeFn
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogger()
	},
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.logsheet.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().String("log-level", "warn", "diagnostic log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "diagnostic log format (text, json)")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".logsheet")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LOGSHEET")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// setDefaults registers every configuration key so that environment
// variables reach viper.Unmarshal.
func setDefaults() {
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)

	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age_days", 28)
	viper.SetDefault("log.compress", false)

	viper.SetDefault("parse.unique_records", false)
	viper.SetDefault("parse.gather_messages", false)
	viper.SetDefault("parse.errors_only", false)
	viper.SetDefault("parse.trace_only", false)
	viper.SetDefault("parse.start_row", 0)
	viper.SetDefault("parse.finish_row", 0)

	viper.SetDefault("merge.threshold", config.DefaultThreshold)
	viper.SetDefault("trace_deny_prefixes", config.DefaultTraceDenyPrefixes())
	viper.SetDefault("sheet.capacity", config.DefaultSheetCapacity)

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.root", "")
	viper.SetDefault("server.timeout", "0s")
}

// loadConfig reads the merged flag, env and file settings.
func loadConfig() (*config.Config, error) {
	setDefaults()

	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}
