package cmd

import (
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/bimmerbailey/logsheet/internal/server"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workbook downloads over HTTP",
	Long: `Start an HTTP server that runs parse jobs on request and returns the
workbook as a download. Settings may also come from a .env file.

Endpoints:
  POST /api/parse              job parameters as JSON body or "data" form field
  GET|POST /LogFileParserServlet?actionName=parseLogFile&data=...
  GET  /healthz

Examples:
  logsheet serve
  logsheet serve --addr 127.0.0.1:9000 --root /var/log/app`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	serveCmd.Flags().String("root", "", "only serve files below this directory")
	serveCmd.Flags().String("env-file", ".env", "environment file loaded before the configuration")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cfg.Server.Root = root
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg).Run(ctx)
}

// loadEnvFile loads path into the environment. A missing file is not an
// error; variables already set win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}
