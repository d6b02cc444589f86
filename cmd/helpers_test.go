package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// sampleLog has a preamble line, two ERROR messages that differ in one
// value, an ERROR with a stack trace and one INFO and one WARN record.
var sampleLog = []string{
	"log opened",
	"2024-01-01 10:00:00,000 INFO  [main] com.example.App - started",
	"2024-01-01 10:00:01,000 ERROR [main] com.example.Login - User 42 failed to login from web",
	"2024-01-01 10:00:02,000 ERROR [main] com.example.Login - User 99 failed to login from web",
	"2024-01-01 10:00:03,000 ERROR [w-1] com.example.Pool - Connection lost",
	"\tat com.example.Pool.take(Pool.java:10)",
	"\tat java.lang.Thread.run(Thread.java:750)",
	"2024-01-01 10:00:04,000 WARN  [w-1] com.example.Pool - slow",
}

func writeTempFile(t *testing.T, dir string, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

// newJobTestCmd builds a bare command carrying the job flags, so run
// functions can be called without the global command tree.
func newJobTestCmd(use string, out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{Use: use}
	cmd.SetOut(out)
	cmd.SetErr(out)
	addJobFlags(cmd)
	return cmd
}

func resetViper(format string) {
	viper.Reset()
	viper.Set("format", format)
}
