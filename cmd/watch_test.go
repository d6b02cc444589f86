package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkbookFiles(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "app.xlsx")
	ignore := workbookFiles(outPath)

	assert.True(t, ignore(outPath))
	assert.True(t, ignore(outPath+".lock"))
	assert.True(t, ignore(filepath.Join(dir, ".app.xlsx.123456")))
	assert.False(t, ignore(filepath.Join(dir, "server.log")))
	assert.False(t, ignore(filepath.Join(t.TempDir(), ".app.xlsx.123456")))
}

func TestRebuildSkipsOwnWorkbook(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "a.log", sampleLog)
	outPath := filepath.Join(dir, "logs.xlsx")

	opts := job.Options{Threshold: config.DefaultThreshold, SheetCapacity: config.DefaultSheetCapacity}

	var out bytes.Buffer
	cmd := newJobTestCmd("watch", &out)

	require.NoError(t, rebuild(context.Background(), cmd, dir, outPath, opts))
	assert.Contains(t, out.String(), "6 records from 1 file(s) -> logs.xlsx")

	// The workbook now sits in the watched directory and must not be read
	// as a log on the next run.
	out.Reset()
	require.NoError(t, rebuild(context.Background(), cmd, dir, outPath, opts))
	assert.Contains(t, out.String(), "6 records from 1 file(s)")

	rows := readSheet(t, outPath, "0")
	assert.Len(t, rows, 7)
}

func TestRebuildSingleFile(t *testing.T) {
	dir := t.TempDir()
	file := writeTempFile(t, dir, "a.log", sampleLog)
	outPath := filepath.Join(t.TempDir(), "a.xlsx")

	opts := job.Options{ErrorsOnly: true, Threshold: config.DefaultThreshold, SheetCapacity: config.DefaultSheetCapacity}

	var out bytes.Buffer
	require.NoError(t, rebuild(context.Background(), newJobTestCmd("watch", &out), file, outPath, opts))
	assert.Contains(t, out.String(), "3 records")
}

func TestRebuildMissingPath(t *testing.T) {
	var out bytes.Buffer
	err := rebuild(context.Background(), newJobTestCmd("watch", &out),
		filepath.Join(t.TempDir(), "gone"), filepath.Join(t.TempDir(), "x.xlsx"), job.Options{})
	assert.Error(t, err)
}
