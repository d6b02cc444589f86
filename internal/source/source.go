// Package source reads log files as numbered line sequences.
//
// Files ending in .gz or .zst are decompressed transparently. Lines are
// numbered from 1 in file order; lines before Options.StartRow are skipped
// but still counted.
package source

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Line is one raw text line of a source file.
type Line struct {
	Number int
	Text   string
}

// Options configures a Stream call.
type Options struct {
	// StartRow is the first line number passed to the callback (1-based).
	// Zero means from the first line.
	StartRow int

	// Progress, when set, receives a copy of every byte read from disk.
	Progress io.Writer
}

// AccessError reports an input file that could not be opened or read.
type AccessError struct {
	File string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AccessError) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *AccessError) Cause() error { return e.Err }

// Stream reads path line by line and calls fn for every line at or after
// opts.StartRow. An error returned by fn stops the stream and is returned
// unchanged.
func Stream(path string, opts Options, fn func(Line) error) error {
	f, err := os.Open(path)
	if err != nil {
		return &AccessError{File: filepath.Base(path), Err: err}
	}
	defer f.Close()

	var raw io.Reader = f
	if opts.Progress != nil {
		raw = io.TeeReader(f, opts.Progress)
	}

	r, closeFn, err := decompress(path, raw)
	if err != nil {
		return &AccessError{File: filepath.Base(path), Err: err}
	}
	defer closeFn()

	return scan(r, filepath.Base(path), opts.StartRow, fn)
}

// Read streams lines from an in-memory reader. name is used in errors.
func Read(r io.Reader, name string, opts Options, fn func(Line) error) error {
	return scan(r, name, opts.StartRow, fn)
}

func scan(r io.Reader, name string, startRow int, fn func(Line) error) error {
	br := bufio.NewReaderSize(r, 64*1024)

	lineNum := 0
	for {
		text, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return &AccessError{File: name, Err: errors.Wrapf(err, "line %d", lineNum+1)}
		}
		if text == "" && err == io.EOF {
			return nil
		}

		lineNum++
		if lineNum >= startRow {
			text = strings.TrimSuffix(strings.TrimSuffix(text, "\n"), "\r")
			if ferr := fn(Line{Number: lineNum, Text: text}); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

func decompress(path string, r io.Reader) (io.Reader, func(), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open gzip stream")
		}
		return gz, func() { gz.Close() }, nil
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open zstd stream")
		}
		return dec, dec.Close, nil
	default:
		return r, func() {}, nil
	}
}

// DisplayName returns the name a source file contributes as log name.
// Compression extensions are not part of it.
func DisplayName(path string) string {
	name := filepath.Base(path)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".zst":
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}
