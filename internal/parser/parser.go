// Package parser reassembles multi-line log text into structured records.
//
// It understands one header grammar:
//
//	2024-01-01 10:00:00,000 ERROR [main] com.example.Service - message text
//
// Lines following a header extend its message; "at ..." and "... N more"
// lines form its stack trace; unstructured lines seen outside a record are
// kept as not-parsed text. "** /path/name **" and "## /path/name ##" lines
// delimit named log segments.
package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/bimmerbailey/logsheet/internal/source"
	"github.com/bimmerbailey/logsheet/internal/tokenize"
	"github.com/pkg/errors"
)

// State is the classification state between lines.
type State int

const (
	StateNeutral    State = iota
	StateMessage          // after a header; plain lines extend the message
	StateStackTrace       // after a frame; plain lines extend the trace
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateMessage:
		return "message"
	case StateStackTrace:
		return "stacktrace"
	default:
		return "neutral"
	}
}

const (
	startMarker = "** /"
	startEnd    = " **"
	endMarker   = "## /"
	framePrefix = "at "
)

var (
	headerPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3} `)
	moreFramePattern = regexp.MustCompile(`^\.\.\. \d+ more$`)
)

// messageFixes are applied in order; each step sees the previous result.
var messageFixes = [][2]string{
	{"\t\t", "\t"},
	{"\\s\t", "\\s"},
	{"\t\\s", "\\s"},
}

func normalizeMessage(s string) string {
	for _, f := range messageFixes {
		s = strings.ReplaceAll(s, f[0], f[1])
	}
	return s
}

// Options configures record assembly.
type Options struct {
	// ErrorsOnly drops records whose priority is not ERROR, FATAL or OFF.
	ErrorsOnly bool

	// TraceOnly drops stack frames starting with one of DenyPrefixes.
	TraceOnly    bool
	DenyPrefixes []string

	// FinishRow is the last line number that may open a record. Zero
	// means unbounded.
	FinishRow int
}

// Error reports a line that could not be classified or whose fields
// could not be extracted.
type Error struct {
	File string
	Line int
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *Error) Cause() error { return e.Err }

// Parser is the record assembly state machine. One Parser serves one job;
// its state carries across files so a record may start in one file and
// end in the next.
type Parser struct {
	opts      Options
	tokenizer *tokenize.Tokenizer

	file    string
	logName string
	state   State

	current *record.Record
	stack   []string
	pending []string

	pastLimit   bool
	interrupted bool
}

// New creates a Parser. tk tokenizes messages when records are emitted;
// nil means plain word splitting.
func New(opts Options, tk *tokenize.Tokenizer) *Parser {
	if tk == nil {
		tk = tokenize.New(false)
	}
	return &Parser{opts: opts, tokenizer: tk}
}

// StartFile announces the next source file. Its display name becomes the
// log name until a start marker overrides it.
func (p *Parser) StartFile(name string) {
	p.file = name
	p.logName = name
}

// State returns the current classification state.
func (p *Parser) State() State { return p.state }

// Interrupted reports whether a line past FinishRow stopped the scan.
func (p *Parser) Interrupted() bool { return p.interrupted }

// Consume classifies one line and returns the record it completed, if any.
func (p *Parser) Consume(line source.Line) (*record.Record, error) {
	if p.interrupted {
		return nil, nil
	}
	if p.opts.FinishRow != 0 && line.Number > p.opts.FinishRow {
		p.pastLimit = true
	}

	row := trim(line.Text)

	switch {
	case strings.Contains(row, startMarker):
		name, err := segmentName(row)
		if err != nil {
			return nil, p.lineError(line.Number, "read start marker", err)
		}
		p.logName = name
		if p.pending != nil {
			p.ensureCurrent(line.Number)
			p.current.Error = p.pending
		}
		p.state = StateNeutral
		return nil, nil

	case headerPattern.MatchString(row):
		if p.pastLimit {
			p.interrupted = true
			return nil, nil
		}
		emitted := p.flush()
		p.pending = nil
		p.stack = nil
		rec, err := p.parseHeader(row)
		if err != nil {
			return nil, p.lineError(line.Number, "parse header", err)
		}
		rec.RowNumber = line.Number
		p.current = rec
		p.state = StateMessage
		return emitted, nil

	case strings.HasPrefix(row, framePrefix) || moreFramePattern.MatchString(row):
		p.addFrame(row)
		p.state = StateStackTrace
		return nil, nil

	case strings.Contains(row, endMarker):
		if p.pastLimit {
			p.interrupted = true
			return nil, nil
		}
		emitted := p.flush()
		p.pending = nil
		p.stack = nil
		p.logName = ""
		p.current = nil
		p.state = StateNeutral
		return emitted, nil

	case row == "" || row == "--":
		return nil, nil
	}

	switch p.state {
	case StateMessage:
		p.current.Message = append(p.current.Message, row)
	case StateStackTrace:
		p.stack = append(p.stack, row)
	default:
		if p.pastLimit {
			p.interrupted = true
			return nil, nil
		}
		p.ensureCurrent(line.Number)
		if p.pending == nil {
			p.pending = make([]string, 0, 4)
		}
		p.pending = append(p.pending, row)
	}
	return nil, nil
}

// Finish flushes the record still under construction.
func (p *Parser) Finish() *record.Record {
	emitted := p.flush()
	p.current = nil
	p.pending = nil
	p.stack = nil
	p.state = StateNeutral
	return emitted
}

// ParseStream feeds every line of r to the state machine and calls emit
// for each completed record. It does not flush the last record; call
// Finish after the last source.
func (p *Parser) ParseStream(r io.Reader, name string, opts source.Options, emit func(*record.Record) error) error {
	p.StartFile(name)
	return source.Read(r, name, opts, p.consumeInto(emit))
}

// ParseFileStream is ParseStream over a file on disk.
func (p *Parser) ParseFileStream(path string, opts source.Options, emit func(*record.Record) error) error {
	p.StartFile(source.DisplayName(path))
	return source.Stream(path, opts, p.consumeInto(emit))
}

func (p *Parser) consumeInto(emit func(*record.Record) error) func(source.Line) error {
	return func(line source.Line) error {
		rec, err := p.Consume(line)
		if err != nil {
			return err
		}
		if rec != nil {
			return emit(rec)
		}
		return nil
	}
}

// flush completes the current record and returns it, or nil when there is
// none or the errors-only filter rejects it.
func (p *Parser) flush() *record.Record {
	rec := p.current
	if rec == nil {
		return nil
	}
	if p.opts.ErrorsOnly && !rec.Priority.Significant() {
		return nil
	}

	if p.stack != nil {
		rec.StackTrace = p.stack
		rec.StackTraceStr = record.Join(p.stack)
	}
	if len(rec.Message) > 0 {
		rec.MessageStr = record.Join(rec.Message)
		rec.MessageTokens = p.tokenizer.Tokenize(rec.MessageStr)
	}
	if p.pending != nil {
		rec.Error = p.pending
		rec.ErrorStr = record.Join(p.pending)
	}
	if rec.SimilarRows == 0 {
		rec.SimilarRows = 1
	}
	return rec
}

func (p *Parser) ensureCurrent(lineNum int) {
	if p.current == nil {
		p.current = &record.Record{RowNumber: lineNum, LogName: p.logName}
	}
}

func (p *Parser) addFrame(row string) {
	if p.stack == nil {
		p.stack = make([]string, 0, 8)
	}
	frame := strings.TrimPrefix(row, framePrefix)
	if p.opts.TraceOnly && p.denied(frame) {
		return
	}
	p.stack = append(p.stack, frame)
}

func (p *Parser) denied(frame string) bool {
	for _, prefix := range p.opts.DenyPrefixes {
		if strings.HasPrefix(frame, prefix) {
			return true
		}
	}
	return false
}

// parseHeader extracts the fixed-offset header fields. The header pattern
// guarantees the first 24 bytes.
func (p *Parser) parseHeader(row string) (*record.Record, error) {
	if len(row) < 29 {
		return nil, errors.Errorf("header too short for priority column (%d chars)", len(row))
	}

	ts, err := time.Parse("2006-01-02 15:04:05.000", row[0:10]+" "+strings.Replace(row[11:23], ",", ".", 1))
	if err != nil {
		return nil, errors.Wrap(err, "invalid timestamp")
	}

	open := strings.Index(row, "[")
	closing := strings.Index(row, "] ")
	if open < 0 || closing < 0 || open > closing {
		return nil, errors.New("missing [thread] field")
	}

	dash := strings.Index(row[closing+1:], " -")
	if dash < 0 {
		return nil, errors.New("missing \" -\" after category")
	}
	dash += closing + 1

	rec := &record.Record{
		LogName:   p.logName,
		Timestamp: ts,
		Priority:  config.ParsePriority(row[24:29]),
		Thread:    trim(row[open+1 : closing]),
		Category:  trim(row[closing+1 : dash]),
	}

	msg := trim(normalizeMessage(row[dash+2:]))
	if msg != "" {
		rec.Message = []string{msg}
	}
	return rec, nil
}

func (p *Parser) lineError(lineNum int, op string, err error) error {
	return &Error{File: p.file, Line: lineNum, Op: op, Err: err}
}

// segmentName extracts "name" from a "** /some/path/name **" marker.
func segmentName(row string) (string, error) {
	begin := strings.LastIndex(row, "/") + 1
	end := strings.Index(row, startEnd)
	if end < 0 || begin > end {
		return "", errors.Errorf("malformed segment marker %q", row)
	}
	return row[begin:end], nil
}

// trim strips leading and trailing spaces and control characters.
func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
}
