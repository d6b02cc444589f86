package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/bimmerbailey/logsheet/internal/source"
	"github.com/bimmerbailey/logsheet/internal/tokenize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T, p *Parser, name, text string) []*record.Record {
	t.Helper()
	var out []*record.Record
	err := p.ParseStream(strings.NewReader(text), name, source.Options{}, func(r *record.Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	if last := p.Finish(); last != nil {
		out = append(out, last)
	}
	return out
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestParser_SingleHeader(t *testing.T) {
	p := New(Options{}, nil)
	recs := parseAll(t, p, "app.log", "2024-01-01 10:00:00,123 ERROR [main] com.x.Y - boom\n")

	require.Len(t, recs, 1)
	r := recs[0]
	assert.Equal(t, 1, r.RowNumber)
	assert.Equal(t, "app.log", r.LogName)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 123_000_000, time.UTC), r.Timestamp)
	assert.Equal(t, "2024-01-01", r.Date())
	assert.Equal(t, "10:00:00,123", r.Time())
	assert.Equal(t, config.PriorityError, r.Priority)
	assert.Equal(t, "main", r.Thread)
	assert.Equal(t, "com.x.Y", r.Category)
	assert.Equal(t, []string{"boom"}, r.Message)
	assert.Equal(t, "boom", r.MessageStr)
	assert.Equal(t, []string{"boom"}, r.MessageTokens)
	assert.Empty(t, r.StackTraceStr)
	assert.Empty(t, r.ErrorStr)
	assert.Equal(t, 1, r.SimilarRows)
}

func TestParser_ContinuationAndStackTrace(t *testing.T) {
	text := lines(
		"2024-01-01 10:00:00,000 ERROR [worker-1] com.x.Service - request failed",
		"  caused by upstream",
		"java.lang.IllegalStateException: bad",
		"\tat com.x.Service.run(Service.java:10)",
		"\tat java.lang.Thread.run(Thread.java:750)",
		"continuation of trace",
		"... 3 more",
		"2024-01-01 10:00:01,000 INFO [main] com.x.Other - next",
	)
	recs := parseAll(t, New(Options{}, nil), "app.log", text)

	require.Len(t, recs, 2)
	first := recs[0]
	assert.Equal(t, []string{"request failed", "caused by upstream", "java.lang.IllegalStateException: bad"}, first.Message)
	assert.Equal(t, "request failed\ncaused by upstream\njava.lang.IllegalStateException: bad", first.MessageStr)
	assert.Equal(t, []string{
		"com.x.Service.run(Service.java:10)",
		"java.lang.Thread.run(Thread.java:750)",
		"continuation of trace",
		"... 3 more",
	}, first.StackTrace)
	assert.Equal(t, strings.Join(first.StackTrace, "\n"), first.StackTraceStr)

	second := recs[1]
	assert.Equal(t, 8, second.RowNumber)
	assert.Equal(t, config.PriorityInfo, second.Priority)
	assert.Empty(t, second.StackTrace)
}

func TestParser_HeaderFields(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		priority config.Priority
		thread   string
		category string
		message  string
	}{
		{
			name:     "padded priority",
			line:     "2024-01-01 10:00:00,000 WARN  [pool-2-thread-1] org.app.Job - slow",
			priority: config.PriorityWarn,
			thread:   "pool-2-thread-1",
			category: "org.app.Job",
			message:  "slow",
		},
		{
			name:     "no message",
			line:     "2024-01-01 10:00:00,000 INFO  [main] org.app.Job -",
			priority: config.PriorityInfo,
			thread:   "main",
			category: "org.app.Job",
		},
		{
			name:     "tabs are collapsed",
			line:     "2024-01-01 10:00:00,000 DEBUG [main] org.app.Job - a\t\tb",
			priority: config.PriorityDebug,
			thread:   "main",
			category: "org.app.Job",
			message:  "a\tb",
		},
		{
			name:     "escaped space absorbs a doubled tab",
			line:     "2024-01-01 10:00:00,000 DEBUG [main] org.app.Job - a\\s\t\tb",
			priority: config.PriorityDebug,
			thread:   "main",
			category: "org.app.Job",
			message:  "a\\sb",
		},
		{
			name:     "doubled tab before escaped space",
			line:     "2024-01-01 10:00:00,000 DEBUG [main] org.app.Job - a\t\t\\sb",
			priority: config.PriorityDebug,
			thread:   "main",
			category: "org.app.Job",
			message:  "a\\sb",
		},
		{
			name:     "unknown priority becomes debug",
			line:     "2024-01-01 10:00:00,000 NOISE [main] org.app.Job - x",
			priority: config.PriorityDebug,
			thread:   "main",
			category: "org.app.Job",
			message:  "x",
		},
		{
			name:     "dash inside message",
			line:     "2024-01-01 10:00:00,000 FATAL [main] org.app.Job - a - b",
			priority: config.PriorityFatal,
			thread:   "main",
			category: "org.app.Job",
			message:  "a - b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := parseAll(t, New(Options{}, nil), "app.log", tt.line+"\n")
			require.Len(t, recs, 1)
			r := recs[0]
			assert.Equal(t, tt.priority, r.Priority)
			assert.Equal(t, tt.thread, r.Thread)
			assert.Equal(t, tt.category, r.Category)
			assert.Equal(t, tt.message, r.MessageStr)
		})
	}
}

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a\t\tb", "a\tb"},
		{"a\\s\tb", "a\\sb"},
		{"a\t\\sb", "a\\sb"},
		{"a\\s\t\tb", "a\\sb"},
		{"a\t\t\\sb", "a\\sb"},
		{"a\t\t\t\tb", "a\t\tb"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMessage(tt.in))
		})
	}
}

func TestParser_NotParsedPreamble(t *testing.T) {
	text := lines(
		"Starting application",
		"config loaded",
		"2024-01-01 10:00:00,000 INFO [main] c.A - up",
	)
	recs := parseAll(t, New(Options{}, nil), "app.log", text)

	require.Len(t, recs, 2)
	pre := recs[0]
	assert.Equal(t, 1, pre.RowNumber)
	assert.Equal(t, config.PriorityNone, pre.Priority)
	assert.False(t, pre.HasTimestamp())
	assert.Equal(t, "Starting application\nconfig loaded", pre.ErrorStr)
	assert.Equal(t, "app.log", pre.LogName, "preamble rows keep their source name")
	assert.Empty(t, pre.MessageStr)
	assert.Equal(t, 3, recs[1].RowNumber)
}

func TestParser_BlankAndSeparatorLinesIgnored(t *testing.T) {
	text := lines(
		"",
		"--",
		"2024-01-01 10:00:00,000 INFO [main] c.A - up",
		"",
		"--",
		"more",
	)
	recs := parseAll(t, New(Options{}, nil), "app.log", text)

	require.Len(t, recs, 1)
	assert.Equal(t, []string{"up", "more"}, recs[0].Message)
}

func TestParser_SegmentMarkers(t *testing.T) {
	text := lines(
		"** /opt/app/logs/server.log **",
		"2024-01-01 10:00:00,000 ERROR [main] c.A - inside",
		"## /opt/app/logs/server.log ##",
		"2024-01-01 10:00:01,000 ERROR [main] c.A - outside",
	)
	recs := parseAll(t, New(Options{}, nil), "bundle.txt", text)

	require.Len(t, recs, 2)
	assert.Equal(t, "server.log", recs[0].LogName)
	assert.Equal(t, "", recs[1].LogName)
}

func TestParser_MalformedSegmentMarker(t *testing.T) {
	p := New(Options{}, nil)
	err := p.ParseStream(strings.NewReader("** /opt/app/logs/server.log\n"), "bundle.txt", source.Options{},
		func(*record.Record) error { return nil })

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bundle.txt", perr.File)
	assert.Equal(t, 1, perr.Line)
	assert.Equal(t, "read start marker", perr.Op)
}

func TestParser_MalformedHeader(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too short", "2024-01-01 10:00:00,000 ERR"},
		{"bad month", "2024-13-01 10:00:00,000 ERROR [main] c.A - x"},
		{"no thread", "2024-01-01 10:00:00,000 ERROR main c.A - x"},
		{"no dash", "2024-01-01 10:00:00,000 ERROR [main] c.A x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(Options{}, nil)
			err := p.ParseStream(strings.NewReader("ok line\n"+tt.line+"\n"), "app.log", source.Options{},
				func(*record.Record) error { return nil })

			var perr *Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, 2, perr.Line)
			assert.Equal(t, "parse header", perr.Op)
			assert.Contains(t, err.Error(), "app.log:2")
		})
	}
}

func TestParser_ErrorsOnly(t *testing.T) {
	text := lines(
		"preamble",
		"2024-01-01 10:00:00,000 INFO [main] c.A - info",
		"2024-01-01 10:00:01,000 ERROR [main] c.A - error",
		"2024-01-01 10:00:02,000 WARN  [main] c.A - warn",
		"2024-01-01 10:00:03,000 FATAL [main] c.A - fatal",
		"2024-01-01 10:00:04,000 OFF   [main] c.A - off",
	)
	recs := parseAll(t, New(Options{ErrorsOnly: true}, nil), "app.log", text)

	var got []string
	for _, r := range recs {
		assert.True(t, r.Priority.Significant())
		got = append(got, r.MessageStr)
	}
	assert.Equal(t, []string{"error", "fatal", "off"}, got)
}

func TestParser_TraceOnly(t *testing.T) {
	text := lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.A - boom",
		"at com.example.Service.run(Service.java:10)",
		"at java.lang.Thread.run(Thread.java:750)",
		"at sun.reflect.NativeMethodAccessorImpl.invoke0(Native Method)",
		"at org.springframework.Foo.bar(Foo.java:1)",
		"at com.zaxxer.hikari.pool.HikariPool.getConnection(HikariPool.java:1)",
	)
	p := New(Options{TraceOnly: true, DenyPrefixes: config.DefaultTraceDenyPrefixes()}, nil)
	recs := parseAll(t, p, "app.log", text)

	require.Len(t, recs, 1)
	assert.Equal(t, []string{"com.example.Service.run(Service.java:10)"}, recs[0].StackTrace)
}

func TestParser_TraceOnlyAllDenied(t *testing.T) {
	text := lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.A - boom",
		"at java.lang.Thread.run(Thread.java:750)",
	)
	p := New(Options{TraceOnly: true, DenyPrefixes: config.DefaultTraceDenyPrefixes()}, nil)
	recs := parseAll(t, p, "app.log", text)

	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].StackTrace)
	assert.Empty(t, recs[0].StackTraceStr)
}

func TestParser_FinishRow(t *testing.T) {
	text := lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.A - one",
		"continuation",
		"2024-01-01 10:00:01,000 ERROR [main] c.A - two",
		"past the limit but still a continuation",
		"2024-01-01 10:00:02,000 ERROR [main] c.A - three",
		"2024-01-01 10:00:03,000 ERROR [main] c.A - four",
	)
	p := New(Options{FinishRow: 3}, nil)
	recs := parseAll(t, p, "app.log", text)

	require.Len(t, recs, 2)
	assert.Equal(t, 1, recs[0].RowNumber)
	assert.Equal(t, 3, recs[1].RowNumber)
	assert.Equal(t, []string{"two", "past the limit but still a continuation"}, recs[1].Message)
	assert.True(t, p.Interrupted())
	for _, r := range recs {
		assert.LessOrEqual(t, r.RowNumber, 3)
	}
}

func TestParser_InterruptSpansFiles(t *testing.T) {
	p := New(Options{FinishRow: 1}, nil)
	first := parseAll(t, p, "a.log", lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.A - a1",
		"2024-01-01 10:00:01,000 ERROR [main] c.A - a2",
	))
	second := parseAll(t, p, "b.log", lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.B - b1",
	))

	require.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestParser_StartRow(t *testing.T) {
	text := lines(
		"2024-01-01 10:00:00,000 ERROR [main] c.A - skipped",
		"2024-01-01 10:00:01,000 ERROR [main] c.A - kept",
	)
	p := New(Options{}, nil)
	var out []*record.Record
	err := p.ParseStream(strings.NewReader(text), "app.log", source.Options{StartRow: 2}, func(r *record.Record) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	out = append(out, p.Finish())

	require.Len(t, out, 1)
	assert.Equal(t, 2, out[0].RowNumber)
	assert.Equal(t, "kept", out[0].MessageStr)
}

func TestParser_RecordSpansFiles(t *testing.T) {
	p := New(Options{}, nil)
	var out []*record.Record
	emit := func(r *record.Record) error {
		out = append(out, r)
		return nil
	}

	require.NoError(t, p.ParseStream(strings.NewReader("2024-01-01 10:00:00,000 ERROR [main] c.A - first\n"),
		"a.log", source.Options{}, emit))
	assert.Empty(t, out)
	assert.Equal(t, StateMessage, p.State())

	require.NoError(t, p.ParseStream(strings.NewReader("carried over\n"), "b.log", source.Options{}, emit))
	last := p.Finish()

	require.NotNil(t, last)
	assert.Equal(t, "a.log", last.LogName)
	assert.Equal(t, []string{"first", "carried over"}, last.Message)
}

func TestParser_GatheredTokens(t *testing.T) {
	p := New(Options{}, tokenize.New(true))
	recs := parseAll(t, p, "app.log", "2024-01-01 10:00:00,000 INFO [main] c.A - took 1.5s\n")

	require.Len(t, recs, 1)
	assert.Equal(t, []string{"took", " ", "1.5", "s"}, recs[0].MessageTokens)
}

func TestParser_RowNumbersStrictlyIncrease(t *testing.T) {
	text := lines(
		"noise",
		"2024-01-01 10:00:00,000 ERROR [main] c.A - a",
		"at x.Y.z(Y.java:1)",
		"2024-01-01 10:00:00,000 ERROR [main] c.A - b",
		"## /x/y ##",
		"orphan",
		"2024-01-01 10:00:00,000 ERROR [main] c.A - c",
	)
	recs := parseAll(t, New(Options{}, nil), "app.log", text)

	require.Len(t, recs, 5)
	for i := 1; i < len(recs); i++ {
		assert.Greater(t, recs[i].RowNumber, recs[i-1].RowNumber)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "neutral", StateNeutral.String())
	assert.Equal(t, "message", StateMessage.String())
	assert.Equal(t, "stacktrace", StateStackTrace.String())
}
