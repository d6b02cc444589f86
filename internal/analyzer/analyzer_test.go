package analyzer

import (
	"testing"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(m int) time.Time {
	return time.Date(2024, 1, 1, 10, m, 0, 0, time.UTC)
}

func records() []*record.Record {
	return []*record.Record{
		{RowNumber: 1, ErrorStr: "preamble", SimilarRows: 1},
		{RowNumber: 2, Timestamp: at(0), Priority: config.PriorityInfo, Category: "c.A", Thread: "main", MessageStr: "started", SimilarRows: 1},
		{RowNumber: 3, Timestamp: at(1), Priority: config.PriorityError, Category: "c.B", Thread: "main", MessageStr: "User ${2} failed",
			MessageValuesStr: "${2} = 1 / 2", StackTraceStr: "x.Y", SimilarRows: 5},
		{RowNumber: 9, Timestamp: at(7), Priority: config.PriorityWarn, Category: "c.B", Thread: "w-1", MessageStr: "slow", SimilarRows: 3},
	}
}

func TestSummarize(t *testing.T) {
	s := New().Summarize(records(), 2)

	assert.Equal(t, 4, s.Records)
	assert.Equal(t, 10, s.Occurrences)
	assert.Equal(t, map[string]int{NoPriority: 1, "INFO": 1, "ERROR": 5, "WARN": 3}, s.PriorityCounts)
	assert.Equal(t, 1, s.NotParsed)
	assert.Equal(t, 1, s.WithStackTrace)
	assert.Equal(t, 1, s.Templates)
	assert.Equal(t, at(0), s.FirstEntry)
	assert.Equal(t, at(7), s.LastEntry)
	assert.InDelta(t, 0.5, s.ErrorRate, 1e-9)

	require.Len(t, s.TopMessages, 2)
	assert.Equal(t, MessageCount{Row: 3, Priority: "ERROR", Message: "User ${2} failed", Count: 5}, s.TopMessages[0])
	assert.Equal(t, "slow", s.TopMessages[1].Message)
}

func TestSummarize_Empty(t *testing.T) {
	s := New().Summarize(nil, 5)
	assert.Equal(t, 0, s.Records)
	assert.Empty(t, s.TopMessages)
	assert.Zero(t, s.ErrorRate)
}

func TestGroupBy(t *testing.T) {
	a := New()

	got, err := a.GroupBy(records(), "category", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "c.B", got[0].Key)
	assert.Equal(t, 8, got[0].Count)
	assert.InDelta(t, 80.0, got[0].Percent, 1e-9)
	assert.Equal(t, "(unknown)", got[1].Key)

	got, err = a.GroupBy(records(), "thread", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "main", got[0].Key)

	_, err = a.GroupBy(records(), "color", 10)
	assert.Error(t, err)
}

func TestAnalyzeByWindow(t *testing.T) {
	windows := New().AnalyzeByWindow(records(), 5*time.Minute)

	require.Len(t, windows, 2)
	assert.Equal(t, 6, windows[0].Count)
	assert.Equal(t, 5, windows[0].ErrorCount)
	assert.Equal(t, 3, windows[1].Count)
	assert.Equal(t, map[string]int{"WARN": 3}, windows[1].Priorities)
	assert.InDelta(t, -50.0, windows[1].ChangePercent, 1e-9)
}

func TestAnalyzeByWindow_NoTimestamps(t *testing.T) {
	assert.Nil(t, New().AnalyzeByWindow([]*record.Record{{RowNumber: 1}}, time.Minute))
}
