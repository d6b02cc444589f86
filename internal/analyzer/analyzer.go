// Package analyzer summarizes a parsed record set: priority distribution,
// time range, error rate, and the most repeated messages.
package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/bimmerbailey/logsheet/internal/record"
)

// NoPriority labels records that had no header line.
const NoPriority = "(none)"

// Summary holds aggregate statistics for a set of records. Counts weighted
// by SimilarRows are occurrences of source entries; unweighted counts are
// rows of the output.
type Summary struct {
	Records        int            `json:"records"`
	Occurrences    int            `json:"occurrences"`
	PriorityCounts map[string]int `json:"priority_counts"`
	NotParsed      int            `json:"not_parsed"`
	WithStackTrace int            `json:"with_stack_trace"`
	Templates      int            `json:"templates"`
	FirstEntry     time.Time      `json:"first_entry,omitempty"`
	LastEntry      time.Time      `json:"last_entry,omitempty"`
	ErrorRate      float64        `json:"error_rate"`
	TopMessages    []MessageCount `json:"top_messages,omitempty"`
}

// MessageCount is a message with its occurrence count.
type MessageCount struct {
	Row      int    `json:"row"`
	Priority string `json:"priority"`
	Message  string `json:"message"`
	Count    int    `json:"count"`
}

// GroupedResult represents records grouped by a field value.
type GroupedResult struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TimeWindowStats holds statistics for a time window.
type TimeWindowStats struct {
	Start         time.Time      `json:"start"`
	End           time.Time      `json:"end"`
	Count         int            `json:"count"`
	Priorities    map[string]int `json:"priorities"`
	ErrorCount    int            `json:"error_count"`
	ErrorPercent  float64        `json:"error_percent"`
	ChangePercent float64        `json:"change_percent"` // Change from previous window
}

// Analyzer computes summaries over records.
type Analyzer struct{}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

func priorityKey(r *record.Record) string {
	if s := r.Priority.String(); s != "" {
		return s
	}
	return NoPriority
}

func weight(r *record.Record) int {
	if r.SimilarRows < 1 {
		return 1
	}
	return r.SimilarRows
}

// Summarize calculates aggregate statistics with the topN most repeated
// messages.
func (a *Analyzer) Summarize(records []*record.Record, topN int) Summary {
	s := Summary{
		Records:        len(records),
		PriorityCounts: make(map[string]int),
	}
	if len(records) == 0 {
		return s
	}

	errorCount := 0
	for _, r := range records {
		n := weight(r)
		s.Occurrences += n
		s.PriorityCounts[priorityKey(r)] += n
		if r.Priority.Significant() {
			errorCount += n
		}
		if r.ErrorStr != "" {
			s.NotParsed++
		}
		if r.StackTraceStr != "" {
			s.WithStackTrace++
		}
		if r.MessageValuesStr != "" {
			s.Templates++
		}

		if r.HasTimestamp() {
			if s.FirstEntry.IsZero() || r.Timestamp.Before(s.FirstEntry) {
				s.FirstEntry = r.Timestamp
			}
			if s.LastEntry.IsZero() || r.Timestamp.After(s.LastEntry) {
				s.LastEntry = r.Timestamp
			}
		}
	}

	s.ErrorRate = float64(errorCount) / float64(s.Occurrences)
	s.TopMessages = topMessages(records, topN)
	return s
}

// topMessages returns the n records with the highest occurrence counts.
func topMessages(records []*record.Record, n int) []MessageCount {
	msgs := make([]MessageCount, 0, len(records))
	for _, r := range records {
		if r.MessageStr == "" {
			continue
		}
		msgs = append(msgs, MessageCount{
			Row:      r.RowNumber,
			Priority: priorityKey(r),
			Message:  r.MessageStr,
			Count:    weight(r),
		})
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Count != msgs[j].Count {
			return msgs[i].Count > msgs[j].Count
		}
		return msgs[i].Row < msgs[j].Row
	})

	if len(msgs) > n {
		msgs = msgs[:n]
	}
	return msgs
}

// GroupBy groups occurrences by a field and returns the top N groups.
// Supported fields: "priority", "category", "thread", "log".
func (a *Analyzer) GroupBy(records []*record.Record, field string, topN int) ([]GroupedResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	groups := make(map[string]int)
	total := 0
	for _, r := range records {
		var key string
		switch field {
		case "priority":
			key = priorityKey(r)
		case "category":
			key = r.Category
		case "thread":
			key = r.Thread
		case "log":
			key = r.LogName
		default:
			return nil, fmt.Errorf("unsupported group-by field: %s (must be 'priority', 'category', 'thread', or 'log')", field)
		}
		if key == "" {
			key = "(unknown)"
		}
		n := weight(r)
		groups[key] += n
		total += n
	}

	result := make([]GroupedResult, 0, len(groups))
	for key, count := range groups {
		result = append(result, GroupedResult{
			Key:     key,
			Count:   count,
			Percent: float64(count) * 100 / float64(total),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})

	if len(result) > topN {
		result = result[:topN]
	}
	return result, nil
}

// AnalyzeByWindow splits timestamped records into time windows. A merged
// record counts all its occurrences in the window of its own timestamp.
func (a *Analyzer) AnalyzeByWindow(records []*record.Record, window time.Duration) []TimeWindowStats {
	if len(records) == 0 || window <= 0 {
		return nil
	}

	var minTime, maxTime time.Time
	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		if minTime.IsZero() || r.Timestamp.Before(minTime) {
			minTime = r.Timestamp
		}
		if maxTime.IsZero() || r.Timestamp.After(maxTime) {
			maxTime = r.Timestamp
		}
	}
	if minTime.IsZero() {
		return nil
	}

	windowStart := minTime.Truncate(window)
	var windows []TimeWindowStats
	for current := windowStart; !current.After(maxTime); current = current.Add(window) {
		windows = append(windows, TimeWindowStats{
			Start:      current,
			End:        current.Add(window),
			Priorities: make(map[string]int),
		})
	}

	for _, r := range records {
		if !r.HasTimestamp() {
			continue
		}
		idx := int(r.Timestamp.Sub(windowStart) / window)
		if idx < 0 || idx >= len(windows) {
			continue
		}
		n := weight(r)
		windows[idx].Count += n
		windows[idx].Priorities[priorityKey(r)] += n
		if r.Priority.Significant() {
			windows[idx].ErrorCount += n
		}
	}

	for i := range windows {
		if windows[i].Count > 0 {
			windows[i].ErrorPercent = float64(windows[i].ErrorCount) * 100 / float64(windows[i].Count)
		}
		if i > 0 && windows[i-1].Count > 0 {
			windows[i].ChangePercent = float64(windows[i].Count-windows[i-1].Count) * 100 / float64(windows[i-1].Count)
		}
	}
	return windows
}
