// Package record defines the structured log record produced by the
// parser and consumed by the dedup, merge and rendering stages.
package record

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bimmerbailey/logsheet/internal/config"
)

// LineSeparator joins multi-line fields.
const LineSeparator = "\n"

// Record is one reassembled log entry.
type Record struct {
	RowNumber int             `json:"row"`
	LogName   string          `json:"log_name,omitempty"`
	Timestamp time.Time       `json:"-"`
	Priority  config.Priority `json:"priority"`
	Thread    string          `json:"thread,omitempty"`
	Category  string          `json:"category,omitempty"`

	Message       []string `json:"-"`
	MessageStr    string   `json:"message,omitempty"`
	StackTrace    []string `json:"-"`
	StackTraceStr string   `json:"stack_trace,omitempty"`
	Error         []string `json:"-"`
	ErrorStr      string   `json:"not_parsed,omitempty"`

	MessageTokens    []string                    `json:"-"`
	MessageValues    map[int]map[string]struct{} `json:"-"`
	MessageValuesStr string                      `json:"message_values,omitempty"`

	SimilarRows int `json:"similar_rows"`
}

// Key is the identity of a record for uniqueness collapsing.
type Key struct {
	Category      string
	Priority      config.Priority
	MessageStr    string
	StackTraceStr string
}

// GroupKey is the coarse merge grouping key. It ignores message content
// so messages can be compared token by token inside a group.
type GroupKey struct {
	Priority      config.Priority
	Category      string
	StackTraceStr string
}

// Key returns the identity of the record.
func (r *Record) Key() Key {
	return Key{
		Category:      r.Category,
		Priority:      r.Priority,
		MessageStr:    r.MessageStr,
		StackTraceStr: r.StackTraceStr,
	}
}

// GroupKey returns the merge grouping key of the record.
func (r *Record) GroupKey() GroupKey {
	return GroupKey{
		Priority:      r.Priority,
		Category:      r.Category,
		StackTraceStr: r.StackTraceStr,
	}
}

// HasTimestamp reports whether the record was started by a header line.
func (r *Record) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// Date renders the header date, or "" for headerless records.
func (r *Record) Date() string {
	if !r.HasTimestamp() {
		return ""
	}
	return r.Timestamp.Format("2006-01-02")
}

// Time renders the header time with millisecond precision, or "".
func (r *Record) Time() string {
	if !r.HasTimestamp() {
		return ""
	}
	return r.Timestamp.Format("15:04:05,000")
}

// Placeholder returns the token that replaces a differing position.
func Placeholder(index int) string {
	return fmt.Sprintf("${%d}", index)
}

// AddValue records a literal observed at a token position.
func (r *Record) AddValue(index int, values ...string) {
	if r.MessageValues == nil {
		r.MessageValues = make(map[int]map[string]struct{})
	}
	set, ok := r.MessageValues[index]
	if !ok {
		set = make(map[string]struct{}, len(values))
		r.MessageValues[index] = set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
}

// Values returns the sorted literals observed at a token position.
func (r *Record) Values(index int) []string {
	set := r.MessageValues[index]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RenderValues formats MessageValues as "${idx} = v1 / v2" lines in
// ascending index order.
func (r *Record) RenderValues() string {
	if len(r.MessageValues) == 0 {
		return ""
	}
	indexes := make([]int, 0, len(r.MessageValues))
	for idx := range r.MessageValues {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	lines := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		lines = append(lines, Placeholder(idx)+" = "+strings.Join(r.Values(idx), " / "))
	}
	return strings.Join(lines, LineSeparator)
}

// Join concatenates lines with LineSeparator.
func Join(lines []string) string {
	return strings.Join(lines, LineSeparator)
}
