// Package output renders records and summaries for the terminal. It
// supports text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
	color  ColorMode
}

// New creates a new output Writer. Text output is colorized according to
// mode.
func New(w io.Writer, format Format, mode ColorMode) *Writer {
	return &Writer{w: w, format: format, color: mode}
}

// recordView is the JSON shape of a record.
type recordView struct {
	Row           int             `json:"row"`
	LogName       string          `json:"log_name,omitempty"`
	Date          string          `json:"date,omitempty"`
	Time          string          `json:"time,omitempty"`
	Priority      config.Priority `json:"priority"`
	Thread        string          `json:"thread,omitempty"`
	Category      string          `json:"category,omitempty"`
	Message       string          `json:"message,omitempty"`
	MessageValues string          `json:"message_values,omitempty"`
	StackTrace    string          `json:"stack_trace,omitempty"`
	SimilarRows   int             `json:"similar_rows"`
	NotParsed     string          `json:"not_parsed,omitempty"`
}

func viewOf(r *record.Record) recordView {
	return recordView{
		Row:           r.RowNumber,
		LogName:       r.LogName,
		Date:          r.Date(),
		Time:          r.Time(),
		Priority:      r.Priority,
		Thread:        r.Thread,
		Category:      r.Category,
		Message:       r.MessageStr,
		MessageValues: r.MessageValuesStr,
		StackTrace:    r.StackTraceStr,
		SimilarRows:   r.SimilarRows,
		NotParsed:     r.ErrorStr,
	}
}

// WriteRecords outputs records in the configured format.
func (wr *Writer) WriteRecords(records []*record.Record) error {
	switch wr.format {
	case FormatJSON:
		views := make([]recordView, len(records))
		for i, r := range records {
			views[i] = viewOf(r)
		}
		return wr.WriteJSON(views)
	case FormatTable:
		return wr.writeTable(records)
	default:
		return wr.writeText(records)
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (wr *Writer) writeText(records []*record.Record) error {
	colorize := shouldColorize(wr.color, wr.w)
	for _, r := range records {
		if _, err := fmt.Fprintln(wr.w, FormatRecord(r, colorize)); err != nil {
			return err
		}
	}
	return nil
}

// FormatRecord renders a record as a header line followed by indented
// value, stack and not-parsed lines.
func FormatRecord(r *record.Record, colorize bool) string {
	var b strings.Builder
	if r.HasTimestamp() {
		fmt.Fprintf(&b, "%s %s %-5s [%s] %s - %s", r.Date(), r.Time(), r.Priority, r.Thread, r.Category, r.MessageStr)
	} else {
		fmt.Fprintf(&b, "%s:%d", r.LogName, r.RowNumber)
	}
	if r.SimilarRows > 1 {
		fmt.Fprintf(&b, " (x%d)", r.SimilarRows)
	}
	head := b.String()
	if colorize {
		head = ColorizeLine(r.Priority, head)
	}

	lines := []string{head}
	for _, field := range []string{r.MessageValuesStr, r.StackTraceStr, r.ErrorStr} {
		if field == "" {
			continue
		}
		for _, l := range strings.Split(field, record.LineSeparator) {
			lines = append(lines, "    "+l)
		}
	}
	return strings.Join(lines, "\n")
}

func (wr *Writer) writeTable(records []*record.Record) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tPRIORITY\tTIME\tCATEGORY\tSIMILAR\tMESSAGE")
	fmt.Fprintln(tw, "---\t--------\t----\t--------\t-------\t-------")

	for _, r := range records {
		msg := firstLine(r.MessageStr)
		if msg == "" {
			msg = firstLine(r.ErrorStr)
		}
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", r.RowNumber, r.Priority, r.Time(), r.Category, r.SimilarRows, msg)
	}

	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.Index(s, record.LineSeparator); i >= 0 {
		return s[:i]
	}
	return s
}
