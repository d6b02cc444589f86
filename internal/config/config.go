// Package config provides configuration types and helpers for logsheet.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mohae/deepcopy"
)

// Config holds the application-wide configuration.
type Config struct {
	Format            string       `mapstructure:"format"`
	Verbose           bool         `mapstructure:"verbose"`
	Log               LogConfig    `mapstructure:"log"`
	Parse             ParseConfig  `mapstructure:"parse"`
	Merge             MergeConfig  `mapstructure:"merge"`
	TraceDenyPrefixes []string     `mapstructure:"trace_deny_prefixes"`
	Sheet             SheetConfig  `mapstructure:"sheet"`
	Server            ServerConfig `mapstructure:"server"`
}

// LogConfig controls logsheet's own diagnostic logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text, json
	File       string `mapstructure:"file"`   // Optional: rotate into this file instead of stderr
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ParseConfig holds the default job flags. CLI flags and request
// parameters override them per job.
type ParseConfig struct {
	UniqueRecords  bool `mapstructure:"unique_records"`
	GatherMessages bool `mapstructure:"gather_messages"`
	ErrorsOnly     bool `mapstructure:"errors_only"`
	TraceOnly      bool `mapstructure:"trace_only"`
	StartRow       int  `mapstructure:"start_row"`
	FinishRow      int  `mapstructure:"finish_row"`
}

// MergeConfig holds the similarity merge settings.
type MergeConfig struct {
	// Threshold is the fraction of equal token positions that must be
	// strictly exceeded for two messages to merge.
	Threshold float64 `mapstructure:"threshold"`
}

// SheetConfig holds the pagination settings.
type SheetConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr    string        `mapstructure:"addr"`
	Root    string        `mapstructure:"root"` // Optional: confine job paths to this directory
	Timeout time.Duration `mapstructure:"timeout"`
}

const (
	// DefaultThreshold is the conformity threshold used when none is configured.
	DefaultThreshold = 0.80
	// DefaultSheetCapacity is the maximum number of records per sheet.
	DefaultSheetCapacity = 1_000_000
)

// DefaultTraceDenyPrefixes lists the infrastructure packages whose frames
// are dropped in trace-only mode.
func DefaultTraceDenyPrefixes() []string {
	return []string{
		"java",
		"org.",
		"com.zaxxer.hikari.pool",
		"com.sun.",
		"it.sauronsoftware.",
		"sun.",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Parse.StartRow < 0 {
		return fmt.Errorf("parse.start_row must not be negative: %d", c.Parse.StartRow)
	}
	if c.Parse.FinishRow < 0 {
		return fmt.Errorf("parse.finish_row must not be negative: %d", c.Parse.FinishRow)
	}
	if c.Merge.Threshold <= 0 || c.Merge.Threshold > 1 {
		return fmt.Errorf("merge.threshold must be in (0, 1]: %v", c.Merge.Threshold)
	}
	if c.Sheet.Capacity < 1 {
		return fmt.Errorf("sheet.capacity must be positive: %d", c.Sheet.Capacity)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

// Priority represents a record severity. The zero value marks records
// without a header line.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityTrace
	PriorityDebug
	PriorityInfo
	PriorityWarn
	PriorityError
	PriorityFatal
	PriorityOff
)

// String returns the string representation of a Priority.
func (p Priority) String() string {
	switch p {
	case PriorityTrace:
		return "TRACE"
	case PriorityDebug:
		return "DEBUG"
	case PriorityInfo:
		return "INFO"
	case PriorityWarn:
		return "WARN"
	case PriorityError:
		return "ERROR"
	case PriorityFatal:
		return "FATAL"
	case PriorityOff:
		return "OFF"
	default:
		return ""
	}
}

// Significant reports whether the priority passes the errors-only filter.
func (p Priority) Significant() bool {
	return p == PriorityError || p == PriorityFatal || p == PriorityOff
}

// MarshalJSON implements json.Marshaler for Priority.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler for Priority.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*p = PriorityNone
		return nil
	}
	*p = ParsePriority(s)
	return nil
}

// ParsePriority converts a header priority string to a Priority.
// Unknown strings fall back to DEBUG.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return PriorityTrace
	case "debug":
		return PriorityDebug
	case "info":
		return PriorityInfo
	case "warn", "warning":
		return PriorityWarn
	case "error":
		return PriorityError
	case "fatal":
		return PriorityFatal
	case "off":
		return PriorityOff
	default:
		return PriorityDebug
	}
}
