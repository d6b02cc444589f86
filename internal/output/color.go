package output

import (
	"os"

	"github.com/bimmerbailey/logsheet/internal/config"
	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts "auto", "always" or "never" to a ColorMode.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// ColorizeLine applies color to a line based on the record priority.
func ColorizeLine(p config.Priority, line string) string {
	switch p {
	case config.PriorityTrace, config.PriorityDebug:
		return colorGray + line + colorReset
	case config.PriorityWarn:
		return colorYellow + line + colorReset
	case config.PriorityError:
		return colorRed + line + colorReset
	case config.PriorityFatal, config.PriorityOff:
		return colorBold + colorRed + line + colorReset
	default:
		return line // INFO and headerless records use the default color
	}
}
