package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// durationUnits extends time.ParseDuration with calendar-sized units.
var durationUnits = map[string]time.Duration{
	"w": 7 * 24 * time.Hour,
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
	"s": time.Second,
}

var durationTermPattern = regexp.MustCompile(`(\d+)([wdhms])`)

// ParseDuration accepts Go durations ("500ms", "1h30m") and sums of whole
// w/d/h/m/s terms ("2d", "1w3d", "1d12h"). Window sizes and debounce
// intervals are read with it.
func ParseDuration(s string) (time.Duration, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return 0, errors.New("duration is empty")
	}
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}

	var (
		total    time.Duration
		consumed int
	)
	for _, m := range durationTermPattern.FindAllStringSubmatchIndex(input, -1) {
		if m[0] != consumed {
			break
		}
		n, err := strconv.ParseInt(input[m[2]:m[3]], 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid duration %q", input)
		}
		total += time.Duration(n) * durationUnits[input[m[4]:m[5]]]
		consumed = m[1]
	}
	if consumed == 0 || consumed != len(input) {
		return 0, errors.Errorf("invalid duration %q", input)
	}
	return total, nil
}
