package gcode

import (
	"strconv"
	"strings"
)

// IsOK reports whether line is a command acknowledgement
func IsOK(line string) bool {
	l := strings.ToLower(strings.TrimSpace(line))

	return l == "ok" || strings.HasPrefix(l, "ok ") || strings.HasPrefix(l, "ok:")
}

// IsPositionReport reports whether line is an M114 response, e.g.
// "X:0.00 Y:10.00 Z:5.00 Count X:0 Y:800 Z:400"
func IsPositionReport(line string) bool {
	return strings.Contains(line, "X:") && strings.Contains(line, "Y:") &&
		strings.Contains(line, "Z:")
}

// IsEndstopReport reports whether line belongs to an M119 response
func IsEndstopReport(line string) bool {
	l := strings.ToLower(line)

	return strings.Contains(l, "endstop") || strings.Contains(l, "_min:") ||
		strings.Contains(l, "_max:")
}

// ParsePosition extracts the logical axis positions from an M114 response.
// The stepper counts after "Count" are ignored.
func ParsePosition(line string) (Axes, bool) {
	if idx := strings.Index(line, "Count"); idx >= 0 {
		line = line[:idx]
	}

	axes := Axes{}
	for _, field := range strings.Fields(line) {
		letter, rest, found := strings.Cut(field, ":")
		if !found || len(letter) != 1 || !strings.Contains(axisOrder, letter) {
			continue
		}

		value, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			continue
		}
		axes[letter] = value
	}

	if len(axes) == 0 {
		return nil, false
	}

	return axes, true
}

// ParseEndstops extracts per-endstop triggered state from an M119 response
// line, e.g. "x_min: TRIGGERED" or "y_min: open".
func ParseEndstops(line string) map[string]bool {
	states := map[string]bool{}

	fields := strings.Fields(strings.ToLower(line))
	for i := 0; i+1 < len(fields); i++ {
		name := strings.TrimSuffix(fields[i], ":")
		if !strings.HasSuffix(name, "_min") && !strings.HasSuffix(name, "_max") {
			continue
		}

		states[name] = strings.Contains(fields[i+1], "triggered")
	}

	return states
}
