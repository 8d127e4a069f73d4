// Package gcode builds outbound command lines and classifies the firmware's
// text responses. It does not interpret G-code, the motion controller does
// that.
package gcode

import (
	"fmt"
	"sort"
	"strings"
)

// Well known commands
const (
	CmdEmergencyStop  = "M112"
	CmdReportPosition = "M114"
	CmdReportEndstops = "M119"
	CmdEnableSteppers = "M17"
)

/* Commands that make the firmware unresponsive until it acknowledges.
 * Status polling is paused while one is in flight. */
var blockingCommands = []string{"G28", "G29", "M999"}

// IsBlocking reports whether cmd expects the firmware to finish a long
// operation before the next command may be sent
func IsBlocking(cmd string) bool {
	c := strings.ToUpper(strings.TrimSpace(cmd))
	for _, prefix := range blockingCommands {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}

	return false
}

// Axes maps axis letters to target values, e.g. {"X": 10, "Y": 20.5}
type Axes map[string]float64

/* Firmware axis order, so generated commands are stable */
var axisOrder = "XYZUVWEF"

// BuildMove builds a movement command from an axis map, e.g.
// BuildMove("G1", Axes{"X": 10}, 1000) -> "G1 X10 F1000".
// A feedrate <= 0 is omitted (rapid moves).
func BuildMove(moveType string, axes Axes, feedrate int) string {
	letters := make([]string, 0, len(axes))
	for letter := range axes {
		letters = append(letters, letter)
	}
	sort.Slice(letters, func(i, j int) bool {
		return strings.Index(axisOrder, letters[i]) < strings.Index(axisOrder, letters[j])
	})

	parts := make([]string, 0, len(letters)+2)
	parts = append(parts, moveType)
	for _, letter := range letters {
		parts = append(parts, letter+formatValue(axes[letter]))
	}
	if feedrate > 0 {
		parts = append(parts, fmt.Sprintf("F%d", feedrate))
	}

	return strings.Join(parts, " ")
}

// BuildSingleAxis builds a movement command for one axis
func BuildSingleAxis(moveType string, axis string, value float64, feedrate int) string {
	return BuildMove(moveType, Axes{axis: value}, feedrate)
}

func formatValue(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")

	return s
}

// Prepare frames a command for transmission: trimmed, newline terminated
func Prepare(cmd string) []byte {
	return []byte(strings.TrimSpace(cmd) + "\n")
}

// HomingSequence returns the staged homing macro: enable steppers, then home
// the axis groups one firmware stage at a time.
func HomingSequence() []string {
	return []string{
		CmdEnableSteppers,
		"G28 H1",
		"G28 H2",
	}
}
