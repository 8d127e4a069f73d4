package gcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMove(t *testing.T) {
	cmd := BuildMove("G1", Axes{"Y": 20.5, "X": 10}, 1000)
	assert.Equal(t, "G1 X10 Y20.5 F1000", cmd)

	cmd = BuildMove("G0", Axes{"Z": 30}, 0)
	assert.Equal(t, "G0 Z30", cmd)

	cmd = BuildMove("G1", Axes{"W": -12.125, "V": 12.125}, 800)
	assert.Equal(t, "G1 V12.125 W-12.125 F800", cmd)
}

func TestBuildSingleAxis(t *testing.T) {
	assert.Equal(t, "G0 X100 F1000", BuildSingleAxis("G0", "X", 100, 1000))
	assert.Equal(t, "G1 U90", BuildSingleAxis("G1", "U", 90, 0))
}

func TestPrepare(t *testing.T) {
	assert.Equal(t, []byte("G0 X100\n"), Prepare("G0 X100"))
	assert.Equal(t, []byte("M114\n"), Prepare("  M114  "))
}

func TestIsBlocking(t *testing.T) {
	assert.True(t, IsBlocking("G28"))
	assert.True(t, IsBlocking("g28 h1"))
	assert.True(t, IsBlocking("G29"))
	assert.True(t, IsBlocking("M999"))
	assert.False(t, IsBlocking("G1 X10"))
	assert.False(t, IsBlocking("M114"))
}

func TestIsOK(t *testing.T) {
	assert.True(t, IsOK("ok"))
	assert.True(t, IsOK("ok T:0"))
	assert.True(t, IsOK("OK"))
	assert.False(t, IsOK("okay not really"))
	assert.False(t, IsOK("error"))
}

func TestParsePosition(t *testing.T) {
	axes, ok := ParsePosition("X:10.00 Y:-5.50 Z:0.00 Count X:800 Y:-440 Z:0")
	require.True(t, ok)
	assert.Equal(t, 10.0, axes["X"])
	assert.Equal(t, -5.5, axes["Y"])
	assert.Equal(t, 0.0, axes["Z"])
	/* Stepper counts must not overwrite the logical positions */
	assert.Len(t, axes, 3)

	axes, ok = ParsePosition("X:1 Y:2 Z:3 U:4 V:5 W:6")
	require.True(t, ok)
	assert.Len(t, axes, 6)
	assert.Equal(t, 6.0, axes["W"])

	_, ok = ParsePosition("echo: unknown command")
	assert.False(t, ok)
}

func TestIsPositionReport(t *testing.T) {
	assert.True(t, IsPositionReport("X:0.00 Y:0.00 Z:0.00 Count X:0 Y:0 Z:0"))
	assert.False(t, IsPositionReport("ok"))
	assert.False(t, IsPositionReport("x_min: open"))
}

func TestParseEndstops(t *testing.T) {
	states := ParseEndstops("x_min: TRIGGERED y_min: open z_min: open")
	assert.True(t, states["x_min"])
	assert.False(t, states["y_min"])
	assert.False(t, states["z_min"])

	assert.True(t, IsEndstopReport("Reporting endstop status"))
	assert.True(t, IsEndstopReport("x_min: open"))
	assert.False(t, IsEndstopReport("ok"))
}

func TestHomingSequence(t *testing.T) {
	seq := HomingSequence()
	require.NotEmpty(t, seq)
	assert.Equal(t, CmdEnableSteppers, seq[0])
	for _, cmd := range seq[1:] {
		assert.True(t, IsBlocking(cmd), cmd)
	}
}
