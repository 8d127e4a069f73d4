package history

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrost-robot/bifrost/gcode"
)

func TestAppendAndCapacity(t *testing.T) {
	store := New(3)

	for i := 0; i < 5; i++ {
		store.Append(gcode.Axes{"X": float64(i)})
	}

	assert.Equal(t, 3, store.Len())

	snapshots := store.Snapshots()
	require.Len(t, snapshots, 3)
	/* Oldest dropped first */
	assert.Equal(t, 2.0, snapshots[0].Axes["X"])
	assert.Equal(t, 4.0, snapshots[2].Axes["X"])
}

func TestClear(t *testing.T) {
	store := New(0)
	store.Append(gcode.Axes{"X": 1})
	store.Append(gcode.Axes{"X": 2})

	assert.Equal(t, 2, store.Clear())
	assert.Equal(t, 0, store.Len())
}

func TestExportCSV(t *testing.T) {
	store := New(0)
	store.Append(gcode.Axes{"X": 1.5, "Y": 2})
	store.Append(gcode.Axes{"X": 3, "Z": -4.25})

	var buf bytes.Buffer
	n, err := store.ExportCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,X,Y,Z", lines[0])
	assert.True(t, strings.HasSuffix(lines[1], ",1.500,2.000,"))
	assert.True(t, strings.HasSuffix(lines[2], ",3.000,,-4.250"))
}

func TestExportEmpty(t *testing.T) {
	store := New(0)

	var buf bytes.Buffer
	n, err := store.ExportCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "time\n", buf.String())
}

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2026, 8, 30, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, "position_history_20260830_153000.csv", DefaultFilename(now))
}

func TestPersistRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.gob")

	store := New(0)
	store.EnablePersistence(path, time.Minute)
	store.Append(gcode.Axes{"X": 1, "Y": 2})
	store.Append(gcode.Axes{"X": 3})
	require.NoError(t, store.Save())

	restored := New(0)
	restored.EnablePersistence(path, time.Minute)
	require.NoError(t, restored.Load())

	require.Equal(t, 2, restored.Len())
	snapshots := restored.Snapshots()
	assert.Equal(t, 1.0, snapshots[0].Axes["X"])
	assert.Equal(t, 3.0, snapshots[1].Axes["X"])
}

func TestLoadMissingFile(t *testing.T) {
	store := New(0)
	store.EnablePersistence(filepath.Join(t.TempDir(), "missing.gob"), time.Minute)

	assert.Error(t, store.Load())
}

func TestSaveConditional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.gob")

	store := New(0)
	store.EnablePersistence(path, time.Minute)

	/* Nothing modified, nothing written */
	require.NoError(t, store.SaveConditional())

	store.Append(gcode.Axes{"X": 1})
	require.NoError(t, store.SaveConditional())

	restored := New(0)
	restored.EnablePersistence(path, time.Minute)
	require.NoError(t, restored.Load())
	assert.Equal(t, 1, restored.Len())
}
