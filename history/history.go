// Package history keeps a bounded log of reported arm positions, exports it
// to CSV and optionally persists it between runs.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/bifrost-robot/bifrost/gcode"
)

// Snapshot is one reported position
type Snapshot struct {
	Taken time.Time
	Axes  map[string]float64
}

// Store is a bounded, thread-safe snapshot log. When capacity is reached the
// oldest snapshot is dropped.
type Store struct {
	sync.Mutex

	capacity  int
	snapshots []Snapshot

	persist *persistence
}

// New creates a Store keeping at most capacity snapshots. capacity <= 0
// means unbounded.
func New(capacity int) *Store {
	return &Store{capacity: capacity}
}

// Append records a position report
func (s *Store) Append(axes gcode.Axes) {
	copied := make(map[string]float64, len(axes))
	for letter, value := range axes {
		copied[letter] = value
	}

	s.Lock()
	s.snapshots = append(s.snapshots, Snapshot{Taken: time.Now(), Axes: copied})
	if s.capacity > 0 && len(s.snapshots) > s.capacity {
		n := copy(s.snapshots, s.snapshots[len(s.snapshots)-s.capacity:])
		s.snapshots = s.snapshots[:n]
	}
	persist := s.persist
	s.Unlock()

	if persist != nil {
		persist.touch()
	}
}

// Len returns the number of stored snapshots
func (s *Store) Len() int {
	s.Lock()
	defer s.Unlock()

	return len(s.snapshots)
}

// Clear removes all snapshots and returns how many there were
func (s *Store) Clear() int {
	s.Lock()
	n := len(s.snapshots)
	s.snapshots = nil
	persist := s.persist
	s.Unlock()

	if persist != nil {
		persist.touch()
	}

	return n
}

// Snapshots returns a copy of the stored snapshots, oldest first
func (s *Store) Snapshots() []Snapshot {
	s.Lock()
	defer s.Unlock()

	out := make([]Snapshot, len(s.snapshots))
	copy(out, s.snapshots)

	return out
}

// ExportCSV writes the history as CSV and returns the number of exported
// snapshots. Columns are the union of all axis letters seen, in firmware
// order. Missing values are left empty.
func (s *Store) ExportCSV(w io.Writer) (int, error) {
	snapshots := s.Snapshots()

	letters := axisColumns(snapshots)

	writer := csv.NewWriter(w)
	header := append([]string{"time"}, letters...)
	if err := writer.Write(header); err != nil {
		return 0, err
	}

	for _, snapshot := range snapshots {
		record := make([]string, 0, len(letters)+1)
		record = append(record, snapshot.Taken.Format(time.RFC3339))
		for _, letter := range letters {
			if value, ok := snapshot.Axes[letter]; ok {
				record = append(record, fmt.Sprintf("%.3f", value))
			} else {
				record = append(record, "")
			}
		}

		if err := writer.Write(record); err != nil {
			return 0, err
		}
	}

	writer.Flush()

	return len(snapshots), writer.Error()
}

const axisOrder = "XYZUVWE"

func axisColumns(snapshots []Snapshot) []string {
	seen := map[string]bool{}
	for _, snapshot := range snapshots {
		for letter := range snapshot.Axes {
			seen[letter] = true
		}
	}

	letters := make([]string, 0, len(seen))
	for letter := range seen {
		letters = append(letters, letter)
	}
	sort.Slice(letters, func(i, j int) bool {
		a, b := indexOf(letters[i]), indexOf(letters[j])
		if a != b {
			return a < b
		}
		return letters[i] < letters[j]
	})

	return letters
}

func indexOf(letter string) int {
	for i := 0; i < len(axisOrder); i++ {
		if string(axisOrder[i]) == letter {
			return i
		}
	}

	return len(axisOrder)
}

// DefaultFilename returns the suggested export filename for the given time,
// e.g. "position_history_20260830_153000.csv"
func DefaultFilename(now time.Time) string {
	return "position_history_" + now.Format("20060102_150405") + ".csv"
}
