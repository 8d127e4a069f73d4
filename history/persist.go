package history

import (
	"bytes"
	"encoding/gob"
	"os"
	"sync"
	"time"
)

/* Delay between save attempts if the previous one failed */
const retrySaveInterval = 2 * time.Second

type persistence struct {
	sync.Mutex
	modified bool

	filename     string
	saveInterval time.Duration

	buffer   bytes.Buffer
	nextSave time.Time
}

// EnablePersistence makes the store save its snapshots to filename. Saves
// are written to a temporary file and renamed into place, so a crash never
// leaves a truncated history behind.
func (s *Store) EnablePersistence(filename string, saveInterval time.Duration) {
	s.Lock()
	s.persist = &persistence{
		filename:     filename,
		saveInterval: saveInterval,
	}
	s.Unlock()
}

// Load restores previously persisted snapshots, replacing the current
// content. Returns os.ErrNotExist wrapped in the usual way when no history
// was saved yet.
func (s *Store) Load() error {
	s.Lock()
	persist := s.persist
	s.Unlock()

	if persist == nil {
		return nil
	}

	persist.Lock()
	defer persist.Unlock()

	file, err := os.Open(persist.filename)
	if err != nil {
		return err
	}
	defer file.Close()

	var snapshots []Snapshot
	if err := gob.NewDecoder(file).Decode(&snapshots); err != nil {
		return err
	}

	s.Lock()
	s.snapshots = snapshots
	if s.capacity > 0 && len(s.snapshots) > s.capacity {
		n := copy(s.snapshots, s.snapshots[len(s.snapshots)-s.capacity:])
		s.snapshots = s.snapshots[:n]
	}
	s.Unlock()

	return nil
}

// Save writes the snapshots to file regardless of modification state
func (s *Store) Save() error {
	s.Lock()
	persist := s.persist
	s.Unlock()

	if persist == nil {
		return nil
	}

	persist.Lock()
	defer persist.Unlock()

	return persist.save(s.Snapshots())
}

// SaveConditional saves only if the store was modified and the save
// interval has passed. Intended to be called from a periodic task.
func (s *Store) SaveConditional() error {
	s.Lock()
	persist := s.persist
	s.Unlock()

	if persist == nil {
		return nil
	}

	persist.Lock()
	defer persist.Unlock()

	if !persist.modified || time.Now().Before(persist.nextSave) {
		return nil
	}

	return persist.save(s.Snapshots())
}

func (p *persistence) touch() {
	p.Lock()
	p.modified = true
	p.Unlock()
}

func (p *persistence) save(snapshots []Snapshot) error {
	tmpName := p.filename + ".tmp"

	p.buffer.Truncate(0)
	err := gob.NewEncoder(&p.buffer).Encode(snapshots)
	if err == nil {
		err = os.WriteFile(tmpName, p.buffer.Bytes(), 0600)
	}
	if err == nil {
		err = os.Rename(tmpName, p.filename)
	}

	if err == nil {
		p.modified = false
		p.nextSave = time.Now().Add(p.saveInterval)
	} else {
		p.nextSave = time.Now().Add(retrySaveInterval)
	}

	return err
}
