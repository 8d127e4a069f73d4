// Package cmdqueue implements the outbound command buffer: two FIFO lanes
// where the priority lane always drains completely before the normal lane.
// Any number of goroutines may Push, exactly one consumer calls Pop.
package cmdqueue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Command is one outbound text line. It is immutable once pushed.
type Command struct {
	ID       uuid.UUID
	Payload  string
	Priority bool
	Enqueued time.Time
}

/* Ring buffer for one lane. Grows by doubling, never drops. */
type lane struct {
	ring []Command

	readPointer  int
	writePointer int
	elements     int
}

func newLane(allocSize int) *lane {
	if allocSize < 1 {
		allocSize = 1
	}

	return &lane{ring: make([]Command, allocSize)}
}

func (l *lane) incrementPointer(ptr *int) {
	*ptr++
	if *ptr >= len(l.ring) {
		*ptr = 0
	}
}

func (l *lane) pop() (Command, bool) {
	if l.elements == 0 {
		return Command{}, false
	}

	e := l.ring[l.readPointer]
	l.ring[l.readPointer] = Command{}
	l.incrementPointer(&l.readPointer)
	l.elements--

	return e, true
}

func (l *lane) grow() {
	newRing := make([]Command, 2*len(l.ring))

	wrIndex := 0
	for {
		e, ok := l.pop()
		if !ok {
			break
		}

		newRing[wrIndex] = e
		wrIndex++
	}

	l.readPointer = 0
	l.writePointer = wrIndex
	l.elements = wrIndex
	l.ring = newRing
}

func (l *lane) push(cmd Command) {
	if l.elements == len(l.ring) {
		l.grow()
	}

	assert(l.ring[l.writePointer].ID == uuid.Nil, "Ring at write pointer contained element!")
	l.ring[l.writePointer] = cmd
	l.incrementPointer(&l.writePointer)
	l.elements++
}

// Queue is the two-lane command FIFO
type Queue struct {
	sync.Mutex

	priority *lane
	normal   *lane
}

// New creates a Queue. allocSize is the initial ring size of each lane.
func New(allocSize int) *Queue {
	return &Queue{
		priority: newLane(allocSize),
		normal:   newLane(allocSize),
	}
}

// Push appends payload to the requested lane. It never blocks and never
// drops. The stored Command (with its generated ID) is returned.
func (q *Queue) Push(payload string, priority bool) Command {
	cmd := Command{
		ID:       uuid.New(),
		Payload:  payload,
		Priority: priority,
		Enqueued: time.Now(),
	}

	q.Lock()
	defer q.Unlock()

	if priority {
		q.priority.push(cmd)
	} else {
		q.normal.push(cmd)
	}

	return cmd
}

// Pop removes and returns the oldest priority command, or the oldest normal
// command if the priority lane is empty. Returns false when both lanes are
// empty.
func (q *Queue) Pop() (Command, bool) {
	q.Lock()
	defer q.Unlock()

	if cmd, ok := q.priority.pop(); ok {
		return cmd, true
	}

	return q.normal.pop()
}

// Len returns the total number of queued commands
func (q *Queue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.priority.elements + q.normal.elements
}

// Clear removes all queued commands from both lanes and returns how many
// there were
func (q *Queue) Clear() int {
	q.Lock()
	defer q.Unlock()

	i := 0
	for {
		_, ok := q.priority.pop()
		if !ok {
			break
		}
		i++
	}
	for {
		_, ok := q.normal.pop()
		if !ok {
			break
		}
		i++
	}

	return i
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
