// Package router classifies inbound firmware lines and fans them out to the
// interested handlers, so consumers of the dispatcher do not all reimplement
// the same string matching.
package router

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bifrost-robot/bifrost/gcode"
)

// ResponseType classifies one inbound line
type ResponseType int

const (
	ResponseOther ResponseType = iota
	ResponsePosition
	ResponseEndstop
	ResponseOK
)

func (r ResponseType) String() string {
	switch r {
	case ResponsePosition:
		return "position"
	case ResponseEndstop:
		return "endstop"
	case ResponseOK:
		return "ok"
	}

	return "other"
}

// Result describes how a line was handled
type Result struct {
	Type ResponseType
	// Handled is true when a dedicated handler consumed the line
	Handled bool
	// ShowInConsole is a hint to terminal style consumers: polling noise
	// (position and endstop reports) is hidden unless requested
	ShowInConsole bool
}

// Handlers holds the routing targets. Any field may be nil.
type Handlers struct {
	Position func(axes gcode.Axes)
	Endstop  func(states map[string]bool)
	// HomingComplete fires on the first acknowledgement received while
	// homing was marked in progress
	HomingComplete func()
}

// Options tunes console filtering
type Options struct {
	// ShowPositionReports surfaces M114 responses on the console
	ShowPositionReports bool
	// ShowAcknowledgements surfaces plain "ok" lines on the console
	ShowAcknowledgements bool
	// ManualWindow is how long after a manual command every response is
	// surfaced regardless of type
	ManualWindow time.Duration
}

// Router routes firmware responses. Safe for use from the dispatcher worker
// goroutine with concurrent MarkManualCommand/SetHoming callers.
type Router struct {
	mutex sync.Mutex

	handlers Handlers
	options  Options
	log      *logrus.Entry

	homing         bool
	lastManualSent time.Time
}

// New creates a Router. log may be nil.
func New(handlers Handlers, options Options, log *logrus.Entry) *Router {
	if options.ManualWindow <= 0 {
		options.ManualWindow = 2 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Router{
		handlers: handlers,
		options:  options,
		log:      log,
	}
}

// MarkManualCommand records that the user just sent a command by hand, so
// the next responses are surfaced on the console
func (r *Router) MarkManualCommand() {
	r.mutex.Lock()
	r.lastManualSent = time.Now()
	r.mutex.Unlock()
}

// SetHoming marks a homing cycle as in progress. The next acknowledgement
// fires the HomingComplete handler.
func (r *Router) SetHoming(active bool) {
	r.mutex.Lock()
	r.homing = active
	r.mutex.Unlock()
}

// IsHoming returns whether a homing cycle is in progress
func (r *Router) IsHoming() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.homing
}

// Identify classifies a line without routing it
func Identify(line string) ResponseType {
	switch {
	case gcode.IsPositionReport(line):
		return ResponsePosition
	case gcode.IsEndstopReport(line):
		return ResponseEndstop
	case gcode.IsOK(line):
		return ResponseOK
	}

	return ResponseOther
}

// Route classifies line and invokes the matching handler. Handlers run on
// the caller's goroutine.
func (r *Router) Route(line string) Result {
	responseType := Identify(line)

	if responseType == ResponseOK {
		r.checkHomingComplete()
	}

	r.mutex.Lock()
	manual := time.Since(r.lastManualSent) < r.options.ManualWindow
	r.mutex.Unlock()

	if manual {
		/* Right after a manual command the user wants to see the raw reply */
		return Result{Type: responseType, ShowInConsole: true}
	}

	switch responseType {
	case ResponsePosition:
		if axes, ok := gcode.ParsePosition(line); ok && r.handlers.Position != nil {
			r.handlers.Position(axes)
		}

		return Result{Type: responseType, Handled: true, ShowInConsole: r.options.ShowPositionReports}

	case ResponseEndstop:
		if r.handlers.Endstop != nil {
			r.handlers.Endstop(gcode.ParseEndstops(line))
		}

		return Result{Type: responseType, Handled: true, ShowInConsole: false}

	case ResponseOK:
		return Result{Type: responseType, Handled: true, ShowInConsole: r.options.ShowAcknowledgements}
	}

	return Result{Type: ResponseOther, ShowInConsole: true}
}

func (r *Router) checkHomingComplete() {
	r.mutex.Lock()
	wasHoming := r.homing
	r.homing = false
	r.mutex.Unlock()

	if wasHoming {
		r.log.Info("Homing cycle completed")
		if r.handlers.HomingComplete != nil {
			r.handlers.HomingComplete()
		}
	}
}
