// Package dispatcher owns one serial connection to the motion controller:
// it runs the background worker that drains the outbound command queue,
// reads firmware responses and reports everything through a small callback
// surface, so no UI toolkit types leak into this layer.
package dispatcher

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/bifrost-robot/bifrost/cmdqueue"
	"github.com/bifrost-robot/bifrost/config"
	"github.com/bifrost-robot/bifrost/serialport"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrorNotConnected     = Error("Not connected")
	ErrorAlreadyConnected = Error("Already connected")
)

// State is the connection state machine position
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateError:
		return "error"
	}

	return "disconnected"
}

// Callbacks is the entire upward facing event surface. All callbacks may be
// nil. They are invoked from the dispatcher's goroutines: a consumer that
// needs single threaded delivery (a UI loop) marshals the hand-off itself.
type Callbacks struct {
	OnConnected    func()
	OnDisconnected func()
	OnDataReceived func(line string)
	OnError        func(message string)
}

// Options tunes the worker. Zero timeouts are replaced by the defaults,
// polling intervals of zero keep polling disabled.
type Options struct {
	ReadTimeout       time.Duration
	IdleSleep         time.Duration
	DisconnectTimeout time.Duration

	/* Status polling, 0 interval disables */
	PositionInterval time.Duration
	EndstopInterval  time.Duration
	BlockingMinPause time.Duration
	BlockingMaxPause time.Duration
}

// DefaultOptions returns the stock worker tuning
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps the loaded configuration onto worker options
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ReadTimeout:       cfg.ReadTimeout.D(),
		IdleSleep:         cfg.IdleSleep.D(),
		DisconnectTimeout: cfg.DisconnectTimeout.D(),
		PositionInterval:  cfg.PositionInterval.D(),
		EndstopInterval:   cfg.EndstopInterval.D(),
		BlockingMinPause:  cfg.BlockingMinPause.D(),
		BlockingMaxPause:  cfg.BlockingMaxPause.D(),
	}
}

/* Package level so tests can substitute a scripted port */
var openPort = func(options *serialport.Options) (devicePort, error) {
	return serialport.Open(options)
}

type devicePort interface {
	Write(p []byte) (int, error)
	ReadAvailable(p []byte) (int, error)
	Close() error
}

/* One connection attempt. A fresh session is created per Connect so a slow
 * dying worker from a previous session can never report into the new one. */
type session struct {
	port devicePort

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	/* Guards the single terminal OnDisconnected/OnError of this session */
	reportOnce sync.Once
}

func (s *session) signalStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Dispatcher is the facade owning connection, queue and worker
type Dispatcher struct {
	mutex sync.Mutex

	state     State
	session   *session
	callbacks Callbacks
	options   Options

	queue *cmdqueue.Queue
	open  atomic.Bool

	log *logrus.Entry
}

// New creates a Dispatcher. log may be nil.
func New(callbacks Callbacks, options Options, log *logrus.Entry) *Dispatcher {
	defaults := DefaultOptions()
	if options.ReadTimeout <= 0 {
		options.ReadTimeout = defaults.ReadTimeout
	}
	if options.IdleSleep <= 0 {
		options.IdleSleep = defaults.IdleSleep
	}
	if options.DisconnectTimeout <= 0 {
		options.DisconnectTimeout = defaults.DisconnectTimeout
	}
	if options.BlockingMinPause <= 0 {
		options.BlockingMinPause = defaults.BlockingMinPause
	}
	if options.BlockingMaxPause <= 0 {
		options.BlockingMaxPause = defaults.BlockingMaxPause
	}

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Dispatcher{
		callbacks: callbacks,
		options:   options,
		queue:     cmdqueue.New(16),
		log:       log,
	}
}

// State returns a snapshot of the connection state
func (d *Dispatcher) State() State {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return d.state
}

// IsOpen reports whether the dispatcher currently owns an open connection
func (d *Dispatcher) IsOpen() bool {
	return d.open.Load()
}

// QueueLen returns the number of commands waiting to be sent
func (d *Dispatcher) QueueLen() int {
	return d.queue.Len()
}

// Connect opens the port and starts the worker. It fails with
// ErrorAlreadyConnected when a connection exists or is being established.
// On failure the state returns to disconnected and OnError fires once, so
// consumers that only watch callbacks stay correct.
func (d *Dispatcher) Connect(portName string, baud int) error {
	d.mutex.Lock()

	if d.state != StateDisconnected {
		d.mutex.Unlock()
		return ErrorAlreadyConnected
	}
	d.state = StateConnecting
	d.mutex.Unlock()

	port, err := openPort(&serialport.Options{
		PortName:    portName,
		BaudRate:    baud,
		ReadTimeout: d.options.ReadTimeout,
	})

	if err != nil {
		d.mutex.Lock()
		d.state = StateDisconnected
		d.mutex.Unlock()

		d.log.WithError(err).Error("Connecting failed")
		if d.callbacks.OnError != nil {
			d.callbacks.OnError(err.Error())
		}

		return err
	}

	s := &session{
		port: port,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	/* Residue from a previous session must never reach the new device.
	 * Cleared while still Connecting, so a command accepted after this
	 * point stays queued. */
	d.queue.Clear()

	d.mutex.Lock()
	d.session = s
	d.state = StateConnected
	d.mutex.Unlock()
	d.open.Store(true)

	d.log.WithFields(logrus.Fields{"port": portName, "baud": baud}).Info("Connected")
	if d.callbacks.OnConnected != nil {
		d.callbacks.OnConnected()
	}

	/* Started only after OnConnected, so a port that fails on its first
	 * read cannot report OnError ahead of OnConnected */
	go d.worker(s)

	return nil
}

// Disconnect stops the worker, joins it and closes the port. It blocks the
// caller until the worker has fully stopped, bounded by DisconnectTimeout
// after which the port is force-closed. Calling it while disconnected is a
// no-op and invokes no callback. Queued commands are discarded.
func (d *Dispatcher) Disconnect() {
	d.mutex.Lock()

	if d.state != StateConnected || d.session == nil {
		d.mutex.Unlock()
		return
	}

	s := d.session
	d.state = StateDisconnecting
	d.mutex.Unlock()

	s.signalStop()

	select {
	case <-s.done:
	case <-time.After(d.options.DisconnectTimeout):
		/* The worker is wedged, release the OS resource regardless */
		d.log.Error("Worker did not stop in time, force closing port")
		s.port.Close()
	}

	d.finishSession(s, StateDisconnected)

	s.reportOnce.Do(func() {
		d.log.Info("Disconnected")
		if d.callbacks.OnDisconnected != nil {
			d.callbacks.OnDisconnected()
		}
	})
}

// SendCommand queues one text line for transmission. priority selects the
// lane that drains before all normal traffic (emergency stop). The command
// is fire-and-forget: completion is observed via OnDataReceived/OnError.
func (d *Dispatcher) SendCommand(text string, priority bool) error {
	/* The state check and the push must be atomic against the teardown's
	 * queue discard, otherwise a command can slip in behind the Clear and
	 * fire on the next connection */
	d.mutex.Lock()
	if d.state != StateConnected {
		d.mutex.Unlock()
		return ErrorNotConnected
	}
	cmd := d.queue.Push(text, priority)
	d.mutex.Unlock()

	d.log.WithFields(logrus.Fields{"cmd": cmd.ID, "priority": priority}).Debug(text)

	return nil
}

/* Tears down the session bookkeeping. Safe to call from both the worker
 * (fatal I/O error) and Disconnect. */
func (d *Dispatcher) finishSession(s *session, terminal State) {
	d.open.Store(false)

	d.mutex.Lock()
	if d.session == s {
		d.session = nil
		d.state = terminal
	}
	d.mutex.Unlock()

	s.port.Close()
	d.queue.Clear()
}

/* Fatal I/O failure inside the worker: close everything and report exactly
 * one OnError. Transitions Connected -> Error -> Disconnected. */
func (d *Dispatcher) fail(s *session, err error) {
	d.mutex.Lock()
	if d.session == s {
		d.state = StateError
	}
	d.mutex.Unlock()

	d.finishSession(s, StateDisconnected)

	s.reportOnce.Do(func() {
		d.log.WithError(err).Error("Serial connection lost")
		if d.callbacks.OnError != nil {
			d.callbacks.OnError(err.Error())
		}
	})
}
