package dispatcher

import (
	"bytes"
	"strings"
	"time"

	"github.com/bifrost-robot/bifrost/gcode"
)

/* The worker is the only goroutine touching the port while connected. Each
 * iteration: send the next queued command (unless a blocking command is
 * still awaiting its acknowledgement), then perform one bounded read and
 * deliver any completed lines. Polling requests go through the priority
 * lane so they overtake queued motion commands. */
func (d *Dispatcher) worker(s *session) {
	defer close(s.done)

	var (
		readBuf [256]byte
		pending []byte

		awaitingAck bool
		pollPaused  bool
		pausedSince time.Time

		lastPosition = time.Now()
		lastEndstop  = time.Now()
	)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		worked := false
		now := time.Now()

		/* A blocking command that never acknowledged must not stall the
		 * session forever */
		if pollPaused && now.Sub(pausedSince) >= d.options.BlockingMaxPause {
			d.log.Warnf("Forcing resume of status polling after %v timeout", now.Sub(pausedSince).Round(time.Second))
			pollPaused = false
			awaitingAck = false
			lastPosition, lastEndstop = time.Time{}, time.Time{}
		}

		if !pollPaused {
			if d.options.PositionInterval > 0 && now.Sub(lastPosition) >= d.options.PositionInterval {
				lastPosition = now
				d.queue.Push(gcode.CmdReportPosition, true)
			}
			if d.options.EndstopInterval > 0 && now.Sub(lastEndstop) >= d.options.EndstopInterval {
				lastEndstop = now
				d.queue.Push(gcode.CmdReportEndstops, true)
			}
		}

		if !awaitingAck {
			if cmd, ok := d.queue.Pop(); ok {
				worked = true

				if _, err := s.port.Write(gcode.Prepare(cmd.Payload)); err != nil {
					d.fail(s, err)
					return
				}
				d.log.WithField("cmd", cmd.ID).Tracef("Wrote %q", cmd.Payload)

				if gcode.IsBlocking(cmd.Payload) {
					d.log.Infof("Pausing status polling for blocking command: %s", cmd.Payload)
					awaitingAck = true
					pollPaused = true
					pausedSince = now
				}
			}
		}

		n, err := s.port.ReadAvailable(readBuf[:])
		if err != nil {
			d.fail(s, err)
			return
		}

		if n > 0 {
			worked = true
			pending = append(pending, readBuf[:n]...)

			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					break
				}

				line := strings.TrimRight(string(pending[:idx]), "\r")
				pending = pending[idx+1:]
				if line == "" {
					continue
				}

				if awaitingAck && gcode.IsOK(line) {
					awaitingAck = false

					/* The firmware acks some blocking commands before the
					 * motion has settled, keep polling quiet a bit longer */
					if time.Since(pausedSince) >= d.options.BlockingMinPause {
						pollPaused = false
						lastPosition, lastEndstop = time.Time{}, time.Time{}
					}
				} else if pollPaused && !awaitingAck && gcode.IsOK(line) &&
					time.Since(pausedSince) >= d.options.BlockingMinPause {
					pollPaused = false
					lastPosition, lastEndstop = time.Time{}, time.Time{}
				}

				if d.callbacks.OnDataReceived != nil {
					d.callbacks.OnDataReceived(line)
				}
			}
		}

		if !worked {
			select {
			case <-s.stop:
				return
			case <-time.After(d.options.IdleSleep):
			}
		}
	}
}
