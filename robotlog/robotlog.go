// Package robotlog writes the backend's plain-text run logs: a timing log
// of every autonomy state transition, a log of autonomous run failures, and
// an IMU sanity-check error log. These are append-only operator diagnostics
// in the same vein as the rest of the backend's logging, which is built
// directly on the standard library's log package throughout (see main.go,
// signaling.go, onboard/onboard/device.go); there is no third-party
// structured logger anywhere in this stack to match instead.
package robotlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logs bundles the three append-only log files the backend keeps open for
// the life of the process.
type Logs struct {
	mu         sync.Mutex
	timing     *log.Logger
	autonomous *log.Logger
	imu        *log.Logger
	closers    []io.Closer
}

// Open opens (creating if necessary) timing.log, autonomous.log and
// imu.errs under dir.
func Open(dir string) (*Logs, error) {
	l := &Logs{}
	timingF, err := openAppend(dir, "timing.log")
	if err != nil {
		return nil, err
	}
	autonomousF, err := openAppend(dir, "autonomous.log")
	if err != nil {
		timingF.Close()
		return nil, err
	}
	imuF, err := openAppend(dir, "imu.errs")
	if err != nil {
		timingF.Close()
		autonomousF.Close()
		return nil, err
	}

	l.timing = log.New(timingF, "", log.LstdFlags)
	l.autonomous = log.New(autonomousF, "", log.LstdFlags)
	l.imu = log.New(imuF, "", log.LstdFlags)
	l.closers = []io.Closer{timingF, autonomousF, imuF}
	return l, nil
}

func openAppend(dir, name string) (*os.File, error) {
	path := name
	if dir != "" {
		path = dir + "/" + name
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Close closes all three log files.
func (l *Logs) Close() error {
	var firstErr error
	for _, c := range l.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Transition records a state-machine transition: matches enter_state's
// write to timing.log.
func (l *Logs) Transition(from, to fmt.Stringer, now float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timing.Printf("%.3f %s -> %s", now, from, to)
}

// AutonomousFail records why an autonomous run dropped back to manual
// drive: matches autonomous_fail's write to autonomous.log.
func (l *Logs) AutonomousFail(state fmt.Stringer, reason string, now float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.autonomous.Printf("%.3f state=%s reason=%s", now, state, reason)
}

// IMUError records an IMU sanity-check failure.
func (l *Logs) IMUError(which string, gravity float64, now float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.imu.Printf("%.3f %s gravity=%.3f", now, which, gravity)
}
