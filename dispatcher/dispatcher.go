// Package dispatcher implements spec.md's service loop: a drain-one-
// callback driver over a scheduler.Scheduler, stopped by a single
// control byte delivered on a pipe armed as a readable callback.
package dispatcher

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cutiio/cuti/scheduler"
)

// Listener is a ready-to-accept source registered with a Dispatcher.
// A TCP acceptor, a Unix-domain listener, or a test stub can all
// implement it.
type Listener interface {
	// Fd is the listener's file descriptor, used for readiness
	// registration only; Listener owns the descriptor's lifetime.
	Fd() int

	// OnReady is invoked once the listener has at least one
	// connection pending; it should accept and hand off the
	// connection without blocking.
	OnReady()
}

// Dispatcher runs a cuti service's single event loop: it alternates
// between alarms and I/O via its scheduler, and exits once a non-zero
// byte arrives on its control descriptor.
type Dispatcher struct {
	sched     *scheduler.Scheduler
	log       *logrus.Entry
	controlFd int
	sig       byte
	listeners []Listener
}

// New returns a Dispatcher driven by sched, logging through log, that
// stops on the first non-zero byte read from controlFd. controlFd must already
// be in non-blocking mode.
func New(sched *scheduler.Scheduler, log *logrus.Entry, controlFd int) *Dispatcher {
	d := &Dispatcher{sched: sched, log: log, controlFd: controlFd}
	d.armControl()
	return d
}

// AddListener registers l for readiness notification on the
// dispatcher's scheduler. The listener is re-armed after every
// OnReady call, so it keeps accepting for the dispatcher's lifetime.
func (d *Dispatcher) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
	d.sched.CallWhenReadable(l.Fd(), func() { d.onListener(l) })
}

// Run drains callbacks from the scheduler until a control byte stops
// it, or the scheduler runs dry (which AddListener/control normally
// prevents from happening).
func (d *Dispatcher) Run() error {
	if d.log != nil {
		d.log.Info("dispatcher running")
	}

	d.sig = 0
	for d.sig == 0 {
		if !d.sched.HasWork() {
			return errors.New("dispatcher: scheduler ran out of work before a stop signal")
		}
		cb := d.sched.Wait()
		if cb == nil {
			continue
		}
		cb.Invoke()
	}

	if d.log != nil {
		d.log.WithField("signal", d.sig).Info("dispatcher stopping")
	}
	return nil
}

func (d *Dispatcher) armControl() {
	d.sched.CallWhenReadable(d.controlFd, d.onControl)
}

func (d *Dispatcher) onControl() {
	var buf [1]byte
	n, err := syscall.Read(d.controlFd, buf[:])

	switch {
	case errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EINTR):
		// spurious wakeup
	case err != nil:
		if d.log != nil {
			d.log.WithError(err).Error("control connection read failed")
		}
		d.sig = 1
		return
	case n == 0:
		if d.log != nil {
			d.log.Error("unexpected EOF on control connection")
		}
		d.sig = 1
		return
	default:
		if buf[0] != 0 {
			d.sig = buf[0]
			return
		}
		// a zero byte is not a stop signal: keep listening
	}

	d.armControl()
}

func (d *Dispatcher) onListener(l Listener) {
	l.OnReady()
	d.sched.CallWhenReadable(l.Fd(), func() { d.onListener(l) })
}

// String renders a Dispatcher's identity for log lines.
func (d *Dispatcher) String() string {
	return fmt.Sprintf("dispatcher(listeners=%d)", len(d.listeners))
}
