// Package scheduler implements spec.md §4.5: a single event queue
// unifying timed alarms with selector-driven I/O readiness, behind
// one discriminated ticket type.
package scheduler

import (
	"time"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/indexedheap"
	"github.com/cutiio/cuti/selector"
)

// Kind discriminates the three registration classes a Ticket can name.
type Kind int

const (
	Alarm Kind = iota
	Writable
	Readable
)

// Ticket is a cancellation handle: (kind, id). Use NilTicket for the
// empty value; the Go zero value of Ticket is NOT empty, since id 0 is
// a valid registration slot.
type Ticket struct {
	kind Kind
	id   int32
}

// NilTicket names no pending registration.
var NilTicket = Ticket{id: -1}

// Empty reports whether t names no pending registration.
func (t Ticket) Empty() bool { return t.id == -1 }

// Scheduler owns one selector.Selector and one indexedheap.Heap of
// alarms, alternating between them per the poll-first policy so that
// a flood of ready I/O can never starve due alarms, and vice versa.
//
// A Scheduler is not safe for concurrent use.
type Scheduler struct {
	alarms    *indexedheap.Heap[clock.TimePoint, callback.Func]
	sel       selector.Selector
	pollFirst bool
}

// New returns a Scheduler driven by sel.
func New(sel selector.Selector) *Scheduler {
	return &Scheduler{
		alarms: indexedheap.New[clock.TimePoint, callback.Func](func(x, y clock.TimePoint) bool {
			return y.Before(x)
		}),
		sel: sel,
	}
}

// HasWork reports whether any alarm or I/O registration is pending.
func (s *Scheduler) HasWork() bool {
	return !s.alarms.Empty() || s.sel.HasWork()
}

// CallAt arms cb to fire at or after deadline.
func (s *Scheduler) CallAt(deadline clock.TimePoint, cb callback.Func) Ticket {
	id := s.alarms.AddElement(deadline, cb)
	return Ticket{kind: Alarm, id: id}
}

// CallWhenWritable arms cb to fire the first time fd becomes writable.
func (s *Scheduler) CallWhenWritable(fd int, cb callback.Func) Ticket {
	id := s.sel.CallWhenWritable(fd, cb)
	return Ticket{kind: Writable, id: int32(id)}
}

// CallWhenReadable arms cb to fire the first time fd is readable.
func (s *Scheduler) CallWhenReadable(fd int, cb callback.Func) Ticket {
	id := s.sel.CallWhenReadable(fd, cb)
	return Ticket{kind: Readable, id: int32(id)}
}

// Cancel revokes a pending registration. Canceling an empty or
// already-fired ticket is a contract violation.
func (s *Scheduler) Cancel(t Ticket) {
	switch t.kind {
	case Alarm:
		s.alarms.RemoveElement(t.id)
	case Writable:
		s.sel.CancelWhenWritable(int(t.id))
	case Readable:
		s.sel.CancelWhenReadable(int(t.id))
	}
}

// Wait blocks until some registered alarm or I/O event is due, then
// returns its callback. It returns nil only when the scheduler has no
// work (!HasWork()).
func (s *Scheduler) Wait() callback.Func {
	var result callback.Func

	if !s.alarms.Empty() {
		alarmID := s.alarms.FrontElement()
		limit := s.alarms.Priority(alarmID)

		for result == nil {
			now := clock.Now()
			switch {
			case !now.Before(limit):
				if s.pollFirst && s.sel.HasWork() {
					s.pollFirst = false
					result = s.sel.Select(0)
				} else {
					s.pollFirst = true
					result = s.alarms.Value(alarmID)
					s.alarms.RemoveElement(alarmID)
				}
			case s.sel.HasWork():
				result = s.sel.Select(limit.Sub(now))
			default:
				time.Sleep(limit.Sub(now))
			}
		}
		return result
	}

	if s.sel.HasWork() {
		for result == nil {
			result = s.sel.Select(clock.NoDeadline)
		}
		return result
	}

	return nil
}
