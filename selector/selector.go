// Package selector implements spec.md §4.4: a portable, one-shot
// readiness backend for pollable descriptors, with interchangeable
// select/poll/epoll/kqueue implementations behind one interface.
package selector

import (
	"fmt"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
)

// Event is the kind of readiness a registration waits for.
type Event int

const (
	// Writable fires once fd can accept at least one byte without
	// blocking.
	Writable Event = iota
	// Readable fires once fd has data, EOF, or an error pending.
	Readable
)

func (e Event) String() string {
	switch e {
	case Writable:
		return "writable"
	case Readable:
		return "readable"
	default:
		return fmt.Sprintf("selector.Event(%d)", int(e))
	}
}

// Selector delivers one callback per detected readiness on a
// descriptor, for a single registered (fd, Event) pair at a time.
// Re-registering the same (fd, Event) while a registration is still
// pending is a contract violation; implementations are not required
// to detect it.
//
// A Selector is not safe for concurrent use: spec.md's concurrency
// model assumes a single thread drives one scheduler, and therefore
// one selector, at a time.
type Selector interface {
	// Name is a diagnostic identifier ("select", "poll", "epoll",
	// "kqueue"); it carries no behavioral meaning to callers.
	Name() string

	// CallWhenWritable registers cb to fire, at most once, the first
	// time fd becomes writable. Returns a non-negative ticket id.
	CallWhenWritable(fd int, cb callback.Func) int

	// CallWhenReadable registers cb to fire, at most once, the first
	// time fd has data, hits EOF, or errors.
	CallWhenReadable(fd int, cb callback.Func) int

	// CancelWhenWritable removes a pending writable registration. It
	// is a contract violation to cancel a ticket whose callback has
	// already been returned by Select.
	CancelWhenWritable(ticket int)

	// CancelWhenReadable removes a pending readable registration,
	// under the same contract as CancelWhenWritable.
	CancelWhenReadable(ticket int)

	// HasWork reports whether any registration is pending or ready.
	HasWork() bool

	// Select blocks up to timeout (clock.NoDeadline meaning forever,
	// zero meaning poll) waiting for a registered event. If one or
	// more registrations become ready, at least one is moved to the
	// ready list and its callback is returned (consuming that
	// registration); the rest, if any, remain ready for the next
	// call. Select may return a nil callback.Func on a spurious
	// early wakeup or signal interruption. Precondition: HasWork().
	Select(timeout clock.Duration) callback.Func

	// Close releases the selector's OS-level resources. Closing a
	// selector with pending registrations (!HasWork() false) is
	// undefined; callers are expected to cancel everything first.
	Close() error
}

// Factory constructs a Selector. Each backend in this package exposes
// one, and Default picks the best available for the current platform.
type Factory func() (Selector, error)
