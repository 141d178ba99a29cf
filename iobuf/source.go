// Package iobuf implements spec.md §4.6/§4.7: buffered, suspendable
// asynchronous input and output streams layered over a scheduler.
package iobuf

import (
	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/scheduler"
)

// Status is the outcome of one non-blocking transfer attempt.
type Status int

const (
	// OK means some bytes were transferred, possibly zero at EOF.
	OK Status = iota
	// WouldBlock means the transfer could not proceed without
	// blocking; the caller should arm a readiness callback.
	WouldBlock
	// Error means the underlying transport is broken; Err on the
	// adapter reports why.
	Error
)

// Source is the external interface an InBuf refills itself from: a
// non-blocking byte source plus readiness registration, matching the
// shape tcpio.Conn and any future transport adapter must satisfy.
type Source interface {
	// Read attempts to fill buf with incoming bytes, returning the
	// count read and a status. OK with n == 0 means EOF. On
	// WouldBlock, n is always 0.
	Read(buf []byte) (n int, status Status)

	// CallWhenReadable arms cb for the next readiness event and
	// returns the ticket of this new registration, which InBuf keeps
	// and cancels through the scheduler.
	CallWhenReadable(cb callback.Func) scheduler.Ticket

	// CancelWhenReadable revokes a pending readable registration.
	CancelWhenReadable(ticket scheduler.Ticket)

	// Err reports the system error behind the last Error status, or
	// nil if there was none.
	Err() error
}

// Sink is the external interface an OutBuf drains itself into.
type Sink interface {
	// Write attempts to drain buf, returning the count consumed and a
	// status. On WouldBlock, n is always 0.
	Write(buf []byte) (n int, status Status)

	// CallWhenWritable arms cb for the next readiness event and
	// returns the ticket of this new registration.
	CallWhenWritable(cb callback.Func) scheduler.Ticket

	// CancelWhenWritable revokes a pending writable registration.
	CancelWhenWritable(ticket scheduler.Ticket)

	// Err reports the system error behind the last Error status, or
	// nil if there was none.
	Err() error
}
