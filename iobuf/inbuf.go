package iobuf

import (
	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/scheduler"
)

const defaultBufSize = 256 * 1024

// InBuf is a buffered, suspendable asynchronous input stream: it
// refills itself from a Source on demand and exposes a peek/skip/read
// cursor over whatever is currently buffered.
type InBuf struct {
	sched  *scheduler.Scheduler
	source Source
	buf    []byte
	readAt int
	limit  int

	eofSeen bool
	errSeen bool

	ticket   scheduler.Ticket
	callback callback.Func
}

// NewInBuf returns an InBuf of the default buffer size, bound to
// sched, over source.
func NewInBuf(sched *scheduler.Scheduler, source Source) *InBuf {
	return NewInBufSize(sched, source, defaultBufSize)
}

// NewInBufSize returns an InBuf with an explicit buffer capacity.
// Precondition: bufsize > 0.
func NewInBufSize(sched *scheduler.Scheduler, source Source, bufsize int) *InBuf {
	if bufsize <= 0 {
		panic("iobuf: InBuf bufsize must be positive")
	}
	return &InBuf{
		sched:  sched,
		source: source,
		buf:    make([]byte, bufsize),
		ticket: scheduler.NilTicket,
	}
}

// Readable reports whether Peek/Skip/Read can be called without
// blocking: either buffered data remains, or EOF has latched.
func (b *InBuf) Readable() bool {
	return b.readAt != b.limit || b.eofSeen
}

// ErrSeen reports whether the source reported an error while
// refilling. Once latched, it stays latched; InBuf never raises.
func (b *InBuf) ErrSeen() bool {
	return b.errSeen
}

// Peek returns the current byte and true, or (0, false) at EOF.
// Precondition: Readable().
func (b *InBuf) Peek() (byte, bool) {
	if !b.Readable() {
		panic("iobuf: Peek on a non-readable InBuf")
	}
	if b.readAt == b.limit {
		return 0, false
	}
	return b.buf[b.readAt], true
}

// Skip advances past the current byte. Precondition: Readable().
func (b *InBuf) Skip() {
	if !b.Readable() {
		panic("iobuf: Skip on a non-readable InBuf")
	}
	if b.readAt != b.limit {
		b.readAt++
	}
}

// Read copies as many buffered bytes into dst as are available,
// returning the count copied. Precondition: Readable().
func (b *InBuf) Read(dst []byte) int {
	if !b.Readable() {
		panic("iobuf: Read on a non-readable InBuf")
	}
	n := copy(dst, b.buf[b.readAt:b.limit])
	b.readAt += n
	return n
}

// CallWhenReadable arms cb to fire, at most once, the next time the
// buffer becomes readable, returning any callback it displaces. If
// the buffer is already readable, cb is scheduled via a zero-delay
// alarm rather than re-armed against the source, preserving the
// invariant that every callback fires from inside Scheduler.Wait.
func (b *InBuf) CallWhenReadable(cb callback.Func) callback.Func {
	if cb == nil {
		panic("iobuf: CallWhenReadable with a nil callback")
	}

	result := b.CancelWhenReadable()

	if b.Readable() {
		b.ticket = b.sched.CallAt(clock.Now(), func() { b.onReadableNow() })
	} else {
		b.ticket = b.source.CallWhenReadable(func() { b.onSourceReadable() })
	}
	b.callback = cb

	return result
}

// CancelWhenReadable revokes and returns any pending callback.
func (b *InBuf) CancelWhenReadable() callback.Func {
	if b.ticket.Empty() {
		return nil
	}
	b.sched.Cancel(b.ticket)
	b.ticket = scheduler.NilTicket
	return callback.Take(&b.callback)
}

func (b *InBuf) onReadableNow() {
	b.ticket = scheduler.NilTicket
	callback.Take(&b.callback).Invoke()
}

func (b *InBuf) onSourceReadable() {
	b.ticket = scheduler.NilTicket

	n, status := b.source.Read(b.buf)
	switch status {
	case WouldBlock:
		// spurious wakeup: rearm and wait again without invoking cb
		b.ticket = b.source.CallWhenReadable(func() { b.onSourceReadable() })
		return
	case Error:
		b.errSeen = true
		b.readAt, b.limit = 0, 0
		b.eofSeen = true
	default:
		b.readAt, b.limit = 0, n
		b.eofSeen = n == 0
	}

	callback.Take(&b.callback).Invoke()
}
