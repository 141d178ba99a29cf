package iobuf

import (
	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/scheduler"
)

// OutBuf is a buffered, suspendable asynchronous output stream: bytes
// written accumulate locally until Drain pushes them to a Sink, or
// until a CallWhenWritable armed on a full buffer flushes them once
// the sink becomes writable.
type OutBuf struct {
	sched *scheduler.Scheduler
	sink  Sink
	buf   []byte
	limit int // bytes buffered; equals len(buf) when the buffer is full

	errSeen bool

	ticket   scheduler.Ticket
	callback callback.Func
}

// NewOutBuf returns an OutBuf of the default buffer size, bound to
// sched, draining into sink.
func NewOutBuf(sched *scheduler.Scheduler, sink Sink) *OutBuf {
	return NewOutBufSize(sched, sink, defaultBufSize)
}

// NewOutBufSize returns an OutBuf with an explicit buffer capacity.
// Precondition: bufsize > 0.
func NewOutBufSize(sched *scheduler.Scheduler, sink Sink, bufsize int) *OutBuf {
	if bufsize <= 0 {
		panic("iobuf: OutBuf bufsize must be positive")
	}
	return &OutBuf{
		sched:  sched,
		sink:   sink,
		buf:    make([]byte, bufsize),
		ticket: scheduler.NilTicket,
	}
}

// Writable reports whether Write can accept at least one more byte
// without blocking: the local buffer has spare capacity.
func (b *OutBuf) Writable() bool {
	return b.limit != len(b.buf)
}

// ErrSeen reports whether the sink reported an error while draining.
func (b *OutBuf) ErrSeen() bool {
	return b.errSeen
}

// Write appends as much of src as the local buffer has room for,
// returning the count copied. Precondition: Writable().
func (b *OutBuf) Write(src []byte) int {
	if !b.Writable() {
		panic("iobuf: Write on a non-writable OutBuf")
	}
	n := copy(b.buf[b.limit:], src)
	b.limit += n
	return n
}

// CallWhenWritable arms cb to fire, at most once, the next time the
// buffer accepts more bytes, returning any callback it displaces. If
// the buffer is already writable, cb is scheduled via a zero-delay
// alarm rather than armed against the sink.
func (b *OutBuf) CallWhenWritable(cb callback.Func) callback.Func {
	if cb == nil {
		panic("iobuf: CallWhenWritable with a nil callback")
	}

	result := b.CancelWhenWritable()

	if b.Writable() {
		b.ticket = b.sched.CallAt(clock.Now(), func() { b.onWritableNow() })
	} else {
		b.ticket = b.sink.CallWhenWritable(func() { b.onSinkWritable() })
	}
	b.callback = cb

	return result
}

// CancelWhenWritable revokes and returns any pending callback.
func (b *OutBuf) CancelWhenWritable() callback.Func {
	if b.ticket.Empty() {
		return nil
	}
	b.sched.Cancel(b.ticket)
	b.ticket = scheduler.NilTicket
	return callback.Take(&b.callback)
}

func (b *OutBuf) onWritableNow() {
	b.ticket = scheduler.NilTicket
	callback.Take(&b.callback).Invoke()
}

func (b *OutBuf) onSinkWritable() {
	b.ticket = scheduler.NilTicket

	n, status := b.sink.Write(b.buf[:b.limit])
	switch status {
	case WouldBlock:
		b.ticket = b.sink.CallWhenWritable(func() { b.onSinkWritable() })
		return
	case Error:
		b.errSeen = true
		b.limit = 0
	default:
		remaining := copy(b.buf, b.buf[n:b.limit])
		b.limit = remaining
	}

	callback.Take(&b.callback).Invoke()
}

// Drain pushes buffered bytes to the sink without blocking, returning
// true once the buffer is fully flushed (or an error has latched).
// Callers wanting a full flush loop Drain behind CallWhenWritable
// until it reports done.
func (b *OutBuf) Drain() (done bool) {
	if b.limit == 0 || b.errSeen {
		return true
	}

	n, status := b.sink.Write(b.buf[:b.limit])
	switch status {
	case WouldBlock:
		return false
	case Error:
		b.errSeen = true
		b.limit = 0
		return true
	default:
		remaining := copy(b.buf, b.buf[n:b.limit])
		b.limit = remaining
		return b.limit == 0
	}
}
