package iobuf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/scheduler"
	"github.com/cutiio/cuti/selector"
)

// farFuture stands in for "forever" in these fakes: real sources/sinks
// would never arm a timed fallback at all, but the fakes need
// something for CallAt's signature, and an hour out is never reached
// because deliver/unblock cancels it first.
func farFuture() clock.TimePoint {
	return clock.Now().Add(time.Hour)
}

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	sel, err := selector.NewSelect()
	require.NoError(t, err)
	return scheduler.New(sel)
}

// fakeSource is an in-memory Source that reports WouldBlock until
// deliver is called, then yields its queued chunk.
type fakeSource struct {
	sched   *scheduler.Scheduler
	pending []byte
	armed   callback.Func
	ticket  scheduler.Ticket
}

func (f *fakeSource) Read(buf []byte) (int, Status) {
	if f.pending == nil {
		return 0, WouldBlock
	}
	n := copy(buf, f.pending)
	f.pending = nil
	return n, OK
}

func (f *fakeSource) CallWhenReadable(cb callback.Func) scheduler.Ticket {
	f.armed = cb
	f.ticket = f.sched.CallAt(farFuture(), func() {
		c := callback.Take(&f.armed)
		f.ticket = scheduler.NilTicket
		c.Invoke()
	})
	return f.ticket
}

func (f *fakeSource) CancelWhenReadable(ticket scheduler.Ticket) {
	if !ticket.Empty() {
		f.sched.Cancel(ticket)
	}
}

func (f *fakeSource) Err() error { return nil }

// deliver makes chunk available and fires whatever is armed, as if a
// readiness event had just occurred.
func (f *fakeSource) deliver(chunk []byte) {
	f.pending = chunk
	if !f.ticket.Empty() {
		f.sched.Cancel(f.ticket)
		f.ticket = scheduler.NilTicket
	}
	cb := callback.Take(&f.armed)
	if cb != nil {
		cb.Invoke()
	}
}

func TestInBufBecomesReadableAfterDelivery(t *testing.T) {
	sched := newTestScheduler(t)
	src := &fakeSource{sched: sched, ticket: scheduler.NilTicket}
	in := NewInBuf(sched, src)

	require.False(t, in.Readable(), "fresh InBuf over an empty source reports readable")

	fired := false
	in.CallWhenReadable(func() { fired = true })
	src.deliver([]byte("hello"))

	require.True(t, fired, "callback did not fire on delivery")
	require.True(t, in.Readable(), "InBuf not readable after delivery")

	dst := make([]byte, 5)
	n := in.Read(dst)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(dst[:n]))
}

func TestInBufAlreadyReadableSchedulesZeroDelayAlarm(t *testing.T) {
	sched := newTestScheduler(t)
	src := &fakeSource{sched: sched, ticket: scheduler.NilTicket}
	in := NewInBuf(sched, src)
	in.CallWhenReadable(func() {})
	src.deliver([]byte("x"))

	require.True(t, in.Readable(), "InBuf should be readable after delivery")

	fired := false
	in.CallWhenReadable(func() { fired = true })
	require.False(t, fired, "callback fired synchronously; should wait for Wait()")

	sched.Wait().Invoke()
	require.True(t, fired, "callback never fired via the zero-delay alarm")
}

func TestCallWhenReadableReturnsDisplacedCallback(t *testing.T) {
	sched := newTestScheduler(t)
	src := &fakeSource{sched: sched, ticket: scheduler.NilTicket}
	in := NewInBuf(sched, src)

	first := func() {}
	prev := in.CallWhenReadable(first)
	require.Nil(t, prev, "first CallWhenReadable displaced a non-nil callback")

	prev = in.CallWhenReadable(func() {})
	require.NotNil(t, prev, "second CallWhenReadable did not return the displaced callback")

	prev = in.CancelWhenReadable()
	require.NotNil(t, prev, "CancelWhenReadable returned nil for a pending registration")
}

// fakeSink accepts every write while unblocked and reports WouldBlock
// for every write while blocked, until unblock is called.
type fakeSink struct {
	sched    *scheduler.Scheduler
	received []byte
	blocked  bool
	armed    callback.Func
	ticket   scheduler.Ticket
}

func (s *fakeSink) Write(buf []byte) (int, Status) {
	if s.blocked {
		return 0, WouldBlock
	}
	s.received = append(s.received, buf...)
	return len(buf), OK
}

func (s *fakeSink) CallWhenWritable(cb callback.Func) scheduler.Ticket {
	s.armed = cb
	s.ticket = s.sched.CallAt(farFuture(), func() {
		c := callback.Take(&s.armed)
		s.ticket = scheduler.NilTicket
		c.Invoke()
	})
	return s.ticket
}

func (s *fakeSink) CancelWhenWritable(ticket scheduler.Ticket) {
	if !ticket.Empty() {
		s.sched.Cancel(ticket)
	}
}

func (s *fakeSink) Err() error { return nil }

func (s *fakeSink) unblock() {
	s.blocked = false
	if !s.ticket.Empty() {
		s.sched.Cancel(s.ticket)
		s.ticket = scheduler.NilTicket
	}
	cb := callback.Take(&s.armed)
	if cb != nil {
		cb.Invoke()
	}
}

func TestOutBufDrainsImmediatelyWhenSinkReady(t *testing.T) {
	sched := newTestScheduler(t)
	sink := &fakeSink{sched: sched, ticket: scheduler.NilTicket}
	out := NewOutBuf(sched, sink)

	out.Write([]byte("payload"))
	require.True(t, out.Drain(), "Drain did not finish against a ready sink")
	require.Equal(t, "payload", string(sink.received))
}

func TestOutBufRetriesAfterWouldBlock(t *testing.T) {
	sched := newTestScheduler(t)
	sink := &fakeSink{sched: sched, blocked: true, ticket: scheduler.NilTicket}
	// sized to the payload so the buffer is full and CallWhenWritable
	// arms the sink instead of scheduling a zero-delay alarm
	out := NewOutBufSize(sched, sink, len("payload"))
	out.Write([]byte("payload"))

	require.False(t, out.Drain(), "Drain reported done against a blocked sink")

	fired := false
	out.CallWhenWritable(func() { fired = true })
	sink.unblock()

	require.True(t, fired, "writable callback did not fire after unblock")
}
