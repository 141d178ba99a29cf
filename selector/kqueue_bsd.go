//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package selector

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/listarena"
)

type kqueueRegistration struct {
	fd    int
	event Event
	cb    callback.Func
}

// kqueueSelector wraps a single kqueue(2) descriptor, registering each
// ticket as an EVFILT_READ or EVFILT_WRITE one-shot event keyed by its
// own ticket id (kevent's udata field), mirroring the source's
// kqueue_selector_t.
type kqueueSelector struct {
	kq          int
	callbacks   *listarena.Arena[kqueueRegistration]
	watchedList int32
	pendingList int32
	changes     []unix.Kevent_t
	events      []unix.Kevent_t
}

// NewKqueue returns a Selector backed by BSD's kqueue(2) facility.
func NewKqueue() (Selector, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)

	k := &kqueueSelector{kq: kq, callbacks: listarena.New[kqueueRegistration]()}
	k.watchedList = k.callbacks.AddList()
	k.pendingList = k.callbacks.AddList()
	k.events = make([]unix.Kevent_t, 64)
	return k, nil
}

func (k *kqueueSelector) Name() string { return "kqueue" }

func (k *kqueueSelector) CallWhenWritable(fd int, cb callback.Func) int {
	return k.register(fd, Writable, cb)
}

func (k *kqueueSelector) CallWhenReadable(fd int, cb callback.Func) int {
	return k.register(fd, Readable, cb)
}

func (k *kqueueSelector) CancelWhenWritable(ticket int) { k.cancel(ticket) }
func (k *kqueueSelector) CancelWhenReadable(ticket int) { k.cancel(ticket) }

func (k *kqueueSelector) HasWork() bool {
	return !k.callbacks.ListEmpty(k.watchedList) || !k.callbacks.ListEmpty(k.pendingList)
}

func (k *kqueueSelector) Select(timeout clock.Duration) callback.Func {
	if k.callbacks.ListEmpty(k.pendingList) {
		var ts *unix.Timespec
		if timeout >= 0 {
			millis := clock.ClampMillis(timeout)
			t := unix.NsecToTimespec(int64(millis) * int64(1_000_000))
			ts = &t
		}

		n, err := unix.Kevent(k.kq, k.changes, k.events, ts)
		k.changes = k.changes[:0]
		if err != nil {
			if err == unix.EINTR {
				return nil
			}
			panic("selector: kevent failure: " + err.Error())
		}

		for i := 0; i < n; i++ {
			// reverses the int-in-udata encoding from register below.
			ticket := int32(uintptr(unsafe.Pointer(k.events[i].Udata)))
			k.callbacks.MoveElementBefore(k.callbacks.Last(k.pendingList), ticket)
		}
	}

	var result callback.Func
	if !k.callbacks.ListEmpty(k.pendingList) {
		ticket := k.callbacks.First(k.pendingList)
		result = callback.Take(&k.callbacks.Value(ticket).cb)
		k.callbacks.RemoveElement(ticket)
	}
	return result
}

func (k *kqueueSelector) Close() error {
	return unix.Close(k.kq)
}

func (k *kqueueSelector) register(fd int, kind Event, cb callback.Func) int {
	ticket := k.callbacks.AddElementBefore(k.callbacks.Last(k.watchedList), kqueueRegistration{
		fd: fd, event: kind, cb: cb,
	})

	filter := int16(unix.EVFILT_READ)
	if kind == Writable {
		filter = unix.EVFILT_WRITE
	}

	change := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: filter,
		Flags:  unix.EV_ADD | unix.EV_ONESHOT,
		// Udata only ever carries the ticket id, never a real pointer;
		// this is a deliberate int-in-udata encoding, not a genuine
		// pointer conversion.
		Udata: (*byte)(unsafe.Pointer(uintptr(ticket))),
	}
	k.changes = append(k.changes, change)

	// register immediately rather than batching through the next
	// Select call, so a registration made between two Select calls
	// is active before the caller blocks again.
	if _, err := unix.Kevent(k.kq, k.changes, nil, nil); err != nil {
		panic("selector: kevent(EV_ADD) failure: " + err.Error())
	}
	k.changes = k.changes[:0]

	return int(ticket)
}

func (k *kqueueSelector) cancel(ticket int) {
	reg := k.callbacks.Value(int32(ticket))

	filter := int16(unix.EVFILT_READ)
	if reg.event == Writable {
		filter = unix.EVFILT_WRITE
	}

	change := unix.Kevent_t{
		Ident:  uint64(reg.fd),
		Filter: filter,
		Flags:  unix.EV_DELETE,
	}
	unix.Kevent(k.kq, []unix.Kevent_t{change}, nil, nil)

	k.callbacks.RemoveElement(int32(ticket))
}
