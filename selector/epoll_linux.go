//go:build linux

package selector

import (
	"golang.org/x/sys/unix"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/listarena"
)

// epollSelector runs two independent epoll instances, one per Event
// kind, and polls both through an outer poll(2) call on their epoll
// fds. This mirrors the source's epoll_selector_t, which keeps reader
// and writer interest sets apart so that a descriptor registered for
// both kinds never collides on a single epoll_event slot.
type epollSelector struct {
	epfds       [2]int // indexed by Event
	callbacks   *listarena.Arena[epollRegistration]
	watchedList int32
	pendingList int32
	events      []unix.EpollEvent
}

type epollRegistration struct {
	fd    int
	event Event
	cb    callback.Func
}

// NewEpoll returns a Selector backed by Linux's epoll(7) facility.
func NewEpoll() (Selector, error) {
	e := &epollSelector{callbacks: listarena.New[epollRegistration]()}
	e.watchedList = e.callbacks.AddList()
	e.pendingList = e.callbacks.AddList()

	for i := range e.epfds {
		fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
		if err != nil {
			for j := 0; j < i; j++ {
				unix.Close(e.epfds[j])
			}
			return nil, err
		}
		e.epfds[i] = fd
	}
	e.events = make([]unix.EpollEvent, 64)

	return e, nil
}

func (e *epollSelector) Name() string { return "epoll" }

func (e *epollSelector) CallWhenWritable(fd int, cb callback.Func) int {
	return e.register(fd, Writable, cb)
}

func (e *epollSelector) CallWhenReadable(fd int, cb callback.Func) int {
	return e.register(fd, Readable, cb)
}

func (e *epollSelector) CancelWhenWritable(ticket int) { e.cancel(ticket) }
func (e *epollSelector) CancelWhenReadable(ticket int) { e.cancel(ticket) }

func (e *epollSelector) HasWork() bool {
	return !e.callbacks.ListEmpty(e.watchedList) || !e.callbacks.ListEmpty(e.pendingList)
}

func (e *epollSelector) Select(timeout clock.Duration) callback.Func {
	if e.callbacks.ListEmpty(e.pendingList) {
		pollfds := []unix.PollFd{
			{Fd: int32(e.epfds[Writable]), Events: unix.POLLIN},
			{Fd: int32(e.epfds[Readable]), Events: unix.POLLIN},
		}

		_, err := unix.Poll(pollfds, clock.ClampMillis(timeout))
		if err != nil {
			if err == unix.EINTR {
				return nil
			}
			panic("selector: epoll outer poll(2) failure: " + err.Error())
		}

		for kind := range pollfds {
			if pollfds[kind].Revents == 0 {
				continue
			}
			e.drainEpoll(Event(kind))
		}
	}

	var result callback.Func
	if !e.callbacks.ListEmpty(e.pendingList) {
		ticket := e.callbacks.First(e.pendingList)
		result = callback.Take(&e.callbacks.Value(ticket).cb)
		e.callbacks.RemoveElement(ticket)
	}
	return result
}

func (e *epollSelector) drainEpoll(kind Event) {
	for {
		n, err := unix.EpollWait(e.epfds[kind], e.events, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			panic("selector: epoll_wait failure: " + err.Error())
		}
		for i := 0; i < n; i++ {
			// The ticket id was stashed in the low 32 bits of the
			// epoll_event union at registration time. Fd is an int32
			// field and slab ids stay below slab.MaxID, so reading it
			// back as a ticket involves no narrowing.
			ticket := int32(e.events[i].Fd)
			reg := e.callbacks.Value(ticket)
			// EPOLLONESHOT only disarms the fd, it does not remove it
			// from the interest list; without an explicit DEL here the
			// next ADD on the same fd (the normal re-arm path) fails
			// with EEXIST.
			unix.EpollCtl(e.epfds[kind], unix.EPOLL_CTL_DEL, reg.fd, nil)
			e.callbacks.MoveElementBefore(e.callbacks.Last(e.pendingList), ticket)
		}
		if n < len(e.events) {
			return
		}
	}
}

func (e *epollSelector) Close() error {
	var firstErr error
	for _, fd := range e.epfds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *epollSelector) register(fd int, kind Event, cb callback.Func) int {
	ticket := e.callbacks.AddElementBefore(e.callbacks.Last(e.watchedList), epollRegistration{
		fd: fd, event: kind, cb: cb,
	})

	ev := unix.EpollEvent{Fd: ticket}
	switch kind {
	case Writable:
		ev.Events = unix.EPOLLOUT | unix.EPOLLONESHOT
	case Readable:
		ev.Events = unix.EPOLLIN | unix.EPOLLONESHOT
	}

	if err := unix.EpollCtl(e.epfds[kind], unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		panic("selector: epoll_ctl(ADD) failure: " + err.Error())
	}

	return int(ticket)
}

func (e *epollSelector) cancel(ticket int) {
	reg := e.callbacks.Value(int32(ticket))
	unix.EpollCtl(e.epfds[reg.event], unix.EPOLL_CTL_DEL, reg.fd, nil)
	e.callbacks.RemoveElement(int32(ticket))
}
