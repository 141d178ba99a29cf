//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package selector

import (
	"golang.org/x/sys/unix"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/listarena"
)

type pollRegistration struct {
	cb callback.Func
}

// pollSelector backs one listarena ticket per registration, indexed
// identically into a parallel unix.PollFd slice (ticket == index),
// mirroring the source's poll_selector_t.
type pollSelector struct {
	callbacks   *listarena.Arena[pollRegistration]
	watchedList int32
	pendingList int32
	pollfds     []unix.PollFd
}

var inactivePollFd = unix.PollFd{Fd: -1}

// NewPoll returns a Selector backed by the POSIX poll(2) call.
func NewPoll() (Selector, error) {
	p := &pollSelector{callbacks: listarena.New[pollRegistration]()}
	p.watchedList = p.callbacks.AddList()
	p.pendingList = p.callbacks.AddList()
	return p, nil
}

func (p *pollSelector) Name() string { return "poll" }

func (p *pollSelector) CallWhenWritable(fd int, cb callback.Func) int {
	return p.makeTicket(fd, unix.POLLOUT, cb)
}

func (p *pollSelector) CallWhenReadable(fd int, cb callback.Func) int {
	return p.makeTicket(fd, unix.POLLIN, cb)
}

func (p *pollSelector) CancelWhenWritable(ticket int) {
	p.cancelTicket(ticket)
}

func (p *pollSelector) CancelWhenReadable(ticket int) {
	p.cancelTicket(ticket)
}

func (p *pollSelector) HasWork() bool {
	return !p.callbacks.ListEmpty(p.watchedList) || !p.callbacks.ListEmpty(p.pendingList)
}

func (p *pollSelector) Select(timeout clock.Duration) callback.Func {
	if p.callbacks.ListEmpty(p.pendingList) {
		count, err := unix.Poll(p.pollfds, clock.ClampMillis(timeout))
		if err != nil {
			if err == unix.EINTR {
				return nil
			}
			panic("selector: poll(2) failure: " + err.Error())
		}

		ticket := p.callbacks.First(p.watchedList)
		for count > 0 && ticket != p.callbacks.Last(p.watchedList) {
			next := p.callbacks.Next(ticket)

			if p.pollfds[ticket].Revents != 0 {
				p.pollfds[ticket] = inactivePollFd
				p.callbacks.MoveElementBefore(p.callbacks.Last(p.pendingList), ticket)
				count--
			}

			ticket = next
		}
	}

	var result callback.Func
	if !p.callbacks.ListEmpty(p.pendingList) {
		ticket := p.callbacks.First(p.pendingList)
		result = callback.Take(&p.callbacks.Value(ticket).cb)
		p.callbacks.RemoveElement(ticket)
	}
	return result
}

func (p *pollSelector) Close() error { return nil }

func (p *pollSelector) makeTicket(fd int, events int16, cb callback.Func) int {
	ticket := p.callbacks.AddElementBefore(p.callbacks.Last(p.watchedList), pollRegistration{cb: cb})

	for int32(len(p.pollfds)) <= ticket {
		p.pollfds = append(p.pollfds, inactivePollFd)
	}
	p.pollfds[ticket] = unix.PollFd{Fd: int32(fd), Events: events}

	return int(ticket)
}

func (p *pollSelector) cancelTicket(ticket int) {
	p.pollfds[ticket] = inactivePollFd
	p.callbacks.RemoveElement(int32(ticket))
}
