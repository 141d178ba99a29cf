//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package selector

import (
	"syscall"
	"unsafe"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/listarena"
)

// fdSetSize mirrors the standard FD_SETSIZE (1024 descriptors) that
// syscall.FdSet is sized for on every platform this package targets.
const fdSetSize = 1024

// fdSetBytes views a syscall.FdSet as a raw bitmap. syscall.FdSet's
// word size (int64 on linux, int32 on darwin/bsd) differs by
// platform, but FD_SET/FD_ISSET only care about byte-then-bit
// addressing, so operating through a byte view sidesteps needing a
// select_unix file per GOOS.
func fdSetBytes(set *syscall.FdSet) *[fdSetSize / 8]byte {
	return (*[fdSetSize / 8]byte)(unsafe.Pointer(set))
}

func fdSetAdd(set *syscall.FdSet, fd int) {
	if fd < 0 || fd >= fdSetSize {
		panic("selector: fd exceeds FD_SETSIZE for the select backend")
	}
	b := fdSetBytes(set)
	b[fd/8] |= 1 << uint(fd%8)
}

func fdSetHas(set *syscall.FdSet, fd int) bool {
	b := fdSetBytes(set)
	return b[fd/8]&(1<<uint(fd%8)) != 0
}

type selectRegistration struct {
	fd    int
	event Event
	cb    callback.Func
}

type selectSelector struct {
	registrations            *listarena.Arena[selectRegistration]
	watchedList, pendingList int32
}

// NewSelect returns a Selector backed by the POSIX select(2) call.
func NewSelect() (Selector, error) {
	s := &selectSelector{registrations: listarena.New[selectRegistration]()}
	s.watchedList = s.registrations.AddList()
	s.pendingList = s.registrations.AddList()
	return s, nil
}

func (s *selectSelector) Name() string { return "select" }

func (s *selectSelector) CallWhenWritable(fd int, cb callback.Func) int {
	return int(s.makeTicket(fd, Writable, cb))
}

func (s *selectSelector) CallWhenReadable(fd int, cb callback.Func) int {
	return int(s.makeTicket(fd, Readable, cb))
}

func (s *selectSelector) CancelWhenWritable(ticket int) {
	s.registrations.RemoveElement(int32(ticket))
}

func (s *selectSelector) CancelWhenReadable(ticket int) {
	s.registrations.RemoveElement(int32(ticket))
}

func (s *selectSelector) HasWork() bool {
	return !s.registrations.ListEmpty(s.watchedList) ||
		!s.registrations.ListEmpty(s.pendingList)
}

func (s *selectSelector) Select(timeout clock.Duration) callback.Func {
	if s.registrations.ListEmpty(s.pendingList) {
		var infds, outfds syscall.FdSet
		nfds := 0

		for ticket := s.registrations.First(s.watchedList); ticket != s.registrations.Last(s.watchedList); ticket = s.registrations.Next(ticket) {
			reg := s.registrations.Value(ticket)
			switch reg.event {
			case Writable:
				fdSetAdd(&outfds, reg.fd)
			case Readable:
				fdSetAdd(&infds, reg.fd)
			}
			if reg.fd >= nfds {
				nfds = reg.fd + 1
			}
		}

		var tv syscall.Timeval
		var ptv *syscall.Timeval
		if timeout >= 0 {
			millis := clock.ClampMillis(timeout)
			tv.Sec = int64(millis / 1000)
			tv.Usec = int64((millis % 1000) * 1000)
			ptv = &tv
		}

		count, err := syscall.Select(nfds, &infds, &outfds, nil, ptv)
		if err != nil {
			if err == syscall.EINTR {
				return nil
			}
			panic("selector: select(2) failure: " + err.Error())
		}

		ticket := s.registrations.First(s.watchedList)
		for count > 0 && ticket != s.registrations.Last(s.watchedList) {
			next := s.registrations.Next(ticket)
			reg := s.registrations.Value(ticket)

			var isSet bool
			switch reg.event {
			case Writable:
				isSet = fdSetHas(&outfds, reg.fd)
			case Readable:
				isSet = fdSetHas(&infds, reg.fd)
			}

			if isSet {
				s.registrations.MoveElementBefore(s.registrations.Last(s.pendingList), ticket)
				count--
			}

			ticket = next
		}
	}

	var result callback.Func
	if !s.registrations.ListEmpty(s.pendingList) {
		ticket := s.registrations.First(s.pendingList)
		result = callback.Take(&s.registrations.Value(ticket).cb)
		s.registrations.RemoveElement(ticket)
	}
	return result
}

func (s *selectSelector) Close() error { return nil }

func (s *selectSelector) makeTicket(fd int, event Event, cb callback.Func) int32 {
	return s.registrations.AddElementBefore(s.registrations.Last(s.watchedList), selectRegistration{
		fd: fd, event: event, cb: cb,
	})
}
