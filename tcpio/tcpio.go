// Package tcpio adapts a TCP connection to iobuf.Source/iobuf.Sink,
// the non-blocking transport contract that InBuf and OutBuf drive.
package tcpio

import (
	"errors"
	"net"
	"syscall"

	"github.com/cutiio/cuti/callback"
	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/iobuf"
	"github.com/cutiio/cuti/scheduler"
)

// Conn is a non-blocking TCP connection bound to one scheduler. It
// satisfies both iobuf.Source and iobuf.Sink, so one Conn can back an
// InBuf and an OutBuf at once, as a bidirectional stream endpoint
// does.
type Conn struct {
	sched    *scheduler.Scheduler
	tcp      *net.TCPConn
	fd       int
	lastErr  error
	writeEnd bool // true once CloseWrite has run
}

// New wraps conn for non-blocking use on sched. conn is duplicated at
// the file descriptor level so *net.TCPConn's finalizer (which would
// otherwise close the fd out from under us) can run independently;
// Close releases both conn and the duplicate.
func New(sched *scheduler.Scheduler, conn *net.TCPConn) (*Conn, error) {
	fd, err := dup(conn)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &Conn{sched: sched, tcp: conn, fd: fd}, nil
}

func dup(conn *net.TCPConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}

	var fd int
	var dupErr error
	ctlErr := raw.Control(func(sysfd uintptr) {
		fd, dupErr = syscall.Dup(int(sysfd))
	})
	if ctlErr != nil {
		return -1, ctlErr
	}
	if dupErr != nil {
		return -1, dupErr
	}
	return fd, nil
}

// Fd returns the duplicated, non-blocking file descriptor this Conn
// drives. Exposed for selector registration by a dispatcher.
func (c *Conn) Fd() int { return c.fd }

// Read implements iobuf.Source.
func (c *Conn) Read(buf []byte) (int, iobuf.Status) {
	n, err := syscall.Read(c.fd, buf)
	switch {
	case n >= 0 && err == nil:
		return n, iobuf.OK
	case errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK):
		return 0, iobuf.WouldBlock
	case errors.Is(err, syscall.EINTR):
		return 0, iobuf.WouldBlock
	default:
		c.lastErr = err
		return 0, iobuf.Error
	}
}

// Write implements iobuf.Sink.
func (c *Conn) Write(buf []byte) (int, iobuf.Status) {
	if c.writeEnd {
		c.lastErr = errors.New("tcpio: write after CloseWrite")
		return 0, iobuf.Error
	}

	n, err := syscall.Write(c.fd, buf)
	switch {
	case n >= 0 && err == nil:
		return n, iobuf.OK
	case errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK):
		return 0, iobuf.WouldBlock
	case errors.Is(err, syscall.EINTR):
		return 0, iobuf.WouldBlock
	default:
		c.lastErr = err
		return 0, iobuf.Error
	}
}

// CallWhenReadable implements iobuf.Source.
func (c *Conn) CallWhenReadable(cb callback.Func) scheduler.Ticket {
	return c.sched.CallWhenReadable(c.fd, cb)
}

// CancelWhenReadable implements iobuf.Source.
func (c *Conn) CancelWhenReadable(ticket scheduler.Ticket) {
	if !ticket.Empty() {
		c.sched.Cancel(ticket)
	}
}

// CallWhenWritable implements iobuf.Sink. Once the write end has been
// closed, cb fires via a zero-delay alarm rather than re-arming a
// descriptor half that will never report writable again.
func (c *Conn) CallWhenWritable(cb callback.Func) scheduler.Ticket {
	if c.writeEnd {
		return c.sched.CallAt(clock.Now(), cb)
	}
	return c.sched.CallWhenWritable(c.fd, cb)
}

// CancelWhenWritable implements iobuf.Sink.
func (c *Conn) CancelWhenWritable(ticket scheduler.Ticket) {
	if !ticket.Empty() {
		c.sched.Cancel(ticket)
	}
}

// Err implements both iobuf.Source and iobuf.Sink.
func (c *Conn) Err() error { return c.lastErr }

// CloseWrite half-closes the connection: the peer sees EOF, while
// this side can continue reading.
func (c *Conn) CloseWrite() error {
	c.writeEnd = true
	return syscall.Shutdown(c.fd, syscall.SHUT_WR)
}

// Close releases the file descriptor and the wrapped net.TCPConn.
func (c *Conn) Close() error {
	syscall.Close(c.fd)
	return c.tcp.Close()
}
