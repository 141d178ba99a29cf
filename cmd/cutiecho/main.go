// Command cutiecho is a minimal example service built on the cuti
// I/O core: it accepts TCP connections and echoes back whatever it
// reads, to exercise the scheduler/selector/iobuf/tcpio/dispatcher
// stack end to end. It takes no flags; the listen address comes from
// the CUTI_LISTEN_ADDR environment variable.
package main

import (
	"net"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cutiio/cuti/dispatcher"
	"github.com/cutiio/cuti/iobuf"
	"github.com/cutiio/cuti/scheduler"
	"github.com/cutiio/cuti/selector"
	"github.com/cutiio/cuti/tcpio"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	addr := os.Getenv("CUTI_LISTEN_ADDR")
	if addr == "" {
		log.Fatal("CUTI_LISTEN_ADDR is not set")
	}

	sel, err := selector.Default()
	if err != nil {
		log.WithError(err).Fatal("could not construct a selector")
	}
	sched := scheduler.New(sel)

	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		log.WithError(err).Fatal("invalid listen address")
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		log.WithError(err).Fatal("could not listen")
	}
	defer ln.Close()

	listenerFd, err := listenerFd(ln)
	if err != nil {
		log.WithError(err).Fatal("could not extract listener descriptor")
	}
	if err := syscall.SetNonblock(listenerFd, true); err != nil {
		log.WithError(err).Fatal("could not set listener non-blocking")
	}

	controlR, controlW, err := os.Pipe()
	if err != nil {
		log.WithError(err).Fatal("could not create control pipe")
	}
	defer controlR.Close()
	defer controlW.Close()
	if err := syscall.SetNonblock(int(controlR.Fd()), true); err != nil {
		log.WithError(err).Fatal("could not set control pipe non-blocking")
	}

	d := dispatcher.New(sched, log, int(controlR.Fd()))
	d.AddListener(&echoAcceptor{ln: ln, fd: listenerFd, sched: sched, log: log})

	log.WithField("addr", ln.Addr()).Info("cutiecho listening")
	if err := d.Run(); err != nil {
		log.WithError(err).Fatal("dispatcher exited with an error")
	}
}

// listenerFd duplicates net.TCPListener's file descriptor, the same
// way tcpio.New duplicates a connection's: the original stays owned
// by ln, the duplicate is what the selector watches.
func listenerFd(ln *net.TCPListener) (int, error) {
	raw, err := ln.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	var dupErr error
	if ctlErr := raw.Control(func(sysfd uintptr) {
		fd, dupErr = syscall.Dup(int(sysfd))
	}); ctlErr != nil {
		return -1, ctlErr
	}
	return fd, dupErr
}

type echoAcceptor struct {
	ln    *net.TCPListener
	fd    int
	sched *scheduler.Scheduler
	log   *logrus.Entry
}

func (a *echoAcceptor) Fd() int { return a.fd }

func (a *echoAcceptor) OnReady() {
	conn, err := a.ln.AcceptTCP()
	if err != nil {
		a.log.WithError(err).Warn("accept failed")
		return
	}
	startEchoSession(a.sched, a.log, conn)
}

// echoSession pumps bytes from its InBuf straight back out its
// OutBuf, re-arming itself on both ends as the scheduler allows.
type echoSession struct {
	conn *tcpio.Conn
	in   *iobuf.InBuf
	out  *iobuf.OutBuf
	log  *logrus.Entry
}

func startEchoSession(sched *scheduler.Scheduler, log *logrus.Entry, tcpConn *net.TCPConn) {
	conn, err := tcpio.New(sched, tcpConn)
	if err != nil {
		log.WithError(err).Warn("could not wrap accepted connection")
		tcpConn.Close()
		return
	}

	s := &echoSession{
		conn: conn,
		in:   iobuf.NewInBuf(sched, conn),
		out:  iobuf.NewOutBuf(sched, conn),
		log:  log,
	}
	s.pumpRead()
}

func (s *echoSession) pumpRead() {
	if !s.in.Readable() {
		s.in.CallWhenReadable(s.pumpRead)
		return
	}
	if s.in.ErrSeen() {
		s.close()
		return
	}
	if _, ok := s.in.Peek(); !ok {
		s.close()
		return
	}

	buf := make([]byte, 64*1024)
	n := s.in.Read(buf)
	s.pumpWrite(buf[:n])
}

func (s *echoSession) pumpWrite(data []byte) {
	for len(data) > 0 && s.out.Writable() {
		n := s.out.Write(data)
		data = data[n:]
	}
	flushed := s.out.Drain()

	if s.out.ErrSeen() {
		s.close()
		return
	}
	if len(data) > 0 || !flushed {
		s.out.CallWhenWritable(func() { s.pumpWrite(data) })
		return
	}

	s.pumpRead()
}

func (s *echoSession) close() {
	s.in.CancelWhenReadable()
	s.out.CancelWhenWritable()
	if err := s.conn.Close(); err != nil {
		s.log.WithError(err).Debug("error closing connection")
	}
}
