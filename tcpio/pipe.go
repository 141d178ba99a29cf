package tcpio

import (
	"net"

	"github.com/cutiio/cuti/scheduler"
)

// Pipe returns two Conns wrapping a connected loopback TCP pair,
// grounded on the source's make_connected_pair test helper: listen on
// an ephemeral port, dial it locally, and accept the one inbound
// connection.
func Pipe(sched *scheduler.Scheduler) (a, b *Conn, err error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, err
	}
	defer ln.Close()

	acceptErr := make(chan error, 1)
	var serverConn *net.TCPConn
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		serverConn = conn.(*net.TCPConn)
		acceptErr <- nil
	}()

	clientConn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		return nil, nil, err
	}
	if err := <-acceptErr; err != nil {
		clientConn.Close()
		return nil, nil, err
	}

	a, err = New(sched, clientConn.(*net.TCPConn))
	if err != nil {
		clientConn.Close()
		serverConn.Close()
		return nil, nil, err
	}
	b, err = New(sched, serverConn)
	if err != nil {
		a.Close()
		serverConn.Close()
		return nil, nil, err
	}

	return a, b, nil
}
