package tcpio

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutiio/cuti/iobuf"
	"github.com/cutiio/cuti/scheduler"
	"github.com/cutiio/cuti/selector"
)

func newTestScheduler(t *testing.T) *scheduler.Scheduler {
	t.Helper()
	sel, err := selector.NewSelect()
	require.NoError(t, err)
	return scheduler.New(sel)
}

func TestPipeEchoesBytesThroughInAndOutBuf(t *testing.T) {
	sched := newTestScheduler(t)
	a, b, err := Pipe(sched)
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	outA := iobuf.NewOutBuf(sched, a)
	inB := iobuf.NewInBuf(sched, b)

	outA.Write([]byte("ping"))
	for !outA.Drain() {
		sched.Wait().Invoke()
	}

	var got []byte
	for len(got) < 4 {
		if !inB.Readable() {
			done := false
			inB.CallWhenReadable(func() { done = true })
			for !done {
				sched.Wait().Invoke()
			}
			continue
		}
		buf := make([]byte, 64)
		n := inB.Read(buf)
		got = append(got, buf[:n]...)
	}

	require.Equal(t, "ping", string(got))
}

func TestCloseWriteSignalsEOFToPeer(t *testing.T) {
	sched := newTestScheduler(t)
	a, b, err := Pipe(sched)
	require.NoError(t, err)
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.CloseWrite())

	inB := iobuf.NewInBuf(sched, b)
	for !inB.Readable() {
		done := false
		inB.CallWhenReadable(func() { done = true })
		for !done {
			sched.Wait().Invoke()
		}
	}

	_, ok := inB.Peek()
	require.False(t, ok, "Peek returned a byte after peer half-close, want EOF")
}
