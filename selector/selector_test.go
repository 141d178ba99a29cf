package selector

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cutiio/cuti/clock"
)

func allFactories(t *testing.T) []Factory {
	t.Helper()
	factories := append([]Factory{NewSelect, NewPoll}, Factories()...)
	return factories
}

func TestCallWhenReadableFiresOnPipeWrite(t *testing.T) {
	for _, factory := range allFactories(t) {
		sel, err := factory()
		require.NoError(t, err)

		r, w, err := os.Pipe()
		require.NoError(t, err)

		fired := false
		sel.CallWhenReadable(int(r.Fd()), func() { fired = true })

		_, err = w.Write([]byte("x"))
		require.NoError(t, err)

		cb := sel.Select(clock.Duration(0))
		require.NotNil(t, cb, "%s: Select returned no callback after write", sel.Name())
		cb.Invoke()
		require.True(t, fired, "%s: callback did not fire", sel.Name())

		r.Close()
		w.Close()
		sel.Close()
	}
}

func TestCancelWhenReadablePreventsDelivery(t *testing.T) {
	for _, factory := range allFactories(t) {
		sel, err := factory()
		require.NoError(t, err)

		r, w, err := os.Pipe()
		require.NoError(t, err)

		ticket := sel.CallWhenReadable(int(r.Fd()), func() { t.Fatalf("%s: canceled callback fired", sel.Name()) })
		sel.CancelWhenReadable(ticket)

		require.False(t, sel.HasWork(), "%s: HasWork true after canceling the only registration", sel.Name())

		w.Write([]byte("x"))
		r.Close()
		w.Close()
		sel.Close()
	}
}
