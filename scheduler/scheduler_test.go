package scheduler

import (
	"os"
	"testing"
	"time"

	"github.com/cutiio/cuti/clock"
	"github.com/cutiio/cuti/selector"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	sel, err := selector.NewSelect()
	if err != nil {
		t.Fatalf("selector.NewSelect: %v", err)
	}
	return New(sel)
}

func TestAlarmsFireInDeadlineOrder(t *testing.T) {
	s := newTestScheduler(t)
	now := clock.Now()

	var fired []string
	s.CallAt(now.Add(30*time.Millisecond), func() { fired = append(fired, "a") })
	s.CallAt(now.Add(10*time.Millisecond), func() { fired = append(fired, "b") })
	s.CallAt(now.Add(20*time.Millisecond), func() { fired = append(fired, "c") })

	for s.HasWork() {
		cb := s.Wait()
		cb.Invoke()
	}

	want := []string{"b", "c", "a"}
	if len(fired) != len(want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired = %v, want %v", fired, want)
		}
	}
}

func TestCancelAlarmSkipsIt(t *testing.T) {
	s := newTestScheduler(t)
	now := clock.Now()

	var fired []string
	ticketA := s.CallAt(now.Add(10*time.Millisecond), func() { fired = append(fired, "a") })
	s.CallAt(now.Add(20*time.Millisecond), func() { fired = append(fired, "b") })
	s.Cancel(ticketA)

	for s.HasWork() {
		s.Wait().Invoke()
	}

	if len(fired) != 1 || fired[0] != "b" {
		t.Fatalf("fired = %v, want [b]", fired)
	}
}

func TestFairnessAlternatesAlarmAndIO(t *testing.T) {
	s := newTestScheduler(t)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()
	if _, err := w.Write([]byte{1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	alarmFires, ioFires := 0, 0

	var armIO, armAlarm func()
	armIO = func() {
		s.CallWhenReadable(int(r.Fd()), func() {
			ioFires++
			buf := make([]byte, 1)
			r.Read(buf)
			w.Write(buf)
			armIO()
		})
	}
	armAlarm = func() {
		s.CallAt(clock.Now(), func() {
			alarmFires++
			armAlarm()
		})
	}
	armIO()
	armAlarm()

	for i := 0; i < 1000; i++ {
		s.Wait().Invoke()
	}

	ratio := float64(alarmFires) / float64(alarmFires+ioFires)
	if ratio < 0.4 || ratio > 0.6 {
		t.Fatalf("alarm/total ratio = %v, want within [0.4, 0.6] (alarms=%d io=%d)", ratio, alarmFires, ioFires)
	}
}

func TestWaitReturnsNilWhenNoWork(t *testing.T) {
	s := newTestScheduler(t)
	if s.HasWork() {
		t.Fatalf("fresh scheduler reports work")
	}
	if cb := s.Wait(); cb != nil {
		t.Fatalf("Wait on a scheduler with no work returned a callback")
	}
}
