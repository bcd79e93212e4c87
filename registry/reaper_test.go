package registry

import (
	"testing"
	"time"
)

func TestReaperTicksUntilStopped(t *testing.T) {
	r := New(4)
	c := &fakeClient{}
	if err := r.Add(c); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reaper := NewReaper(r, 5*time.Millisecond)
	go reaper.Run()

	time.Sleep(30 * time.Millisecond)
	reaper.Stop()

	if c.reaped == 0 {
		t.Error("reaper never ticked the registered client")
	}
}

func TestReaperStopReturnsWithNoTicks(t *testing.T) {
	r := New(1)
	reaper := NewReaper(r, time.Hour)
	go reaper.Run()
	reaper.Stop()
}
