package sequencer

import (
	"errors"
	"testing"
	"time"
)

func assignedDef(numFlags int, channels []ChannelDef) Definition {
	return Definition{
		Name:          "test",
		NumEventFlags: numFlags,
		Channels:      channels,
		StateSets: []StateSetDef{
			{Name: "ss0", States: []StateDef{{Name: "s0"}}},
		},
	}
}

func TestSyncGetTimeout(t *testing.T) {
	def := assignedDef(1, []ChannelDef{{Name: "y", Count: 1}})
	p, ft := newTestProgram(t, def)
	ss := p.stateSets[0]

	if err := ss.Assign(0, "y"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	ft.Connect("y")

	err := ss.Get(0, Sync, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	var pvErr *PVError
	if !errors.As(err, &pvErr) || pvErr.Status != StatusTIMEOUT || pvErr.Severity != SeverityMAJOR {
		t.Fatalf("expected TIMEOUT/MAJOR PVError, got %#v", err)
	}

	// subsequent get, with the transport cooperating, should succeed.
	go func() {
		time.Sleep(10 * time.Millisecond)
		ft.CompleteGet("y", 123)
	}()
	if err := ss.Get(0, Sync, time.Second); err != nil {
		t.Fatalf("expected second get to succeed, got %v", err)
	}
}

func TestAsyncGetContention(t *testing.T) {
	def := assignedDef(1, []ChannelDef{{Name: "y", Count: 1}})
	p, ft := newTestProgram(t, def)
	ss := p.stateSets[0]

	if err := ss.Assign(0, "y"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	ft.Connect("y")

	if err := ss.Get(0, Async, 0); err != nil {
		t.Fatalf("first async get: %v", err)
	}
	if err := ss.Get(0, Async, 0); !errors.Is(err, ErrPending) {
		t.Fatalf("expected ErrPending on contended async get, got %v", err)
	}

	ft.CompleteGet("y", 7)

	if !ss.GetComplete(0, 1, true, nil) {
		t.Fatal("expected getComplete(any=true) to report true exactly once")
	}
	if ss.GetComplete(0, 1, true, nil) {
		t.Fatal("expected getComplete to report false the second time")
	}
}

func TestAnonymousQueuedPutSafeMode(t *testing.T) {
	def := assignedDef(1, []ChannelDef{{Name: "q", Count: 1, QueueSize: 2, SyncFlag: 1}})
	def.Options = OptSafe
	p, _ := newTestProgram(t, def)
	ss := p.stateSets[0]

	for _, v := range []int{1, 2, 3} {
		if err := ss.Put(0, Default, 0, v); err != nil {
			t.Fatalf("anonymous put %d: %v", v, err)
		}
	}

	if !p.EfTest(ss, 1) {
		t.Fatal("expected sync flag to be set after puts")
	}

	wantSeq := []struct {
		v  int
		ok bool
	}{
		{2, true},
		{3, true},
		{0, false},
	}
	for i, w := range wantSeq {
		v, ok, err := ss.GetQ(0)
		if err != nil {
			t.Fatalf("GetQ: %v", err)
		}
		if ok != w.ok || (ok && v != w.v) {
			t.Fatalf("GetQ %d: got (%v, %v), want (%v, %v)", i, v, ok, w.v, w.ok)
		}
	}

	if p.EfTest(ss, 1) {
		t.Fatal("expected sync flag cleared once the queue drains")
	}
}

func TestMonitorFlagRead(t *testing.T) {
	def := assignedDef(1, []ChannelDef{{Name: "x", Count: 1, SyncFlag: 1}})
	def.Options = OptSafe
	p, ft := newTestProgram(t, def)
	ss := p.stateSets[0]

	if err := ss.Assign(0, "x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	ft.Connect("x")

	if ft.Subscribed("x") {
		t.Fatal("expected no subscription before Monitor")
	}
	if err := ss.Monitor(0); err != nil {
		t.Fatalf("Monitor: %v", err)
	}
	if !ft.Subscribed("x") {
		t.Fatal("expected Monitor to subscribe the assigned channel on the transport")
	}

	if !ft.Push("x", 42) {
		t.Fatal("expected Push to deliver once subscribed")
	}

	if !p.EfTest(ss, 1) {
		t.Fatal("expected efTest(ss, 1) to return true after the monitor push")
	}
	v, _ := ss.Shadow(0)
	if v != 42 {
		t.Fatalf("expected shadow of x to be 42, got %v", v)
	}

	if err := ss.StopMonitor(0); err != nil {
		t.Fatalf("StopMonitor: %v", err)
	}
	if ft.Subscribed("x") {
		t.Fatal("expected StopMonitor to unsubscribe on the transport")
	}
	if ft.Push("x", 7) {
		t.Fatal("expected Push to be dropped once unsubscribed")
	}
}

func TestAssignConnectInvariant(t *testing.T) {
	def := assignedDef(1, []ChannelDef{{Name: "x", Count: 1}})
	p, ft := newTestProgram(t, def)
	ss := p.stateSets[0]

	if err := ss.Assign(0, "x"); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if p.AssignCount() != 1 {
		t.Fatalf("AssignCount: got %d, want 1", p.AssignCount())
	}
	ft.Connect("x")
	if p.ConnectCount() != 1 {
		t.Fatalf("ConnectCount: got %d, want 1", p.ConnectCount())
	}
	if p.ConnectCount() > p.AssignCount() || p.AssignCount() > p.ChannelCount() {
		t.Fatal("connectCount <= assignCount <= numChans invariant violated")
	}

	if err := ss.Assign(0, ""); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if p.AssignCount() != 0 {
		t.Fatalf("AssignCount after unassign: got %d, want 0", p.AssignCount())
	}
}
