package sequencer

import (
	"testing"
	"time"

	"github.com/seq-go/sequencer/internal/faketransport"
)

func newTestProgram(t *testing.T, def Definition, opts ...ProgramOption) (*Program, *faketransport.Transport) {
	t.Helper()
	ft := faketransport.New()
	allOpts := append([]ProgramOption{WithTransport(ft)}, opts...)
	p, err := New(def, allOpts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, ft
}

func oneStateSetDef(numFlags int, states ...StateDef) Definition {
	return Definition{
		Name:          "test",
		NumEventFlags: numFlags,
		StateSets: []StateSetDef{
			{Name: "ss0", States: states},
		},
	}
}

func TestEfSetWakesMatchingStateSet(t *testing.T) {
	p, _ := newTestProgram(t, oneStateSetDef(2, StateDef{Name: "s0", EventMask: []EventFlag{1}}))
	ss := p.stateSets[0]

	p.EfSet(1)

	select {
	case <-ss.wake:
	default:
		t.Fatal("expected wake semaphore to be posted")
	}
}

func TestEfTestAndClear(t *testing.T) {
	p, _ := newTestProgram(t, oneStateSetDef(2, StateDef{Name: "s0"}))
	ss := p.stateSets[0]

	p.EfSet(1)
	if !p.EfTest(ss, 1) {
		t.Fatal("expected flag 1 to test true after set")
	}
	if !p.EfTestAndClear(ss, 1) {
		t.Fatal("expected testAndClear to observe true")
	}
	if p.EfTest(ss, 1) {
		t.Fatal("expected flag 1 to be false after testAndClear")
	}
}

func TestEfFlagZeroPanics(t *testing.T) {
	p, _ := newTestProgram(t, oneStateSetDef(2, StateDef{Name: "s0"}))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for flag 0")
		}
	}()
	p.EfSet(0)
}

func TestSelectiveCopyOnEfTest(t *testing.T) {
	def := oneStateSetDef(1, StateDef{Name: "s0"})
	def.Channels = []ChannelDef{{Name: "x", Count: 1, SyncFlag: 1}}
	def.Options = OptSafe
	p, _ := newTestProgram(t, def)
	ss := p.stateSets[0]

	p.writeShared(0, 42, Meta{Status: StatusOK, Timestamp: time.Now()}, false, 0)

	if v, _ := ss.Shadow(0); v != nil {
		t.Fatalf("expected shadow to remain nil before observation, got %v", v)
	}

	p.EfTest(ss, 1)

	v, _ := ss.Shadow(0)
	if v != 42 {
		t.Fatalf("expected shadow to be 42 after efTest, got %v", v)
	}
}
