package sequencer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSelfTransitionNoResetTimers(t *testing.T) {
	var fired atomic.Int32
	var sawExpiredAt3s atomic.Bool

	def := oneStateSetDef(0, StateDef{
		Name:    "s0",
		Options: OptNoResetTimers,
		Delay: func(ss *SS) {
			if ss.Delay(5 * time.Second) {
				sawExpiredAt3s.Store(true)
			}
		},
		Event: func(ss *SS) (bool, int, int) {
			n := fired.Add(1)
			// self-transition exactly once, at the first iteration.
			return n == 1, 0, 0
		},
	})

	clockStart := time.Now()
	clock := clockStart
	p, _ := newTestProgram(t, def, WithClock(func() time.Time { return clock }))
	ss := p.stateSets[0]

	clock = clockStart.Add(3 * time.Second)
	ss.timeEntered = clockStart
	ss.hasWakeup = false
	if ss.state().Delay != nil {
		ss.state().Delay(ss)
	}
	if ss.hasWakeup == false {
		t.Fatal("expected delay to register a wakeup before expiry")
	}
	if sawExpiredAt3s.Load() {
		t.Fatal("delay should not have expired yet at t0+3s")
	}

	// simulate the self-transition's NORESETTIMERS effect: timeEntered is
	// NOT reset, so the same delay checkpoint, evaluated again at t0+5s+,
	// should now report expired.
	clock = clockStart.Add(5*time.Second + time.Millisecond)
	ss.hasWakeup = false
	ss.state().Delay(ss)
	if !sawExpiredAt3s.Load() {
		t.Fatal("expected delay to report expired once elapsed from original timeEntered")
	}
}

func TestExitBroadcastWakesAllStateSets(t *testing.T) {
	def := Definition{
		Name:          "test",
		NumEventFlags: 1,
		StateSets: []StateSetDef{
			{Name: "ss0", States: []StateDef{{Name: "s0"}}},
			{Name: "ss1", States: []StateDef{{Name: "s0"}}},
		},
	}
	p, _ := newTestProgram(t, def)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	p.Shutdown()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected both state sets to wake and exit within one iteration of the broadcast")
	}

	if !p.Terminated() {
		t.Fatal("expected program to be terminated")
	}
}
