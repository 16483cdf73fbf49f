package sequencer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestOptConnGatesStateSetStartupUntilConnected(t *testing.T) {
	var entered atomic.Bool

	def := Definition{
		Name:          "test",
		NumEventFlags: 1,
		Channels:      []ChannelDef{{Name: "x", Count: 1}},
		Options:       OptConn,
		StateSets: []StateSetDef{
			{Name: "ss0", States: []StateDef{{
				Name:  "s0",
				Entry: func(ss *SS) { entered.Store(true) },
			}}},
		},
		GlobalEntry: func(p *Program) {
			if err := p.StateSets()[0].Assign(0, "x"); err != nil {
				t.Errorf("Assign in GlobalEntry: %v", err)
			}
		},
	}
	p, ft := newTestProgram(t, def)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	if entered.Load() {
		t.Fatal("expected entry to be gated until the assigned channel connects")
	}
	select {
	case <-p.Ready():
		t.Fatal("expected Ready to still be blocked before the channel connects")
	default:
	}

	ft.Connect("x")

	deadline := time.After(time.Second)
	for !entered.Load() {
		select {
		case <-deadline:
			t.Fatal("expected entry to run once the channel connects")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	select {
	case <-p.Ready():
	default:
		t.Fatal("expected Ready to close once the gate is satisfied")
	}

	p.Shutdown()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after Shutdown")
	}
}

func TestOptConnGateReleasedByShutdownWithoutConnecting(t *testing.T) {
	var entered atomic.Bool

	def := Definition{
		Name:          "test",
		NumEventFlags: 1,
		Channels:      []ChannelDef{{Name: "x", Count: 1}},
		Options:       OptConn,
		StateSets: []StateSetDef{
			{Name: "ss0", States: []StateDef{{
				Name:  "s0",
				Entry: func(ss *SS) { entered.Store(true) },
			}}},
		},
		GlobalEntry: func(p *Program) {
			if err := p.StateSets()[0].Assign(0, "x"); err != nil {
				t.Errorf("Assign in GlobalEntry: %v", err)
			}
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
		t.Fatal("expected Shutdown to release a never-connected OptConn gate")
	}
	if entered.Load() {
		t.Fatal("expected entry not to run when shut down before any connection")
	}
}

func TestNoOptConnDoesNotGate(t *testing.T) {
	def := oneStateSetDef(0, StateDef{Name: "s0"})
	p, _ := newTestProgram(t, def)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	select {
	case <-p.Ready():
	case <-time.After(time.Second):
		t.Fatal("expected Ready to close promptly without OptConn")
	}
	p.Shutdown()
}
