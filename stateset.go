package sequencer

import (
	"context"
	"time"

	"github.com/seq-go/sequencer/internal/slotreq"
)

// pvRequest is the PVREQ equivalent: the opaque envelope handed to the
// transport as user data, carrying just enough to route a completion back
// to (state set, channel).
type pvRequest struct {
	ss      *StateSet
	channel int
	isPut   bool
}

// StateSet is the run-time instance of one SS: its index, current/previous
// state, timers, per-variable request slots, and (in safe mode) its shadow
// buffer.
type StateSet struct {
	prog  *Program
	index int
	def   StateSetDef

	currentState int
	prevState    int
	timeEntered  time.Time
	wakeupTime   time.Time
	hasWakeup    bool

	wake chan struct{} // binary semaphore: re-entrant wakes collapse

	getReq []*slotreq.Slot[*pvRequest]
	putReq []*slotreq.Slot[*pvRequest]

	shadow     []any
	shadowMeta []Meta
}

func newStateSet(p *Program, index int, def StateSetDef) *StateSet {
	n := len(p.channels)
	ss := &StateSet{
		prog:       p,
		index:      index,
		def:        def,
		wake:       make(chan struct{}, 1),
		getReq:     make([]*slotreq.Slot[*pvRequest], n),
		putReq:     make([]*slotreq.Slot[*pvRequest], n),
		shadow:     make([]any, n),
		shadowMeta: make([]Meta, n),
	}
	for i := range ss.getReq {
		ss.getReq[i] = slotreq.New[*pvRequest]()
		ss.putReq[i] = slotreq.New[*pvRequest]()
	}
	return ss
}

// Name returns the state set's configured name.
func (ss *StateSet) Name() string { return ss.def.Name }

// Index returns the state set's index into the program's state-set array.
func (ss *StateSet) Index() int { return ss.index }

// CurrentState returns the index of the currently active state.
func (ss *StateSet) CurrentState() int { return ss.currentState }

func (ss *StateSet) state() StateDef { return ss.def.States[ss.currentState] }

func (ss *StateSet) wakesOn(flag EventFlag) bool {
	for _, f := range ss.state().EventMask {
		if f == flag {
			return true
		}
	}
	return false
}

// postWake posts the SS wake semaphore; multiple posts before it's
// consumed collapse into one, matching a binary semaphore.
func (ss *StateSet) postWake() {
	select {
	case ss.wake <- struct{}{}:
	default:
	}
}

// Delay implements seq_delay(ss, d): reports whether timeEntered+d has
// elapsed, and otherwise lazily refines wakeupTime to the minimum
// registered checkpoint.
func (ss *StateSet) Delay(d time.Duration) bool {
	deadline := ss.timeEntered.Add(d)
	now := ss.prog.now()
	if !now.Before(deadline) {
		return true
	}
	if !ss.hasWakeup || deadline.Before(ss.wakeupTime) {
		ss.wakeupTime = deadline
		ss.hasWakeup = true
	}
	return false
}

// run is the per-state-set cooperative loop described in the state-set
// scheduler section: evaluate transitions, run entry/action/exit,
// otherwise sleep until the earliest wakeup or cancellation.
func (ss *StateSet) run(ctx context.Context) error {
	log := ss.prog.logger.Category("scheduler")
	ss.timeEntered = ss.prog.now()

	if entry := ss.state().Entry; entry != nil {
		ss.safeRun(log, "entry", entry)
	}

	for {
		if ss.prog.Terminated() {
			log.Info("state set exiting", map[string]any{"ss": ss.Name()})
			if exit := ss.state().Exit; exit != nil {
				ss.safeRun(log, "exit", exit)
			}
			return nil
		}

		ss.hasWakeup = false
		if delay := ss.state().Delay; delay != nil {
			ss.safeRun(log, "delay", delay)
		}

		var fired bool
		var nextState, transNum int
		if event := ss.state().Event; event != nil {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Error("event routine panicked", nil, map[string]any{"ss": ss.Name(), "panic": r})
					}
				}()
				fired, nextState, transNum = event(ss)
			}()
		}

		if fired {
			toSelf := nextState == ss.currentState
			opts := ss.state().Options

			if !toSelf || opts&OptDoExitToSelf != 0 {
				if exit := ss.state().Exit; exit != nil {
					ss.safeRun(log, "exit", exit)
				}
			}

			leavingDef := ss.state()
			ss.prevState = ss.currentState
			ss.currentState = nextState

			if action := leavingDef.Action; action != nil {
				ss.safeRun(log, "action", action)
			}

			if !toSelf || opts&OptNoResetTimers == 0 {
				ss.timeEntered = ss.prog.now()
			}

			if !toSelf || opts&OptDoEntryFromSelf != 0 {
				if entry := ss.state().Entry; entry != nil {
					ss.safeRun(log, "entry", entry)
				}
			}

			_ = transNum
			continue
		}

		var timeout time.Duration
		var t *time.Timer
		var timer <-chan time.Time
		if ss.hasWakeup {
			timeout = ss.wakeupTime.Sub(ss.prog.now())
			if timeout < 0 {
				timeout = 0
			}
			t = time.NewTimer(timeout)
			timer = t.C
		}

		select {
		case <-ss.wake:
		case <-timer:
		case <-ctx.Done():
		}
		if t != nil {
			t.Stop()
		}
	}
}

func (ss *StateSet) safeRun(log Logger, phase string, fn func(ss *SS)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(phase+" routine panicked", nil, map[string]any{"ss": ss.Name(), "panic": r})
		}
	}()
	fn(ss)
}
