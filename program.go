package sequencer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// StateDef is the generator-emitted descriptor for one state: name, the
// five callout functions, its event mask, and its per-state option bits.
type StateDef struct {
	Name    string
	Options StateOptionBits

	// EventMask lists the event flags whose change should wake a state set
	// currently in this state.
	EventMask []EventFlag

	Entry func(ss *SS)
	Exit  func(ss *SS)
	Action func(ss *SS)
	// Delay registers delay checkpoints via ss.Delay(d); called every
	// iteration before Event.
	Delay func(ss *SS)
	// Event evaluates transition guards. If it returns fired == true it
	// has chosen nextState and transNum.
	Event func(ss *SS) (fired bool, nextState int, transNum int)
}

// StateSetDef is the generator-emitted descriptor for one state set: name
// and its state array.
type StateSetDef struct {
	Name   string
	States []StateDef
}

// Definition is the generator-emitted static table for a program: the
// seqProgram equivalent. It is immutable once passed to New.
type Definition struct {
	Name          string
	Channels      []ChannelDef
	StateSets     []StateSetDef
	NumEventFlags int
	Options       ProgramOptionBits
	// GlobalEntry/GlobalExit run once, before any state set starts and
	// after all state sets have exited, respectively.
	GlobalEntry func(p *Program)
	GlobalExit  func(p *Program)
}

// Program is the run-time instance of one seq(...) invocation: channel
// array, state-set array, event-flag bitmap, shared-value buffers,
// assign/connect counters, program-wide lock, a die flag and the
// initial-connection gate.
type Program struct {
	def Definition

	transport Transport
	logger    Logger
	clock     func() time.Time

	mu sync.Mutex // guards flags, syncedChans, assign/connect bookkeeping, channel.db/syncedTo/monitored

	flags       bitset
	syncedChans map[EventFlag]map[int]struct{}

	channels  []*Channel
	stateSets []*StateSet

	assignCount  int
	connectCount int

	die atomic.Bool

	// ready is closed by Run once it has passed the initial-connection gate
	// (OptConn): the gate is satisfied, the program is shut down, or Run's
	// context is cancelled; without OptConn, as soon as Run starts. State
	// sets don't start until it closes.
	ready chan struct{}
	// connWake is posted whenever assignCount or connectCount changes, to
	// re-evaluate the gate Run blocks on.
	connWake chan struct{}

	safeMode bool
	macros   map[string]string
}

// New constructs a Program from a static Definition and options. The
// program is not running until Run is called.
func New(def Definition, opts ...ProgramOption) (*Program, error) {
	cfg := resolveProgramOptions(opts)
	if cfg.transport == nil {
		return nil, fmt.Errorf("sequencer: New: %w", errMissingTransport)
	}
	if len(def.StateSets) == 0 {
		return nil, fmt.Errorf("sequencer: New: program has no state sets")
	}
	options := cfg.opts
	if def.Options != 0 {
		options |= def.Options
	}

	p := &Program{
		def:         def,
		transport:   cfg.transport,
		logger:      cfg.logger,
		clock:       cfg.clock,
		flags:       newBitset(def.NumEventFlags),
		syncedChans: make(map[EventFlag]map[int]struct{}),
		ready:       make(chan struct{}),
		connWake:    make(chan struct{}, 1),
		safeMode:    options&OptSafe != 0,
		macros:      cfg.macros,
	}
	p.def.Options = options

	p.channels = make([]*Channel, len(def.Channels))
	for i, cd := range def.Channels {
		p.channels[i] = newChannel(i, cd, len(def.StateSets))
		if cd.SyncFlag != 0 {
			p.linkSynced(cd.SyncFlag, i)
		}
	}

	p.stateSets = make([]*StateSet, len(def.StateSets))
	for i, ssd := range def.StateSets {
		p.stateSets[i] = newStateSet(p, i, ssd)
	}

	return p, nil
}

var errMissingTransport = fmt.Errorf("a Transport must be supplied via WithTransport")

// Options returns the resolved program option bitmask.
func (p *Program) Options() ProgramOptionBits { return p.def.Options }

// SafeMode reports whether the SAFE option bit is set.
func (p *Program) SafeMode() bool { return p.safeMode }

// ChannelCount returns the number of channel slots, numChans.
func (p *Program) ChannelCount() int { return len(p.channels) }

// MacValueGet implements seq_macValueGet: a read-only lookup into the
// macro value table resolved at construction time via WithMacros. Macro
// string substitution into names is out of scope; this only serves
// generated code's direct value queries.
func (p *Program) MacValueGet(name string) (string, bool) {
	v, ok := p.macros[name]
	return v, ok
}

// AssignCount returns the number of currently assigned channels.
func (p *Program) AssignCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assignCount
}

// ConnectCount returns the number of currently connected channels.
func (p *Program) ConnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCount
}

// Flush flushes the transport (sysFlush) on explicit request. The SYNC
// get/put paths call the transport's SysFlush directly.
func (p *Program) Flush() error {
	return p.transport.SysFlush()
}

// StateSets returns the program's state sets, in definition order.
func (p *Program) StateSets() []*StateSet { return p.stateSets }

func (p *Program) now() time.Time { return p.clock() }

// postConnWake notifies Run's initial-connection gate that assignCount or
// connectCount changed and the condition should be re-checked.
func (p *Program) postConnWake() {
	select {
	case p.connWake <- struct{}{}:
	default:
	}
}

// Ready returns a channel that Run closes once it has passed the
// initial-connection gate: the gate is satisfied, the program is shut
// down, or Run's context is cancelled (without OptConn, as soon as Run
// starts).
func (p *Program) Ready() <-chan struct{} { return p.ready }

// awaitInitialConnections implements the OPT_CONN gate: block until every
// currently assigned channel has connected, the program is shut down, or
// ctx is cancelled. A no-op, including when nothing is assigned yet, if
// OptConn isn't set.
func (p *Program) awaitInitialConnections(ctx context.Context) {
	if p.def.Options&OptConn == 0 {
		return
	}
	for {
		p.mu.Lock()
		satisfied := p.assignCount == 0 || p.connectCount >= p.assignCount
		p.mu.Unlock()
		if satisfied || p.Terminated() {
			return
		}
		select {
		case <-p.connWake:
		case <-ctx.Done():
			return
		}
	}
}

// Run launches one goroutine per state set and blocks until all have
// exited (via Shutdown or an unrecoverable error), returning the first
// non-nil error, if any. If OptConn is set, state-set startup is gated on
// awaitInitialConnections.
func (p *Program) Run(ctx context.Context) error {
	if p.def.GlobalEntry != nil {
		p.def.GlobalEntry(p)
	}

	g, ctx := errgroup.WithContext(ctx)

	go func() {
		<-ctx.Done()
		p.Shutdown()
	}()

	p.awaitInitialConnections(ctx)
	close(p.ready)

	if !p.Terminated() {
		for _, ss := range p.stateSets {
			ss := ss
			g.Go(func() error {
				return ss.run(ctx)
			})
		}
	}

	err := g.Wait()

	if p.def.GlobalExit != nil {
		p.def.GlobalExit(p)
	}
	return err
}

// Shutdown sets the program-wide die flag and broadcasts a wake (flag 0)
// to unblock every sleeping state set, per the exit sequence described in
// the concurrency model. It also wakes any Run call blocked on the
// initial-connection gate.
func (p *Program) Shutdown() {
	if p.die.CompareAndSwap(false, true) {
		p.wakeAll()
		p.postConnWake()
		p.logger.Category("program").Info("shutdown requested", nil)
	}
}

// Terminated reports whether the program's die flag has been set.
func (p *Program) Terminated() bool {
	return p.die.Load()
}
