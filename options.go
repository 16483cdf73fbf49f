package sequencer

import (
	"time"
)

// ProgramOptionBits are the generator-emitted program option mask values,
// preserved bit-for-bit from the static-table interface.
type ProgramOptionBits uint32

const (
	OptDebug ProgramOptionBits = 1 << 0 // 1
	OptAsync ProgramOptionBits = 1 << 1 // 2
	// OptConn makes Run block state-set startup until every assigned
	// channel has connected (or the program is shut down first).
	OptConn  ProgramOptionBits = 1 << 2 // 4
	OptReent ProgramOptionBits = 1 << 3 // 8
	OptNewEF ProgramOptionBits = 1 << 4 // 16
	OptMain  ProgramOptionBits = 1 << 5 // 32
	OptSafe  ProgramOptionBits = 1 << 6 // 64
)

// StateOptionBits are the per-state option mask values from the state
// record in the static-table interface.
type StateOptionBits uint32

const (
	OptNoResetTimers   StateOptionBits = 1 << 0 // 1
	OptDoEntryFromSelf StateOptionBits = 1 << 1 // 2
	OptDoExitToSelf    StateOptionBits = 1 << 2 // 4
)

// CompletionMode selects how get/put resolve, mirroring seq_if.c's
// pvGet/pvPut mode argument.
type CompletionMode int

const (
	Default CompletionMode = 0
	Async   CompletionMode = 1
	Sync    CompletionMode = 2
)

func (m CompletionMode) String() string {
	switch m {
	case Default:
		return "DEFAULT"
	case Async:
		return "ASYNC"
	case Sync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

// resolve maps DEFAULT to ASYNC or SYNC per the program's ASYNC option bit,
// per spec: "DEFAULT resolves to ASYNC if the program option ASYNC is set,
// else SYNC".
func (m CompletionMode) resolve(opts ProgramOptionBits) CompletionMode {
	if m != Default {
		return m
	}
	if opts&OptAsync != 0 {
		return Async
	}
	return Sync
}

// programConfig holds the resolved configuration for a Program, assembled
// by ProgramOption values supplied to New.
type programConfig struct {
	transport Transport
	logger    Logger
	clock     func() time.Time
	opts      ProgramOptionBits
	macros    map[string]string
}

// ProgramOption configures a Program at construction time via the
// functional-options pattern.
type ProgramOption interface {
	applyProgram(*programConfig)
}

type programOptionFunc func(*programConfig)

func (f programOptionFunc) applyProgram(cfg *programConfig) { f(cfg) }

// WithTransport supplies the PV transport collaborator. Required; New
// returns an error if omitted.
func WithTransport(t Transport) ProgramOption {
	return programOptionFunc(func(cfg *programConfig) { cfg.transport = t })
}

// WithLogger supplies a structured logger. Defaults to a no-op logger.
func WithLogger(l Logger) ProgramOption {
	return programOptionFunc(func(cfg *programConfig) { cfg.logger = l })
}

// WithClock overrides the function the engine reads the current time from
// (delay checkpoints, time-entered stamps, Meta timestamps, and the
// remaining SYNC timeout budget), for deterministic tests. Waits and
// sleeps still run on real timers. Defaults to time.Now.
func WithClock(now func() time.Time) ProgramOption {
	return programOptionFunc(func(cfg *programConfig) { cfg.clock = now })
}

// WithProgramOptions sets the generator-emitted option mask (DEBUG, ASYNC,
// CONN, REENT, NEWEF, MAIN, SAFE bits).
func WithProgramOptions(bits ProgramOptionBits) ProgramOption {
	return programOptionFunc(func(cfg *programConfig) { cfg.opts = bits })
}

// WithMacros supplies the name/value table generated code queries through
// the macro value lookup façade (seq_macValueGet). String substitution
// into channel names is a compiler-time concern and stays out of scope
// here; this only carries the resolved values generated code may ask for
// at run time.
func WithMacros(values map[string]string) ProgramOption {
	return programOptionFunc(func(cfg *programConfig) { cfg.macros = values })
}

func resolveProgramOptions(opts []ProgramOption) *programConfig {
	cfg := &programConfig{
		logger: nopLogger{},
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyProgram(cfg)
	}
	return cfg
}
