// Package sequencer is the run-time core of a state-notation sequencer: it
// drives one or more generated state programs, each composed of several
// concurrently executing state sets that coordinate through event flags,
// delays, and process variables brokered through a [Transport]
// collaborator.
//
// # Architecture
//
// A [Program] is built from a static [Definition] (the generator's
// equivalent of a seqProgram table) plus [ProgramOption]s. Each
// [StateSetDef] becomes a [StateSet], run as its own goroutine by
// [Program.Run]; generated entry/event/action/delay/exit routines receive
// an [SS] (an alias for [StateSet]) as their sole argument, the package's
// thin C-style API façade.
//
// Channels ([Channel]) carry an optional DBCHAN-equivalent ([VarID]
// binding) while assigned to a named PV, an optional bounded queue, and
// sync-to-flag/monitored state. The PV request broker ([StateSet.Get],
// [StateSet.Put] and friends) serializes at most one outstanding get and
// one outstanding put per (state set, variable) using a one-slot handoff
// ([internal/slotreq]) that doubles as both the issuance semaphore and
// the completion signal.
//
// In safe mode ([OptSafe]), each state set observes a private shadow of
// every channel's value, updated only at explicit observation points
// (a get completion, or an [StateSet.EfTest]/[StateSet.EfTestAndClear] on
// a flag the channel is synced to) rather than whenever a PV callback
// fires.
//
// # Concurrency model
//
// One goroutine per state set, launched and supervised via
// golang.org/x/sync/errgroup. Within a state set, entry/event/action/exit
// bodies run sequentially. The program-wide lock guards the event-flag
// bitmap, the per-flag synced-channel index, assign/connect counters, and
// each channel's shared value/meta/dirty bits; per-channel queues have
// their own lock; shadow buffers are touched only by their owning state
// set.
//
// # Logging
//
// The engine logs through the narrow [Logger] port, supplied with
// [WithLogger]; without one it logs nothing. [NewLogrusLogger] builds a
// Logger backed by github.com/joeycumines/logiface via
// github.com/joeycumines/ilogrus, and callers may supply any other type
// implementing [Logger].
//
// # Usage
//
//	prog, err := sequencer.New(def, sequencer.WithTransport(t))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := prog.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package sequencer
