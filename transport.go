package sequencer

import "time"

// VarID is the opaque transport-side handle for an assigned channel,
// returned by Transport.VarCreate. Analogous to the "id" out-parameter of
// varCreate in seqCom.h.
type VarID uint64

// ConnHandler is invoked by the transport when a channel's connection state
// changes. The engine supplies one per VarCreate call and it is called with
// the same user pointer convention described in the transport collaborator
// section: the engine closes over what it needs rather than passing a void*.
type ConnHandler func(connected bool)

// EventHandler is invoked by the transport to deliver a monitor update or a
// get/put completion. userArg is whatever was passed to the triggering
// VarGetCallback/VarPutCallback call (or nil for a monitor push), echoed
// back so the broker can match it to a pending request.
type EventHandler func(userArg any, status Status, severity Severity, timestamp time.Time, value any)

// Transport is the out-of-scope PV transport collaborator, specified here
// only as the callback-shaped Go interface the engine depends on. A real
// implementation talks to the control bus; internal/faketransport is a
// deterministic stand-in for tests.
type Transport interface {
	// VarCreate resolves name to a live PV, registering conn and event for
	// connection-state changes and monitor/get/put delivery respectively.
	VarCreate(name string, count int, conn ConnHandler, event EventHandler) (VarID, error)

	// VarDestroy releases a handle created by VarCreate. No further
	// callbacks for id are delivered after it returns.
	VarDestroy(id VarID) error

	// VarGetCallback issues an asynchronous get; completion is delivered to
	// the event handler supplied at VarCreate, with userArg echoed back.
	VarGetCallback(id VarID, userArg any) error

	// VarPutNoBlock issues a fire-and-forget put with no completion
	// tracking (the DEFAULT put mode).
	VarPutNoBlock(id VarID, value any) error

	// VarPutCallback issues an asynchronous put; completion is delivered to
	// the event handler, with userArg echoed back.
	VarPutCallback(id VarID, value any, userArg any) error

	// VarSubscribe starts monitor delivery for id: the event handler
	// supplied at VarCreate receives unsolicited updates (userArg nil)
	// until VarUnsubscribe is called.
	VarSubscribe(id VarID) error

	// VarUnsubscribe stops monitor delivery for id started by
	// VarSubscribe. Get/put completions are unaffected.
	VarUnsubscribe(id VarID) error

	// SysFlush flushes any buffered requests to the control bus, used by
	// the SYNC get/put paths before waiting on completion.
	SysFlush() error
}
