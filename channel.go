package sequencer

import (
	"sync"
	"time"

	"github.com/seq-go/sequencer/internal/ringqueue"
)

// EventFlag identifies a one-bit synchronization primitive in [1..N]. Flag
// 0 is reserved (used internally as the exit-broadcast wake target).
type EventFlag int

// Meta is the status/severity/timestamp/message tuple carried per
// (state set, channel), mirroring the original's pvMeta.
type Meta struct {
	Status    Status
	Severity  Severity
	Timestamp time.Time
	Message   string
}

// QueueElement is one opaque fixed-size record flowing through a queued
// channel. The engine treats Value as opaque; copying semantics are the
// caller's concern, matching the original queue's caller-supplied copy
// hook design.
type QueueElement struct {
	Value any
	Meta  Meta
}

// ChannelDef is the static, generator-emitted descriptor for one channel
// (display name, variable name, type, count, event number, optional sync
// flag, monitored default, queue size), per the static-table interface in
// the external interfaces section. It has no byte offset: values are held
// as Go values in the shared and shadow buffers, not in a user-variable
// area.
type ChannelDef struct {
	Name       string // display name
	VarName    string // variable name with subscripts
	TypeName   string
	Count      int
	EventFlag  EventFlag // event number: PV activity wakes state sets whose event mask holds it; the bit is not set
	SyncFlag   EventFlag // 0 = not synced at construction time
	Monitored  bool      // monitor default
	QueueSize  int       // 0 = not queued
}

// dbchan is the dynamic transport-side state of an assignment, present
// only while the channel is bound to a named PV.
type dbchan struct {
	id        VarID
	name      string
	count     int
	connected bool
}

// Channel is the runtime state for one channel slot: static identity plus
// the optional DBCHAN, optional queue, monitored flag, and current sync
// target.
type Channel struct {
	index int
	def   ChannelDef

	db *dbchan // nil unless assigned

	queueMu sync.Mutex
	queue   *ringqueue.Queue[QueueElement]

	monitored bool
	syncedTo  EventFlag

	// shared holds the authoritative last-delivered value and per-SS dirty
	// bits; guarded by the owning Program's lock, per the concurrency
	// model's "shared value + meta (program lock)" row.
	sharedValue any
	sharedMeta  Meta
	dirty       []bool // indexed by state-set index
}

func newChannel(index int, def ChannelDef, numStateSets int) *Channel {
	ch := &Channel{
		index:     index,
		def:       def,
		monitored: def.Monitored,
		syncedTo:  def.SyncFlag,
		dirty:     make([]bool, numStateSets),
	}
	if def.QueueSize > 0 {
		ch.queue = ringqueue.New[QueueElement](def.QueueSize)
	}
	return ch
}

// Index returns the channel's position in the channel table.
func (c *Channel) Index() int {
	return c.index
}

// Assigned reports whether the channel currently has a DBCHAN.
func (c *Channel) Assigned() bool {
	return c.db != nil
}

// Connected reports the transport-reported connection state, false if
// unassigned.
func (c *Channel) Connected() bool {
	return c.db != nil && c.db.connected
}

// Name returns the currently assigned PV name, or "" if unassigned.
func (c *Channel) Name() string {
	if c.db == nil {
		return ""
	}
	return c.db.name
}

// Count returns the lesser of the declared element count and the count
// recorded for the assignment, following seq_pvCount. Falls back to the
// declared count while unassigned. Assign records the declared count, since
// the Transport interface reports no element count, so the result is
// always the declared count.
func (c *Channel) Count() int {
	if c.db == nil || c.db.count == 0 {
		return c.def.Count
	}
	if c.db.count < c.def.Count {
		return c.db.count
	}
	return c.def.Count
}

// Queued reports whether this channel has a queue configured.
func (c *Channel) Queued() bool {
	return c.queue != nil
}
