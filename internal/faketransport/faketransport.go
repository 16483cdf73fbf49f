// Package faketransport is a deterministic stand-in for a real PV
// transport, implementing sequencer.Transport so tests can drive
// connect/event/callback timing precisely instead of depending on a live
// control bus.
package faketransport

import (
	"fmt"
	"sync"
	"time"

	"github.com/seq-go/sequencer"
)

type channelState struct {
	id         sequencer.VarID
	name       string
	count      int
	conn       sequencer.ConnHandler
	event      sequencer.EventHandler
	connected  bool
	subscribed bool

	pendingGets []any
	pendingPuts []any

	lastPutNoBlock any
}

// Transport is a fake sequencer.Transport. The zero value is not usable;
// construct with New.
type Transport struct {
	mu      sync.Mutex
	nextID  uint64
	byID    map[sequencer.VarID]*channelState
	byName  map[string]*channelState
	flushes int

	// FailCreate, if set for a name, makes every VarCreate call for that
	// name fail until the entry is cleared.
	FailCreate map[string]bool
}

// New returns a ready Transport with no channels.
func New() *Transport {
	return &Transport{
		byID:       make(map[sequencer.VarID]*channelState),
		byName:     make(map[string]*channelState),
		FailCreate: make(map[string]bool),
	}
}

func (t *Transport) VarCreate(name string, count int, conn sequencer.ConnHandler, event sequencer.EventHandler) (sequencer.VarID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailCreate[name] {
		return 0, fmt.Errorf("faketransport: configured to fail VarCreate for %q", name)
	}

	t.nextID++
	id := sequencer.VarID(t.nextID)
	cs := &channelState{id: id, name: name, count: count, conn: conn, event: event}
	t.byID[id] = cs
	t.byName[name] = cs
	return id, nil
}

func (t *Transport) VarDestroy(id sequencer.VarID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cs, ok := t.byID[id]; ok {
		delete(t.byName, cs.name)
		delete(t.byID, id)
	}
	return nil
}

func (t *Transport) VarGetCallback(id sequencer.VarID, userArg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("faketransport: unknown id %d", id)
	}
	cs.pendingGets = append(cs.pendingGets, userArg)
	return nil
}

func (t *Transport) VarPutNoBlock(id sequencer.VarID, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("faketransport: unknown id %d", id)
	}
	cs.lastPutNoBlock = value
	return nil
}

func (t *Transport) VarPutCallback(id sequencer.VarID, value any, userArg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("faketransport: unknown id %d", id)
	}
	cs.pendingPuts = append(cs.pendingPuts, userArg)
	return nil
}

func (t *Transport) VarSubscribe(id sequencer.VarID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("faketransport: unknown id %d", id)
	}
	cs.subscribed = true
	return nil
}

func (t *Transport) VarUnsubscribe(id sequencer.VarID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cs, ok := t.byID[id]
	if !ok {
		return fmt.Errorf("faketransport: unknown id %d", id)
	}
	cs.subscribed = false
	return nil
}

func (t *Transport) SysFlush() error {
	t.mu.Lock()
	t.flushes++
	t.mu.Unlock()
	return nil
}

// Flushes reports how many times SysFlush has been called.
func (t *Transport) Flushes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}

// Connect marks name as connected and invokes its ConnHandler.
func (t *Transport) Connect(name string) {
	t.setConnected(name, true)
}

// Disconnect marks name as disconnected and invokes its ConnHandler.
func (t *Transport) Disconnect(name string) {
	t.setConnected(name, false)
}

func (t *Transport) setConnected(name string, connected bool) {
	t.mu.Lock()
	cs, ok := t.byName[name]
	if ok {
		cs.connected = connected
	}
	t.mu.Unlock()
	if ok && cs.conn != nil {
		cs.conn(connected)
	}
}

// CompleteGet pops the oldest pending get for name and delivers value with
// StatusOK/SeverityNONE.
func (t *Transport) CompleteGet(name string, value any) bool {
	return t.completeOne(name, true, sequencer.StatusOK, sequencer.SeverityNONE, value)
}

// CompletePut pops the oldest pending put for name and delivers
// StatusOK/SeverityNONE.
func (t *Transport) CompletePut(name string) bool {
	return t.completeOne(name, false, sequencer.StatusOK, sequencer.SeverityNONE, nil)
}

// FailGet pops the oldest pending get for name and delivers the given
// status/severity instead of success, for exercising error paths.
func (t *Transport) FailGet(name string, status sequencer.Status, severity sequencer.Severity) bool {
	return t.completeOne(name, true, status, severity, nil)
}

func (t *Transport) completeOne(name string, isGet bool, status sequencer.Status, severity sequencer.Severity, value any) bool {
	t.mu.Lock()
	cs, ok := t.byName[name]
	if !ok {
		t.mu.Unlock()
		return false
	}
	var queue *[]any
	if isGet {
		queue = &cs.pendingGets
	} else {
		queue = &cs.pendingPuts
	}
	if len(*queue) == 0 {
		t.mu.Unlock()
		return false
	}
	userArg := (*queue)[0]
	*queue = (*queue)[1:]
	event := cs.event
	t.mu.Unlock()

	if event != nil {
		event(userArg, status, severity, time.Now(), value)
	}
	return true
}

// Push delivers an unsolicited monitor update for name (userArg nil,
// visible to every state set watching the channel), but only if name is
// currently subscribed via VarSubscribe, mirroring a real transport's
// monitor semantics.
func (t *Transport) Push(name string, value any) bool {
	t.mu.Lock()
	cs, ok := t.byName[name]
	t.mu.Unlock()
	if !ok || cs.event == nil || !cs.subscribed {
		return false
	}
	cs.event(nil, sequencer.StatusOK, sequencer.SeverityNONE, time.Now(), value)
	return true
}

// Subscribed reports whether name currently has an active VarSubscribe.
func (t *Transport) Subscribed(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cs, ok := t.byName[name]; ok {
		return cs.subscribed
	}
	return false
}

// PendingGets reports the number of outstanding get requests for name.
func (t *Transport) PendingGets(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cs, ok := t.byName[name]; ok {
		return len(cs.pendingGets)
	}
	return 0
}
