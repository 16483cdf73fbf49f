package sequencer

import (
	"context"
	"time"

	"github.com/seq-go/sequencer/internal/slotreq"
)

// anonymousPutCopyUsesGetType records the resolution of the original
// source's getType-vs-putType ambiguity in the anonymous-put copy hook
// (seq_if.c labels it a possible bug). Go values carry their own dynamic
// type, so there is no literal type-token argument to choose here; this
// constant exists purely to preserve the decision point in one visible
// place rather than silently "fixing" it.
const anonymousPutCopyUsesGetType = true

// Get implements pvGet: dispatch through the anonymous/assigned,
// mode-resolution, and per-variable serialization rules of the PV request
// broker.
func (ss *StateSet) Get(v int, mode CompletionMode, tmo time.Duration) error {
	p := ss.prog
	ch := p.channels[v]

	if !ch.Assigned() {
		if p.safeMode {
			ss.syncShadowFromShared(v)
			return nil
		}
		return ErrNotAssigned
	}

	mode = mode.resolve(p.def.Options)
	if mode == Sync && tmo <= 0 {
		return ErrBadTimeout
	}

	slot := ss.getReq[v]
	acquireStart := p.now()

	if mode == Async {
		if !slot.TryAcquire() {
			return ErrPending
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), tmo)
		ok := slot.Acquire(ctx)
		cancel()
		if !ok {
			return WrapError("get: pre-issue wait", ErrBadTimeout)
		}
	}

	if !ch.Connected() {
		slot.Release()
		meta := Meta{Status: StatusDISCONN, Severity: SeverityINVALID, Timestamp: p.now()}
		p.setChannelMeta(v, meta, true, ss.index)
		return &PVError{Channel: ch.def.Name, Status: StatusDISCONN, Severity: SeverityINVALID, Cause: ErrDisconnected}
	}

	req := &pvRequest{ss: ss, channel: v}
	slot.Store(req)

	if err := p.transport.VarGetCallback(ch.db.id, req); err != nil {
		slot.Take()
		slot.Release()
		return WrapError("get: transport", err)
	}

	if mode != Sync {
		return nil
	}

	remaining := tmo - p.now().Sub(acquireStart)
	if remaining < 0 {
		remaining = 0
	}
	if err := p.transport.SysFlush(); err != nil {
		p.logger.Category("pv").Warn("flush failed", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	completed := slot.Acquire(ctx)
	cancel()
	slot.Take()
	slot.Release()

	if p.safeMode {
		ss.syncShadowFromShared(v)
	}

	if !completed {
		meta := Meta{Status: StatusTIMEOUT, Severity: SeverityMAJOR, Timestamp: p.now()}
		p.setChannelMeta(v, meta, true, ss.index)
		return &PVError{Channel: ch.def.Name, Status: StatusTIMEOUT, Severity: SeverityMAJOR, Cause: ErrTimeout}
	}
	return nil
}

// completeSlot implements the shared body of getComplete/putComplete for
// one variable: try-acquire, and if a request was recorded, clear and
// release it, then (in safe mode, for gets) sync the shadow.
func (ss *StateSet) completeSlot(slots []*slotreq.Slot[*pvRequest], v int, isGet bool) bool {
	ch := ss.prog.channels[v]
	if !ch.Assigned() {
		return true // anonymous channels are trivially complete
	}
	slot := slots[v]
	if !slot.TryAcquire() {
		return false
	}
	_, had := slot.Take()
	slot.Release()
	if !had {
		return false
	}
	if isGet && ss.prog.safeMode {
		ss.syncShadowFromShared(v)
	}
	return true
}

// GetComplete implements getComplete(ss, base, length, any, out[]). When
// anyMode is true, it reports true as soon as one of the length variables
// has completed; otherwise it reports true only once all have. Per-element
// results are written into out when non-nil. length == 0 returns true.
func (ss *StateSet) GetComplete(base, length int, anyMode bool, out []bool) bool {
	if length == 0 {
		return true
	}
	allDone, anyDone := true, false
	for i := 0; i < length; i++ {
		done := ss.completeSlot(ss.getReq, base+i, true)
		if out != nil && i < len(out) {
			out[i] = done
		}
		if done {
			anyDone = true
		} else {
			allDone = false
		}
	}
	if anyMode {
		return anyDone
	}
	return allDone
}

// PutComplete is GetComplete's put-side twin.
func (ss *StateSet) PutComplete(base, length int, anyMode bool, out []bool) bool {
	if length == 0 {
		return true
	}
	allDone, anyDone := true, false
	for i := 0; i < length; i++ {
		done := ss.completeSlot(ss.putReq, base+i, false)
		if out != nil && i < len(out) {
			out[i] = done
		}
		if done {
			anyDone = true
		} else {
			allDone = false
		}
	}
	if anyMode {
		return anyDone
	}
	return allDone
}

// GetCancel implements getCancel(ss, base, length): clear the recorded
// request and release the semaphore for each variable. A callback that
// later fires for a cancelled request finds an empty slot and drops.
func (ss *StateSet) GetCancel(base, length int) {
	for i := 0; i < length; i++ {
		ss.getReq[base+i].Take()
		ss.getReq[base+i].Release()
	}
}

// PutCancel is GetCancel's put-side twin.
func (ss *StateSet) PutCancel(base, length int) {
	for i := 0; i < length; i++ {
		ss.putReq[base+i].Take()
		ss.putReq[base+i].Release()
	}
}

// Put implements pvPut. DEFAULT is a non-blocking fire-and-forget put with
// no completion tracking, not a resolve-to-ASYNC-or-SYNC like get; SYNC
// and ASYNC otherwise mirror Get with putSem/putReq.
func (ss *StateSet) Put(v int, mode CompletionMode, tmo time.Duration, value any) error {
	p := ss.prog
	ch := p.channels[v]

	if !ch.Assigned() {
		if p.safeMode {
			return ss.anonymousPut(v, value)
		}
		return ErrNotAssigned
	}

	if mode == Default {
		if !ch.Connected() {
			return &PVError{Channel: ch.def.Name, Status: StatusDISCONN, Severity: SeverityINVALID, Cause: ErrDisconnected}
		}
		if err := p.transport.VarPutNoBlock(ch.db.id, value); err != nil {
			return WrapError("put: transport", err)
		}
		return nil
	}

	if mode == Sync && tmo <= 0 {
		return ErrBadTimeout
	}

	slot := ss.putReq[v]
	acquireStart := p.now()

	if mode == Async {
		if !slot.TryAcquire() {
			return ErrPending
		}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), tmo)
		ok := slot.Acquire(ctx)
		cancel()
		if !ok {
			return WrapError("put: pre-issue wait", ErrBadTimeout)
		}
	}

	if !ch.Connected() {
		slot.Release()
		meta := Meta{Status: StatusDISCONN, Severity: SeverityINVALID, Timestamp: p.now()}
		p.setChannelMeta(v, meta, true, ss.index)
		return &PVError{Channel: ch.def.Name, Status: StatusDISCONN, Severity: SeverityINVALID, Cause: ErrDisconnected}
	}

	req := &pvRequest{ss: ss, channel: v, isPut: true}
	slot.Store(req)

	if err := p.transport.VarPutCallback(ch.db.id, value, req); err != nil {
		slot.Take()
		slot.Release()
		return WrapError("put: transport", err)
	}

	if mode != Sync {
		return nil
	}

	remaining := tmo - p.now().Sub(acquireStart)
	if remaining < 0 {
		remaining = 0
	}
	if err := p.transport.SysFlush(); err != nil {
		p.logger.Category("pv").Warn("flush failed", map[string]any{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	completed := slot.Acquire(ctx)
	cancel()
	slot.Take()
	slot.Release()

	if !completed {
		meta := Meta{Status: StatusTIMEOUT, Severity: SeverityMAJOR, Timestamp: p.now()}
		p.setChannelMeta(v, meta, true, ss.index)
		return &PVError{Channel: ch.def.Name, Status: StatusTIMEOUT, Severity: SeverityMAJOR, Cause: ErrTimeout}
	}
	return nil
}

// anonymousPut implements the safe-mode anonymous-put path: enqueue on a
// queued channel (overwrite-on-full is a minor error, not fatal), or write
// into shared with dirty set iff monitored; set the synced flag and wake
// listeners either way.
func (ss *StateSet) anonymousPut(v int, value any) error {
	p := ss.prog
	ch := p.channels[v]
	now := p.now()

	p.mu.Lock()
	flag := ch.syncedTo
	p.mu.Unlock()

	if ch.Queued() {
		elem := QueueElement{Value: value, Meta: Meta{Status: StatusOK, Timestamp: now}}
		ch.queueMu.Lock()
		overwrote := ch.queue.Put(elem)
		ch.queueMu.Unlock()
		if overwrote {
			p.logger.Category("queue").Warn("queue full, oldest element dropped", map[string]any{"channel": ch.def.Name})
		}
		if flag != 0 {
			p.EfSet(flag)
		}
		if ch.def.EventFlag != 0 {
			p.wakeSS(ch.def.EventFlag)
		}
		return nil
	}

	p.mu.Lock()
	ch.sharedValue = value
	ch.sharedMeta = Meta{Status: StatusOK, Timestamp: now}
	if ch.monitored {
		for i := range ch.dirty {
			ch.dirty[i] = true
		}
	}
	p.mu.Unlock()

	if flag != 0 {
		p.EfSet(flag)
	}
	if ch.def.EventFlag != 0 {
		p.wakeSS(ch.def.EventFlag)
	}
	return nil
}

// Assign implements pvAssign: destroy any prior transport handle, then
// create a new one for name (unless name is empty, leaving the channel
// unassigned).
func (ss *StateSet) Assign(v int, name string) error {
	p := ss.prog
	ch := p.channels[v]

	p.mu.Lock()
	var oldID VarID
	hadOld := ch.db != nil
	if hadOld {
		oldID = ch.db.id
		if ch.db.connected {
			p.connectCount--
		}
		p.assignCount--
		ch.db = nil
	}
	p.mu.Unlock()

	if hadOld {
		if err := p.transport.VarDestroy(oldID); err != nil {
			p.logger.Category("pv").Warn("destroy failed", map[string]any{"channel": ch.def.Name, "error": err.Error()})
		}
		p.postConnWake()
	}

	if name == "" {
		return nil
	}

	id, err := p.transport.VarCreate(name, ch.def.Count, p.makeConnHandler(v), p.makeEventHandler(v))
	if err != nil {
		return WrapError("assign", err)
	}

	p.mu.Lock()
	ch.db = &dbchan{id: id, name: name, count: ch.def.Count}
	p.assignCount++
	p.mu.Unlock()
	p.postConnWake()
	return nil
}

// Monitor and StopMonitor toggle ch.monitored and, if the channel is
// currently assigned, subscribe/unsubscribe on the transport. Toggling an
// unassigned channel only records the flag; Assign does not subscribe the
// new transport handle, whatever the flag says.
func (ss *StateSet) Monitor(v int) error {
	return ss.prog.setMonitored(v, true)
}

func (ss *StateSet) StopMonitor(v int) error {
	return ss.prog.setMonitored(v, false)
}

func (p *Program) setMonitored(v int, on bool) error {
	p.mu.Lock()
	ch := p.channels[v]
	ch.monitored = on
	var id VarID
	assigned := ch.db != nil
	if assigned {
		id = ch.db.id
	}
	p.mu.Unlock()

	if !assigned {
		return nil
	}
	if on {
		return p.transport.VarSubscribe(id)
	}
	return p.transport.VarUnsubscribe(id)
}

// Sync implements sync(ss, v, length, newFlag): atomically rebind length
// consecutive channels' syncedTo, relinking the per-flag collections.
// Flag 0 means unsync.
func (ss *StateSet) Sync(base, length int, newFlag EventFlag) {
	p := ss.prog
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := 0; i < length; i++ {
		ch := p.channels[base+i]
		if ch.syncedTo == newFlag {
			continue
		}
		if ch.syncedTo != 0 {
			p.unlinkSynced(ch.syncedTo, ch.index)
		}
		ch.syncedTo = newFlag
		if newFlag != 0 {
			p.linkSynced(newFlag, ch.index)
		}
	}
}

// GetQ implements pvGetQ: non-blockingly pop one record. If the channel is
// synced to a flag and the queue is now empty, clear the flag.
func (ss *StateSet) GetQ(v int) (value any, ok bool, err error) {
	ch := ss.prog.channels[v]
	if !ch.Queued() {
		return nil, false, ErrQueueNotConfigured
	}
	ch.queueMu.Lock()
	elem, popped := ch.queue.Get()
	empty := ch.queue.Empty()
	ch.queueMu.Unlock()
	if !popped {
		return nil, false, nil
	}
	if empty {
		ss.prog.mu.Lock()
		flag := ch.syncedTo
		ss.prog.mu.Unlock()
		if flag != 0 {
			ss.prog.EfClear(flag)
		}
	}
	return elem.Value, true, nil
}

// FlushQ implements pvFlushQ: drain the queue and clear the associated
// flag, returning the number of records discarded.
func (ss *StateSet) FlushQ(v int) (int, error) {
	ch := ss.prog.channels[v]
	if !ch.Queued() {
		return 0, ErrQueueNotConfigured
	}
	ch.queueMu.Lock()
	n := ch.queue.Flush()
	ch.queueMu.Unlock()
	ss.prog.mu.Lock()
	flag := ch.syncedTo
	ss.prog.mu.Unlock()
	if flag != 0 {
		ss.prog.EfClear(flag)
	}
	return n, nil
}

// makeConnHandler returns the ConnHandler registered with the transport at
// Assign time for channel ch.
func (p *Program) makeConnHandler(ch int) ConnHandler {
	return func(connected bool) {
		p.mu.Lock()
		c := p.channels[ch]
		was := c.db != nil && c.db.connected
		if c.db != nil {
			c.db.connected = connected
		}
		switch {
		case connected && !was:
			p.connectCount++
		case !connected && was:
			p.connectCount--
		}
		p.mu.Unlock()
		p.postConnWake()
		if f := p.channels[ch].def.EventFlag; f != 0 {
			p.wakeSS(f)
		}
	}
}

// makeEventHandler returns the EventHandler registered with the transport
// at Assign time for channel ch. userArg nil means an unsolicited delivery
// (a monitor push), visible to every state set; a *pvRequest means an
// explicit get/put completion, visible only to the originating state set,
// per the "per mode" dirty-bit rule.
func (p *Program) makeEventHandler(ch int) EventHandler {
	return func(userArg any, status Status, severity Severity, ts time.Time, value any) {
		if f := p.channels[ch].def.EventFlag; f != 0 {
			defer p.wakeSS(f)
		}
		meta := Meta{Status: status, Severity: severity, Timestamp: ts}
		req, _ := userArg.(*pvRequest)

		if req == nil {
			if status == StatusOK {
				p.writeShared(ch, value, meta, false, 0)
			} else {
				p.setChannelMeta(ch, meta, false, 0)
			}
			return
		}

		if status == StatusOK {
			p.writeShared(ch, value, meta, true, req.ss.index)
		} else {
			p.setChannelMeta(ch, meta, true, req.ss.index)
		}

		if req.isPut {
			req.ss.putReq[ch].Release()
		} else {
			req.ss.getReq[ch].Release()
		}
	}
}

// setChannelMeta updates only a channel's meta (not its value), for
// disconnect/timeout bookkeeping that must not clobber the last good
// value.
func (p *Program) setChannelMeta(v int, meta Meta, originOnly bool, origin int) {
	p.mu.Lock()
	ch := p.channels[v]
	ch.sharedMeta = meta
	if originOnly {
		ch.dirty[origin] = true
	} else {
		for i := range ch.dirty {
			ch.dirty[i] = true
		}
	}
	p.mu.Unlock()
}
