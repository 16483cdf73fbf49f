package sequencer

// bitset is a fixed-width bitmap over event-flag numbers [1..N], mediated
// entirely by the program-wide lock (callers must hold p.mu).
type bitset []uint64

func newBitset(numFlags int) bitset {
	return make(bitset, (numFlags+64)/64+1)
}

func (b bitset) test(flag EventFlag) bool {
	i := int(flag)
	return b[i/64]&(1<<uint(i%64)) != 0
}

func (b bitset) set(flag EventFlag) {
	i := int(flag)
	b[i/64] |= 1 << uint(i%64)
}

func (b bitset) clear(flag EventFlag) {
	i := int(flag)
	b[i/64] &^= 1 << uint(i%64)
}

func checkFlag(flag EventFlag) {
	if flag == 0 {
		panic(ErrBadFlag)
	}
}

// linkSynced records that channel ch is synced to flag, under p.mu.
func (p *Program) linkSynced(flag EventFlag, ch int) {
	set := p.syncedChans[flag]
	if set == nil {
		set = make(map[int]struct{})
		p.syncedChans[flag] = set
	}
	set[ch] = struct{}{}
}

// unlinkSynced removes the (flag, ch) association, under p.mu.
func (p *Program) unlinkSynced(flag EventFlag, ch int) {
	set := p.syncedChans[flag]
	if set == nil {
		return
	}
	delete(set, ch)
	if len(set) == 0 {
		delete(p.syncedChans, flag)
	}
}

// wakeSS posts every state set's wake semaphore whose currently active
// state's event mask contains flag, or every state set if flag == 0
// (the exit broadcast).
func (p *Program) wakeSS(flag EventFlag) {
	for _, ss := range p.stateSets {
		if flag == 0 || ss.wakesOn(flag) {
			ss.postWake()
		}
	}
}

func (p *Program) wakeAll() { p.wakeSS(0) }

// selectiveCopy copies shared -> shadow for every channel synced to flag
// whose dirty bit is set for ss, clearing those dirty bits. Must be called
// with p.mu held; it is the safe-mode "selective read" described for
// efTest/efTestAndClear.
func (p *Program) selectiveCopy(ss *StateSet, flag EventFlag) {
	if !p.safeMode {
		return
	}
	for ch := range p.syncedChans[flag] {
		c := p.channels[ch]
		if c.dirty[ss.index] {
			ss.shadow[ch] = c.sharedValue
			ss.shadowMeta[ch] = c.sharedMeta
			c.dirty[ss.index] = false
		}
	}
}

// EfSet implements set(flag): set the bit and wake affected state sets.
func (p *Program) EfSet(flag EventFlag) {
	checkFlag(flag)
	p.mu.Lock()
	p.flags.set(flag)
	p.mu.Unlock()
	p.wakeSS(flag)
}

// EfTest implements test(flag) for the given observing state set,
// performing the safe-mode selective copy before releasing the lock.
func (p *Program) EfTest(ss *StateSet, flag EventFlag) bool {
	checkFlag(flag)
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.flags.test(flag)
	p.selectiveCopy(ss, flag)
	return v
}

// EfClear implements clear(flag): read old value, clear the bit, wake
// affected state sets, return the old value.
func (p *Program) EfClear(flag EventFlag) bool {
	checkFlag(flag)
	p.mu.Lock()
	old := p.flags.test(flag)
	p.flags.clear(flag)
	p.mu.Unlock()
	p.wakeSS(flag)
	return old
}

// EfTestAndClear implements testAndClear(flag): the atomic composition of
// test + clear, preserving the selective read.
func (p *Program) EfTestAndClear(ss *StateSet, flag EventFlag) bool {
	checkFlag(flag)
	p.mu.Lock()
	v := p.flags.test(flag)
	p.selectiveCopy(ss, flag)
	p.flags.clear(flag)
	p.mu.Unlock()
	if v {
		p.wakeSS(flag)
	}
	return v
}
