package sequencer

import "time"

// SS is the façade type passed to generated entry/event/action/delay/exit
// routines: a thin alias for StateSet so generated code and engine code
// share one method set, matching the "thin C-style API façade" component.
type SS = StateSet

// OptionTest reports whether every bit in mask is set in the program's
// option bitmask.
func (ss *StateSet) OptionTest(mask ProgramOptionBits) bool {
	return ss.prog.def.Options&mask == mask
}

// OptionGet implements seq_optGet: single-character option query kept for
// parity with generated code that queries options by letter rather than
// bit (a=ASYNC, c=CONN, d=DEBUG, e=NEWEF, r=REENT, s=SAFE). Unrecognized
// letters report false.
func (ss *StateSet) OptionGet(opt byte) bool {
	var bit ProgramOptionBits
	switch opt {
	case 'a':
		bit = OptAsync
	case 'c':
		bit = OptConn
	case 'd':
		bit = OptDebug
	case 'e':
		bit = OptNewEF
	case 'r':
		bit = OptReent
	case 's':
		bit = OptSafe
	default:
		return false
	}
	return ss.OptionTest(bit)
}

// StateOptionTest reports whether mask bits are set on the current state's
// option bitmask.
func (ss *StateSet) StateOptionTest(mask StateOptionBits) bool {
	return ss.state().Options&mask == mask
}

// EfSet, EfTest, EfClear, EfTestAndClear are the event-flag façade ops.
func (ss *StateSet) EfSet(flag EventFlag) { ss.prog.EfSet(flag) }
func (ss *StateSet) EfTest(flag EventFlag) bool { return ss.prog.EfTest(ss, flag) }
func (ss *StateSet) EfClear(flag EventFlag) bool { return ss.prog.EfClear(flag) }
func (ss *StateSet) EfTestAndClear(flag EventFlag) bool { return ss.prog.EfTestAndClear(ss, flag) }

// Name of channel v.
func (ss *StateSet) ChannelName(v int) string { return ss.prog.channels[v].Name() }

// Index returns v's position in the channel table, the same id passed to
// every other per-channel façade op.
func (ss *StateSet) Index(v int) int { return ss.prog.channels[v].Index() }

// Count of channel v.
func (ss *StateSet) Count(v int) int { return ss.prog.channels[v].Count() }

// Assigned reports whether channel v has a DBCHAN.
func (ss *StateSet) Assigned(v int) bool { return ss.prog.channels[v].Assigned() }

// Connected reports whether channel v is transport-connected.
func (ss *StateSet) Connected(v int) bool { return ss.prog.channels[v].Connected() }

// Status, Severity, Timestamp, Message return ss's meta for channel v,
// from the shadow in safe mode and from the shared buffer otherwise.
func (ss *StateSet) Status(v int) Status {
	return ss.meta(v).Status
}
func (ss *StateSet) Severity(v int) Severity {
	return ss.meta(v).Severity
}
func (ss *StateSet) Message(v int) string {
	return ss.meta(v).Message
}
func (ss *StateSet) Timestamp(v int) time.Time {
	return ss.meta(v).Timestamp
}

// MacValueGet looks up a macro's resolved value, per seq_macValueGet.
func (ss *StateSet) MacValueGet(name string) (string, bool) {
	return ss.prog.MacValueGet(name)
}

func (ss *StateSet) meta(v int) Meta {
	if ss.prog.safeMode {
		return ss.shadowMeta[v]
	}
	_, m := ss.prog.SharedValue(v)
	return m
}

// Exit signals program termination, per seq_exit: sets the die flag and
// broadcasts the wake (flag 0).
func (ss *StateSet) Exit() {
	ss.prog.Shutdown()
}
