/*
   External interrupt dispatcher.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

package cpu

import mem "github.com/rcornwell/s370mp/emu/memory"

// CheckExternal inspects cpu's pending latches in fixed priority order
// and, if one is both pending and enabled, performs the interrupt: the
// old PSW is stored, the new PSW loaded, the interrupt code and
// originating CPU address recorded, and the latch cleared. Returns true
// if an interrupt was taken. Callers must hold IntLock; it is the
// dispatcher's job, not the caller's, to clear latches and recompute
// cpuint.
func (sys *System) CheckExternal(cpu *CPUState) bool {
	if !cpu.PSW.ExternalEnable {
		return false
	}

	switch {
	case sys.IntKeyLatch && cpu.CR[0]&CR0IntKey != 0:
		sys.IntKeyLatch = false
		sys.dispatch(cpu, ExtCodeIntKey, cpu.ID)

	case cpu.EmergencyPending && cpu.CR[0]&CR0Emergency != 0:
		src, any := lowestSet(cpu.EmergencySignal)
		if !any {
			cpu.EmergencyPending = false
			break
		}
		cpu.EmergencySignal[src] = false
		if !anySet(cpu.EmergencySignal) {
			cpu.EmergencyPending = false
		}
		sys.dispatch(cpu, ExtCodeEmergency, uint16(src))

	case cpu.ExtCallPending && cpu.CR[0]&CR0ExternalCall != 0:
		cpu.ExtCallPending = false
		sys.dispatch(cpu, ExtCodeExternalCall, cpu.ExtCallSource)

	case cpu.ClockCompPending && cpu.CR[0]&CR0ClockComp != 0:
		cpu.ClockCompPending = false
		sys.dispatch(cpu, ExtCodeClockComp, cpu.ID)

	case cpu.CPUTimerPending && cpu.CR[0]&CR0CPUTimer != 0:
		cpu.CPUTimerPending = false
		sys.dispatch(cpu, ExtCodeCPUTimer, cpu.ID)

	case cpu.IntervalTimerPending && cpu.CR[0]&CR0IntervalTimer != 0:
		cpu.IntervalTimerPending = false
		sys.dispatch(cpu, ExtCodeIntervalTimer, cpu.ID)

	case sys.ServiceSignal && cpu.CR[0]&CR0ServiceSignal != 0:
		sys.ServiceSignal = false
		sys.dispatch(cpu, ExtCodeServiceSignal, cpu.ID)
		_ = sys.Storage.PutFullWord(psaAddr(cpu, mem.ExtServiceParam), sys.ServiceParam)

	default:
		sys.recomputeCPUInt(cpu)
		return false
	}

	sys.recomputeCPUInt(cpu)
	return true
}

// dispatch performs the old/new PSW swap at the fixed PSA offsets and
// records the interrupt code and originating CPU address, per
// perform_external_interrupt in the reference implementation.
func (sys *System) dispatch(cpu *CPUState, code uint16, source uint16) {
	_ = sys.storeOldPSW(cpu, mem.OldPSWExternal)
	_ = sys.Storage.PutHalfWord(psaAddr(cpu, mem.ExtInterruptCode), code)
	_ = sys.Storage.PutHalfWord(psaAddr(cpu, mem.ExtCPUAddress), source)
	sys.loadPSWFrom(cpu, mem.NewPSWExternal)
}

// lowestSet returns the lowest-indexed true entry in bitmap, matching
// the architectural rule that emergency signal is reported in
// ascending order of originating CPU address when more than one is
// pending.
func lowestSet(bitmap []bool) (int, bool) {
	for i, v := range bitmap {
		if v {
			return i, true
		}
	}
	return 0, false
}

func anySet(bitmap []bool) bool {
	for _, v := range bitmap {
		if v {
			return true
		}
	}
	return false
}
