/*
   Signal Processor (SIGP) inter-CPU facility.

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

// Sigp performs one SIGP order from cpu (the issuing processor) against
// the target CPU address cpad, with parameter parm. It returns the
// condition code (0-3) and, for condition code 1, a status word to be
// loaded into R1.
//
// Locking mirrors the reference design: sigplock serializes use of the
// whole facility (single holder at a time, spec's "single-holder"
// property), and the bulk of the order's state change happens under
// intlock so it can safely touch latches shared with the dispatcher and
// the timer service.
func (sys *System) Sigp(cpu *CPUState, cpad uint16, order uint8, parm uint32) (cc uint8, status uint32) {
	target := sys.CPU(cpad)
	if target == nil {
		return 3, 0
	}

	sys.SigpLock.Lock()
	if sys.SigpBusy {
		sys.SigpLock.Unlock()
		return 2, 0
	}
	sys.SigpBusy = true
	sys.SigpLock.Unlock()

	defer func() {
		sys.SigpLock.Lock()
		sys.SigpBusy = false
		sys.SigpLock.Unlock()
	}()

	if order != SigpCPUReset && order != SigpInitialCPUReset {
		sys.IntLock.Lock()
		busy := target.State == Stopping || target.RestartPending
		sys.IntLock.Unlock()
		if busy {
			return 2, 0
		}
	}

	sys.IntLock.Lock()
	defer sys.IntLock.Unlock()

	switch order {
	case SigpSense:
		if target.ExtCallPending {
			status |= SigpStatusExternalCallPend
		}
		if target.State == Stopped {
			status |= SigpStatusStopped
		}

	case SigpExternalCall:
		if target.ExtCallPending {
			status |= SigpStatusExternalCallPend
			break
		}
		target.ExtCallPending = true
		target.ExtCallSource = cpu.ID
		sys.recomputeCPUInt(target)

	case SigpEmergencySignal:
		target.EmergencySignal[cpu.ID] = true
		target.EmergencyPending = true
		sys.recomputeCPUInt(target)

	case SigpStart:
		target.State = Started

	case SigpStop:
		target.State = Stopping

	case SigpRestart:
		target.RestartPending = true
		sys.recomputeCPUInt(target)

	case SigpStopAndStore:
		target.StoreStatusRequired = true
		target.State = Stopping
		sys.recomputeCPUInt(target)

	case SigpInitialCPUReset:
		sys.initialResetCPU(target)

	case SigpCPUReset:
		sys.resetCPU(target)

	case SigpSetPrefix:
		if target.State != Stopped {
			status |= SigpStatusIncorrectState
			break
		}
		abs := parm & 0x7ffff000
		if !sys.Storage.CheckAddr(abs) {
			status |= SigpStatusInvalidParameter
			break
		}
		target.Prefix = abs
		sys.BroadcastALB++
		sys.BroadcastTLB++

	case SigpStoreStatus:
		if target.State != Stopped {
			status |= SigpStatusIncorrectState
			break
		}
		abs := parm & 0x7ffffe00
		if !sys.Storage.CheckAddr(abs) {
			status |= SigpStatusInvalidParameter
			break
		}
		_ = sys.StoreStatus(target, abs)

	default:
		status = SigpStatusInvalidOrder
	}

	sys.IntCond.Broadcast()

	if status != 0 {
		return 1, status
	}
	return 0, 0
}

// resetCPU implements the CPU reset order: clears pending interruption
// conditions but preserves the register context, per the architecture's
// distinction between reset and initial reset.
func (sys *System) resetCPU(cpu *CPUState) {
	cpu.ExtCallPending = false
	cpu.EmergencyPending = false
	for i := range cpu.EmergencySignal {
		cpu.EmergencySignal[i] = false
	}
	cpu.ClockCompPending = false
	cpu.CPUTimerPending = false
	cpu.IntervalTimerPending = false
	cpu.RestartPending = false
	cpu.StoreStatusRequired = false
	cpu.PSW = PSW{Wait: true}
	sys.recomputeCPUInt(cpu)
}

// initialResetCPU implements initial CPU reset: everything CPU reset
// clears, plus the full register file and prefix, and the CPU is left
// stopped.
func (sys *System) initialResetCPU(cpu *CPUState) {
	sys.resetCPU(cpu)
	cpu.GPR = [16]uint32{}
	cpu.AR = [16]uint32{}
	cpu.FPR = [8]uint64{}
	cpu.CR = [16]uint32{}
	cpu.Prefix = 0
	cpu.CPUTimer = 0
	cpu.ClockComparator = 0
	cpu.State = Stopped
}
