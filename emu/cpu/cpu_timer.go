/*
   TOD clock, CPU timer, clock comparator and interval timer service.

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

import (
	"time"

	mem "github.com/rcornwell/s370mp/emu/memory"
)

// todTick is one microsecond expressed in TOD clock units of 2^-12
// microseconds each.
const todTick = uint64(1) << 12

// StartTimer launches the background goroutine that advances the TOD
// clock, per-CPU CPU timers and interval timers. It is not idempotent:
// calling it twice starts two goroutines; callers call it once per
// System.
func (sys *System) StartTimer() {
	sys.timerWG.Add(1)
	go sys.timerRun()
}

// StopTimer shuts the timer goroutine down and waits for it to exit.
func (sys *System) StopTimer() {
	close(sys.timerDone)
	sys.timerWG.Wait()
}

// timerRun ticks at ClockResolution, advancing TOD by wall-clock elapsed
// time scaled by DragFactor, then servicing each CPU's timers.
func (sys *System) timerRun() {
	defer sys.timerWG.Done()
	ticker := time.NewTicker(sys.ClockResolution)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(last)
			last = now
			sys.advanceTOD(elapsed)
			sys.serviceCPUTimers(elapsed)
		case <-sys.timerDone:
			return
		}
	}
}

// advanceTOD advances the architectural TOD clock by elapsed wall time,
// divided by DragFactor, under todlock.
func (sys *System) advanceTOD(elapsed time.Duration) {
	sys.TODLock.Lock()
	defer sys.TODLock.Unlock()
	usec := uint64(elapsed.Microseconds()) / uint64(sys.DragFactor)
	sys.TOD += usec << 12
}

// ReadTOD returns a coherent snapshot of the TOD clock.
func (sys *System) ReadTOD() uint64 {
	sys.TODLock.Lock()
	defer sys.TODLock.Unlock()
	return sys.TOD
}

// SetTOD installs a new TOD clock value, as for the Set-Clock instruction.
func (sys *System) SetTOD(v uint64) {
	sys.TODLock.Lock()
	defer sys.TODLock.Unlock()
	sys.TOD = v
	sys.todSet = true
}

// serviceCPUTimers decrements each CPU's CPU timer and interval timer,
// raises the matching latches, and recomputes MIPS once per second.
// Latch changes are made under intlock, and the condition variable is
// broadcast once at the end if any CPU became interruptible.
func (sys *System) serviceCPUTimers(elapsed time.Duration) {
	usec := elapsed.Microseconds()
	wake := false

	sys.IntLock.Lock()
	for _, cpu := range sys.CPUs {
		if cpu.State != Started {
			continue
		}
		before := cpu.CPUTimer
		cpu.CPUTimer -= usec << 12
		if before >= 0 && cpu.CPUTimer < 0 {
			wake = sys.raiseLocked(cpu, "cputimer") || wake
		}
		if cpu.ClockComparator != 0 && sys.TOD >= cpu.ClockComparator {
			wake = sys.raiseLocked(cpu, "clockcomp") || wake
		}
		intervalPending := cpu.IntervalTimerPending
		sys.decrementIntervalTimer(cpu, usec)
		if !intervalPending && cpu.IntervalTimerPending && cpu.PSW.Wait {
			wake = true
		}

		cpu.msecCtr += int(elapsed.Milliseconds())
		if cpu.msecCtr >= 1000 {
			delta := cpu.InstCount - cpu.prevInstCount
			cpu.MIPS = float64(delta) / 1e6
			cpu.prevInstCount = cpu.InstCount
			cpu.msecCtr = 0
		}
	}
	sys.IntLock.Unlock()

	if wake {
		sys.IntCond.Broadcast()
	}
}

// decrementIntervalTimer implements the PSA+80 interval timer: a 32-bit
// field at real address 0x50 decremented by 32 (one in bit position 26)
// for every 1/300 second; going negative raises the interval-timer external interrupt exactly
// once per crossing. Accessed through the CPU's own prefix since the
// interval timer is addressed as a real (unprefixed) location.
func (sys *System) decrementIntervalTimer(cpu *CPUState, usec int64) {
	addr := psaAddr(cpu, mem.IntervalTimer)
	v, err := sys.Storage.GetFullWord(addr)
	if err != nil {
		return
	}
	// 300Hz, 32 units decremented per 1/300s tick (per the architecture's
	// traditional resolution): convert elapsed microseconds to that unit.
	units := int32((usec * 32 * 300) / 1000000)
	if units == 0 {
		return
	}
	before := int32(v)
	after := before - units
	_ = sys.Storage.PutFullWord(addr, uint32(after))
	if before >= 0 && after < 0 {
		sys.raiseLocked(cpu, "intervaltimer")
	}
}

// raiseLocked sets the named latch on cpu and recomputes its cpuint
// aggregate. Callers must hold IntLock. Returns true if the CPU should
// be woken (it is parked in a wait PSW and now has work to do).
func (sys *System) raiseLocked(cpu *CPUState, class string) bool {
	switch class {
	case "cputimer":
		cpu.CPUTimerPending = true
	case "clockcomp":
		cpu.ClockCompPending = true
	case "intervaltimer":
		cpu.IntervalTimerPending = true
	}
	sys.recomputeCPUInt(cpu)
	return cpu.CPUInt && cpu.PSW.Wait
}
