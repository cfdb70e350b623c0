/*
   S370MP CPU test cases: TOD clock, CPU timer and interval timer.

   Copyright 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.

*/

package cpu

import (
	"testing"
	"time"
)

func TestAdvanceTODIsMonotonicAndRespectsDrag(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	sys.DragFactor = 2

	start := sys.ReadTOD()
	sys.advanceTOD(2 * time.Second)
	after := sys.ReadTOD()

	if after <= start {
		t.Fatalf("TOD did not advance: start=%d after=%d", start, after)
	}
	// 2 seconds / drag 2 = 1 second of TOD ticks = 1e6 * 2^12.
	want := start + (uint64(1000000) << 12)
	if after != want {
		t.Errorf("TOD = %d, want %d", after, want)
	}
}

func TestSetTODOverridesClock(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	sys.SetTOD(0x1234)
	if got := sys.ReadTOD(); got != 0x1234 {
		t.Errorf("ReadTOD = %08x, want 0x1234", got)
	}
}

func TestServiceCPUTimersRaisesCPUTimerExactlyOnceAtCrossing(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.State = Started
	cpu.CPUTimer = 4096 // small positive value, in TOD units (2^-12 usec)

	sys.serviceCPUTimers(1 * time.Microsecond) // not enough to cross zero
	if cpu.CPUTimerPending {
		t.Fatalf("timer latch raised before crossing zero")
	}

	sys.serviceCPUTimers(1 * time.Second) // far more than enough
	if !cpu.CPUTimerPending {
		t.Errorf("timer latch not raised after crossing zero")
	}
	if !cpu.CPUInt {
		t.Errorf("cpuint not aggregated after cputimer latch raised")
	}
}

func TestServiceCPUTimersSkipsStoppedCPUs(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.State = Stopped
	cpu.CPUTimer = 1

	sys.serviceCPUTimers(1 * time.Second)
	if cpu.CPUTimerPending {
		t.Errorf("stopped CPU's timer should not be serviced")
	}
}

func TestDecrementIntervalTimerRaisesOnlyOnNegativeCrossing(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.State = Started

	addr := psaAddr(cpu, 0x50)
	_ = sys.Storage.PutFullWord(addr, 32) // one tick's worth of units left

	sys.IntLock.Lock()
	sys.decrementIntervalTimer(cpu, 1000000/300/2) // half a tick: no crossing
	sys.IntLock.Unlock()
	if cpu.IntervalTimerPending {
		t.Fatalf("interval timer fired before crossing zero")
	}

	sys.IntLock.Lock()
	sys.decrementIntervalTimer(cpu, 1000000) // a full second: certainly crosses
	sys.IntLock.Unlock()
	if !cpu.IntervalTimerPending {
		t.Errorf("interval timer did not fire after crossing zero")
	}
}

func TestStartStopTimerLifecycle(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	sys.ClockResolution = 1 * time.Millisecond
	before := sys.ReadTOD()
	sys.StartTimer()
	time.Sleep(20 * time.Millisecond)
	sys.StopTimer()

	if sys.ReadTOD() <= before {
		t.Errorf("TOD did not advance while timer ran")
	}
}
