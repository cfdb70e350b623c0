/*
   S370MP CPU test cases: external interrupt dispatch.

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

import "testing"

func enabledCPU(sys *System) *CPUState {
	cpu := sys.CPUs[0]
	cpu.PSW.ExternalEnable = true
	cpu.CR[0] = CR0IntKey | CR0Emergency | CR0ExternalCall |
		CR0ClockComp | CR0CPUTimer | CR0IntervalTimer | CR0ServiceSignal
	return cpu
}

func TestCheckExternalDisabledPSWTakesNothing(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	sys.IntKeyLatch = true

	if sys.CheckExternal(cpu) {
		t.Errorf("interrupt taken with external mask disabled")
	}
	if !sys.IntKeyLatch {
		t.Errorf("latch cleared despite no interrupt being taken")
	}
}

func TestCheckExternalPriorityOrder(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := enabledCPU(sys)

	// Raise four latches at once; the interrupt key must win first.
	sys.IntKeyLatch = true
	cpu.EmergencyPending = true
	cpu.EmergencySignal[0] = true
	cpu.ExtCallPending = true
	cpu.ClockCompPending = true

	if !sys.CheckExternal(cpu) {
		t.Fatalf("expected an interrupt to be taken")
	}
	if sys.IntKeyLatch {
		t.Errorf("interrupt key latch not cleared")
	}
	if !cpu.EmergencyPending || !cpu.ExtCallPending || !cpu.ClockCompPending {
		t.Errorf("lower-priority latches were disturbed by servicing a higher one")
	}

	// Second call: interrupt key is gone, emergency signal is next.
	if !sys.CheckExternal(cpu) {
		t.Fatalf("expected a second interrupt to be taken")
	}
	if cpu.EmergencyPending {
		t.Errorf("emergency signal latch not cleared")
	}
	if !cpu.ExtCallPending || !cpu.ClockCompPending {
		t.Errorf("lower-priority latches disturbed servicing emergency signal")
	}
}

func TestCheckExternalMaskedClassIsSkipped(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.PSW.ExternalEnable = true
	cpu.CR[0] = 0 // every class masked off

	cpu.ExtCallPending = true
	sys.recomputeCPUInt(cpu)

	if sys.CheckExternal(cpu) {
		t.Errorf("interrupt taken despite CR0 masking the class")
	}
	if !cpu.ExtCallPending {
		t.Errorf("masked latch was cleared")
	}
}

func TestCheckExternalEmergencySignalLowestSourceFirst(t *testing.T) {
	sys := newTestSystem(t, 4096, 3)
	cpu := enabledCPU(sys)

	cpu.EmergencyPending = true
	cpu.EmergencySignal[2] = true
	cpu.EmergencySignal[1] = true

	sys.CheckExternal(cpu)

	if cpu.EmergencySignal[1] {
		t.Errorf("lowest-indexed source (1) not serviced first")
	}
	if !cpu.EmergencySignal[2] {
		t.Errorf("higher-indexed source disturbed before its turn")
	}
	if !cpu.EmergencyPending {
		t.Errorf("emergency pending cleared while a source is still outstanding")
	}
}

func TestRecomputeCPUIntAggregatesAllLatches(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]

	sys.IntLock.Lock()
	sys.recomputeCPUInt(cpu)
	if cpu.CPUInt {
		t.Fatalf("cpuint set with no latches pending")
	}
	cpu.CPUTimerPending = true
	sys.recomputeCPUInt(cpu)
	sys.IntLock.Unlock()

	if !cpu.CPUInt {
		t.Errorf("cpuint not set after raising CPUTimerPending")
	}
}
