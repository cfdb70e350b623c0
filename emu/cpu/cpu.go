/*
   System: per-CPU register context and the process-wide CPU array.

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
	"log/slog"
	"sync"
	"time"

	mem "github.com/rcornwell/s370mp/emu/memory"
)

// CPUState is a plain aggregate: the architectural register context of
// one processor. Beyond field access, its only contract is that CPUInt
// is kept as the OR of the pending latches (System.recomputeCPUInt),
// which must run under System.IntLock any time a latch changes.
type CPUState struct {
	ID uint16

	GPR [16]uint32
	AR  [16]uint32
	FPR [8]uint64 // 8 pairs, each addressed as two 32-bit halves.
	CR  [16]uint32
	PSW PSW

	Prefix uint32

	CPUTimer        int64  // Signed, decremented by elapsed time.
	ClockComparator uint64

	InstCount     uint64
	prevInstCount uint64
	MIPS          float64
	msecCtr       int // Milliseconds since the last MIPS recompute.

	State State

	// Pending latches. Guarded by the owning System's IntLock.
	ExtCallPending       bool
	ExtCallSource        uint16
	EmergencySignal      []bool // indexed by originating CPU address.
	EmergencyPending     bool
	ClockCompPending     bool
	CPUTimerPending      bool
	IntervalTimerPending bool
	RestartPending       bool
	StoreStatusRequired  bool
	CPUInt               bool // Aggregate OR of the above.
}

// System is the process-wide singleton ("sysblk" in the reference
// implementation): immutable by reference, with interior mutability
// guarded by its three documented locks.
type System struct {
	Storage *mem.Storage
	CPUs    []*CPUState

	// todlock-guarded fields.
	TODLock    sync.Mutex
	TOD        uint64
	todSet     bool
	DragFactor uint32
	dragOrigin time.Time

	// sigplock-guarded field.
	SigpLock sync.Mutex
	SigpBusy bool

	// intlock-guarded fields, shared across all CPUs.
	IntLock       sync.Mutex
	IntCond       *sync.Cond
	IntKeyLatch   bool
	ServiceSignal bool
	ServiceParam  uint32

	// Observability counters for SIGP-driven buffer invalidation.
	BroadcastALB uint64
	BroadcastTLB uint64

	ClockResolution time.Duration
	Logger          *slog.Logger

	timerEnable chan bool
	timerDone   chan struct{}
	timerWG     sync.WaitGroup
}

// New builds a System with numCPU processors and a flat main storage of
// storageSize bytes. dragFactor of 0 is treated as 1 (no drag).
func New(numCPU int, storageSize uint32, dragFactor uint32, logger *slog.Logger) *System {
	if dragFactor == 0 {
		dragFactor = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	sys := &System{
		Storage:         mem.New(storageSize),
		CPUs:            make([]*CPUState, numCPU),
		DragFactor:      dragFactor,
		ClockResolution: 10 * time.Millisecond,
		Logger:          logger,
		timerEnable:     make(chan bool, 1),
		timerDone:       make(chan struct{}),
	}
	sys.IntCond = sync.NewCond(&sys.IntLock)
	for i := range sys.CPUs {
		sys.CPUs[i] = &CPUState{
			ID:              uint16(i),
			State:           Stopped,
			EmergencySignal: make([]bool, numCPU),
		}
	}
	sys.setTODToWallClock()
	return sys
}

// setTODToWallClock seeds the architectural TOD clock from the host
// wall clock, per the teacher's cpu_timer.go SetTod.
func (sys *System) setTODToWallClock() {
	sys.TODLock.Lock()
	defer sys.TODLock.Unlock()
	if sys.todSet {
		return
	}
	sec := time.Now().Unix()
	// IBM measures time from 1900, Unix starts at 1970: add the
	// number of years from 1900 to 1970 plus 17 leap days.
	sec += ((70 * 365) + 17) * 86400
	usec := uint64(sec) * 1000000
	sys.TOD = usec << 12
	sys.todSet = true
	sys.dragOrigin = time.Now()
}

// recomputeCPUInt recomputes the cpuint aggregate for one CPU. Callers
// must hold IntLock.
func (sys *System) recomputeCPUInt(cpu *CPUState) {
	cpu.CPUInt = cpu.ExtCallPending ||
		cpu.EmergencyPending ||
		cpu.ClockCompPending ||
		cpu.CPUTimerPending ||
		cpu.IntervalTimerPending ||
		cpu.StoreStatusRequired ||
		cpu.RestartPending
}

// CPU looks up a CPU context by address, or nil if out of range.
func (sys *System) CPU(addr uint16) *CPUState {
	if int(addr) >= len(sys.CPUs) {
		return nil
	}
	return sys.CPUs[addr]
}

// psaAddr returns the absolute address of PSA field offset for cpu.
// The prefix register relocates the 4KiB PSA directly: real addresses
// [0,4096) live at [prefix, prefix+4096) in main storage.
func psaAddr(cpu *CPUState, offset uint32) uint32 {
	return cpu.Prefix + offset
}

// PackPSW serializes a PSW into its 8-byte wire form.
func PackPSW(p PSW) [8]byte {
	var b [8]byte
	if p.ExternalEnable {
		b[0] |= 0x80
	}
	if p.IOEnable {
		b[0] |= 0x40
	}
	if p.DAT {
		b[0] |= 0x20
	}
	if p.ECMode {
		b[0] |= 0x10
	}
	if p.MachineCheck {
		b[0] |= 0x08
	}
	if p.Wait {
		b[0] |= 0x04
	}
	if p.Problem {
		b[0] |= 0x02
	}
	if p.Amode31 {
		b[0] |= 0x01
	}
	b[1] = (p.ProgramMask&0x0f)<<4 | (p.CC & 0x03)
	b[4] = byte(p.IA >> 24)
	b[5] = byte(p.IA >> 16)
	b[6] = byte(p.IA >> 8)
	b[7] = byte(p.IA)
	return b
}

// UnpackPSW deserializes a PSW from its 8-byte wire form.
func UnpackPSW(b [8]byte) PSW {
	return PSW{
		ExternalEnable: b[0]&0x80 != 0,
		IOEnable:       b[0]&0x40 != 0,
		DAT:            b[0]&0x20 != 0,
		ECMode:         b[0]&0x10 != 0,
		MachineCheck:   b[0]&0x08 != 0,
		Wait:           b[0]&0x04 != 0,
		Problem:        b[0]&0x02 != 0,
		Amode31:        b[0]&0x01 != 0,
		ProgramMask:    (b[1] >> 4) & 0x0f,
		CC:             b[1] & 0x03,
		IA:             uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7]),
	}
}

// storeStatusBlock captures a CPU's architectural state into the shape
// the memory package's Store-Status helper expects.
func storeStatusBlock(cpu *CPUState) mem.StatusBlock {
	sb := mem.StatusBlock{
		CPUTimer:    cpu.CPUTimer,
		ClockComp:   cpu.ClockComparator,
		PSW:         PackPSW(cpu.PSW),
		Prefix:      cpu.Prefix,
		GeneralRegs: cpu.GPR,
		AccessRegs:  cpu.AR,
		ControlRegs: cpu.CR,
	}
	for i, pair := range cpu.FPR {
		sb.FloatRegs[i] = uint32(pair >> 32)
	}
	return sb
}

// StoreStatus implements the Store-Status instruction service (spec
// §4.A/§4.F): writes the 512-byte save area at absolute address aaddr
// and logs the CPU address and location, matching the teacher's
// diagnostic style.
func (sys *System) StoreStatus(cpu *CPUState, aaddr uint32) error {
	err := sys.Storage.StoreStatus(aaddr, storeStatusBlock(cpu))
	if err != nil {
		return err
	}
	sys.Logger.Info("store status", "cpu", cpu.ID, "addr", aaddr)
	return nil
}

// loadPSWFrom reads an 8-byte PSW from the PSA at offset and installs
// it on cpu. If the loaded PSW is malformed (an all-zero doubleword is
// the one condition this core treats as invalid; DAT and ECMode both
// unset is not malformed here) the CPU stops.
func (sys *System) loadPSWFrom(cpu *CPUState, offset uint32) {
	addr := psaAddr(cpu, offset)
	var raw [8]byte
	b, err := sys.Storage.GetBytes(addr, 8)
	if err != nil {
		cpu.State = Stopped
		sys.Logger.Error("invalid new PSW fetch", "cpu", cpu.ID, "addr", addr)
		return
	}
	copy(raw[:], b)
	psw := UnpackPSW(raw)
	if !psw.Wait && psw.IA == 0 && psw.ProgramMask == 0 && raw == [8]byte{} {
		cpu.State = Stopped
		sys.Logger.Error("malformed new PSW", "cpu", cpu.ID, "addr", addr)
		return
	}
	cpu.PSW = psw
}

// storeOldPSW writes cpu's current PSW to the PSA at offset.
func (sys *System) storeOldPSW(cpu *CPUState, offset uint32) error {
	b := PackPSW(cpu.PSW)
	addr := psaAddr(cpu, offset)
	return sys.Storage.PutDoubleWord(addr, beUint64(b))
}

func beUint64(b [8]byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
