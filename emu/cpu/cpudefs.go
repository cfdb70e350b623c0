/*
   CPU definitions for the S/370 and ESA/390 multiprocessor core.

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

import "fmt"

// CPU operating state, SIGP-driven: started -> stopping -> stopped -> started.
type State int

const (
	Started State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PSW is the architectural program status word, kept unpacked for ease
// of manipulation; PackPSW/UnpackPSW convert to and from the 8-byte wire form.
type PSW struct {
	ExternalEnable bool // Bit enabling external interrupts.
	IOEnable       bool
	DAT            bool // Dynamic-address-translation enabled.
	ECMode         bool
	MachineCheck   bool
	Wait           bool
	Problem        bool
	CC             uint8 // Condition code, 0-3.
	ProgramMask    uint8
	Amode31        bool
	IA             uint32 // Instruction address.
}

// Control-register-0 external-mask bits, CR0 bits that gate each class
// of external interrupt in the dispatcher's priority table.
const (
	CR0IntKey        uint32 = 0x00000080 // interrupt-key mask, highest priority source.
	CR0Emergency     uint32 = 0x00200000
	CR0ExternalCall  uint32 = 0x00100000
	CR0ClockComp     uint32 = 0x00000800
	CR0CPUTimer      uint32 = 0x00000400
	CR0IntervalTimer uint32 = 0x00000010
	CR0ServiceSignal uint32 = 0x00000001
)

// External-interrupt codes, stored at PSA+134 (ExtInterruptCode).
const (
	ExtCodeIntKey        uint16 = 0x0040
	ExtCodeEmergency     uint16 = 0x1201
	ExtCodeExternalCall  uint16 = 0x1202
	ExtCodeClockComp     uint16 = 0x1004
	ExtCodeCPUTimer      uint16 = 0x1005
	ExtCodeIntervalTimer uint16 = 0x0080
	ExtCodeServiceSignal uint16 = 0x2401
)

// SIGP order codes, architectural values.
const (
	SigpSense            uint8 = 0x01
	SigpExternalCall     uint8 = 0x02
	SigpEmergencySignal  uint8 = 0x03
	SigpStart            uint8 = 0x04
	SigpStop             uint8 = 0x05
	SigpRestart          uint8 = 0x06
	SigpStopAndStore     uint8 = 0x09
	SigpInitialCPUReset  uint8 = 0x0B
	SigpCPUReset         uint8 = 0x0C
	SigpSetPrefix        uint8 = 0x0D
	SigpStoreStatus      uint8 = 0x0E
)

// SIGP response-status bits, written to R1 on condition code 1.
const (
	SigpStatusInvalidOrder     uint32 = 0x00000001
	SigpStatusStopped          uint32 = 0x00000040
	SigpStatusExternalCallPend uint32 = 0x00000080
	SigpStatusInvalidParameter uint32 = 0x00000100
	SigpStatusIncorrectState   uint32 = 0x00000200
)

// ProgramCheckCode enumerates the program-interruption classes the core
// can raise at the architectural boundary.
type ProgramCheckCode int

const (
	Specification ProgramCheckCode = iota + 1
	Addressing
	Data
	PrivilegedOperation
	Protection
)

func (c ProgramCheckCode) String() string {
	switch c {
	case Specification:
		return "specification exception"
	case Addressing:
		return "addressing exception"
	case Data:
		return "data exception"
	case PrivilegedOperation:
		return "privileged-operation exception"
	case Protection:
		return "protection exception"
	default:
		return "unknown program check"
	}
}

// ProgramCheck is returned by instruction services instead of being
// thrown as a Go panic; the caller performs the PSW swap.
type ProgramCheck struct {
	Code ProgramCheckCode
}

func (e *ProgramCheck) Error() string {
	return fmt.Sprintf("program check: %s", e.Code)
}

func newCheck(code ProgramCheckCode) error {
	return &ProgramCheck{Code: code}
}
