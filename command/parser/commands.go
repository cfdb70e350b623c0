/*
   S370MP - Operator command implementations.

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

package parser

import (
	"fmt"

	"github.com/rcornwell/s370mp/emu/cpu"
)

var sigpOrders = map[string]uint8{
	"sense":     cpu.SigpSense,
	"extcall":   cpu.SigpExternalCall,
	"emergency": cpu.SigpEmergencySignal,
	"start":     cpu.SigpStart,
	"stop":      cpu.SigpStop,
	"restart":   cpu.SigpRestart,
	"stopstore": cpu.SigpStopAndStore,
	"initreset": cpu.SigpInitialCPUReset,
	"reset":     cpu.SigpCPUReset,
	"setprefix": cpu.SigpSetPrefix,
	"store":     cpu.SigpStoreStatus,
}

// sigp <from-cpu> <order> <target-cpu> [parameter]
func sigp(line *cmdLine, sys *cpu.System) (bool, error) {
	from, err := line.getDecimal()
	if err != nil {
		return false, err
	}
	issuer := sys.CPU(uint16(from))
	if issuer == nil {
		return false, fmt.Errorf("no such cpu: %d", from)
	}

	orderName := line.getWord()
	order, ok := sigpOrders[orderName]
	if !ok {
		return false, fmt.Errorf("unknown sigp order: %s", orderName)
	}

	target, err := line.getDecimal()
	if err != nil {
		return false, err
	}

	var parm uint32
	if !line.isEOL() {
		parm, err = line.getHex()
		if err != nil {
			return false, err
		}
	}

	cc, status := sys.Sigp(issuer, uint16(target), order, parm)
	fmt.Printf("sigp: cc=%d status=%08x\n", cc, status)
	return false, nil
}

// start <cpu>
func start(line *cmdLine, sys *cpu.System) (bool, error) {
	n, err := line.getDecimal()
	if err != nil {
		return false, err
	}
	target := sys.CPU(uint16(n))
	if target == nil {
		return false, fmt.Errorf("no such cpu: %d", n)
	}
	target.State = cpu.Started
	return false, nil
}

// stop <cpu>
func stop(line *cmdLine, sys *cpu.System) (bool, error) {
	n, err := line.getDecimal()
	if err != nil {
		return false, err
	}
	target := sys.CPU(uint16(n))
	if target == nil {
		return false, fmt.Errorf("no such cpu: %d", n)
	}
	target.State = cpu.Stopping
	return false, nil
}

// display <cpu>
func display(line *cmdLine, sys *cpu.System) (bool, error) {
	n, err := line.getDecimal()
	if err != nil {
		return false, err
	}
	target := sys.CPU(uint16(n))
	if target == nil {
		return false, fmt.Errorf("no such cpu: %d", n)
	}
	fmt.Printf("cpu %d: state=%s prefix=%08x ia=%08x cc=%d\n",
		n, target.State, target.Prefix, target.PSW.IA, target.PSW.CC)
	for i := 0; i < 16; i += 4 {
		fmt.Printf("gpr%-2d %08x %08x %08x %08x\n", i,
			target.GPR[i], target.GPR[i+1], target.GPR[i+2], target.GPR[i+3])
	}
	return false, nil
}

// deposit <address> <value>
func deposit(line *cmdLine, sys *cpu.System) (bool, error) {
	addr, err := line.getHex()
	if err != nil {
		return false, err
	}
	value, err := line.getHex()
	if err != nil {
		return false, err
	}
	if err := sys.Storage.PutFullWord(addr, value); err != nil {
		return false, err
	}
	return false, nil
}

func quit(_ *cmdLine, _ *cpu.System) (bool, error) {
	return true, nil
}
