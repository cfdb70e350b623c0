/*
   S370MP CPU test cases: Compare-and-Form-Codeword and Update-Tree.

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

func newTestSystem(t *testing.T, storageSize uint32, numCPU int) *System {
	t.Helper()
	sys := New(numCPU, storageSize, 1, nil)
	return sys
}

func TestCompareAndFormCodewordAscending(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]

	// Table 1 at 0x100, table 2 at 0x200, both ascending, diverge at index 1.
	_ = sys.Storage.PutHalfWord(0x100, 1)
	_ = sys.Storage.PutHalfWord(0x102, 5)
	_ = sys.Storage.PutHalfWord(0x200, 1)
	_ = sys.Storage.PutHalfWord(0x202, 9)

	cpu.GPR[1] = 0x100
	cpu.GPR[2] = 0
	cpu.GPR[3] = 0x200

	cc, err := sys.CompareAndFormCodeword(cpu, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc != 1 {
		t.Errorf("cc = %d, want 1", cc)
	}
}

func TestCompareAndFormCodewordSpecificationException(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.GPR[1] = 1 // Odd: violates even-register requirement.

	_, err := sys.CompareAndFormCodeword(cpu, 0)
	pc, ok := err.(*ProgramCheck)
	if !ok || pc.Code != Specification {
		t.Errorf("expected specification exception, got %v", err)
	}
}

func TestCompareAndFormCodewordEndOfTable(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.GPR[1] = 0x100
	cpu.GPR[2] = 2 // Already past the table length encoded in eaddr.
	cpu.GPR[3] = 0x200

	cc, err := sys.CompareAndFormCodeword(cpu, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc != 0 {
		t.Errorf("cc = %d, want 0", cc)
	}
	if cpu.GPR[2]&0x80000000 == 0 {
		t.Errorf("expected high bit set in GPR2, got %08x", cpu.GPR[2])
	}
}

func TestUpdateTreeEmptyTreeReportsNotFound(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]

	cpu.GPR[4] = 0x100 // tree root
	cpu.GPR[5] = 16    // depth budget

	cpu.GPR[0] = 42
	cpu.GPR[1] = 100
	cc, err := sys.UpdateTree(cpu)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc != 1 {
		t.Fatalf("cc = %d, want 1 (key not found in an all-zero tree)", cc)
	}
}

func TestUpdateTreeSpecificationException(t *testing.T) {
	sys := newTestSystem(t, 4096, 1)
	cpu := sys.CPUs[0]
	cpu.GPR[4] = 1 // Not a multiple of 8.

	_, err := sys.UpdateTree(cpu)
	pc, ok := err.(*ProgramCheck)
	if !ok || pc.Code != Specification {
		t.Errorf("expected specification exception, got %v", err)
	}
}
