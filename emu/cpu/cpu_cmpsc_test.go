/*
   S370MP CPU test cases: Compression Call (CMPSC).

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

// setCDSS installs a compression-dictionary-size-scale of cdss (1-5)
// and an empty dictionary (an all-zero Character Entry per alphabet
// slot matches no children, so every source byte resolves to its own
// single-character index symbol) at dictAddr into cpu's GPR0/GPR1.
func setCDSS(cpu *CPUState, cdss int, dictAddr uint32) {
	cpu.GPR[0] = uint32(cdss) << 12
	cpu.GPR[1] = dictAddr
}

func TestCompressSpecificationExceptionOnBadCDSS(t *testing.T) {
	sys := newTestSystem(t, 0x6000, 1)
	cpu := sys.CPUs[0]
	setCDSS(cpu, 0, 0x1000) // cdss=0 is reserved.

	_, err := sys.Compress(cpu, 4, 2)
	pc, ok := err.(*ProgramCheck)
	if !ok || pc.Code != Specification {
		t.Errorf("expected specification exception, got %v", err)
	}
}

func TestCompressSpecificationExceptionOnOddRegister(t *testing.T) {
	sys := newTestSystem(t, 0x6000, 1)
	cpu := sys.CPUs[0]
	setCDSS(cpu, 1, 0x1000)

	_, err := sys.Compress(cpu, 3, 2)
	pc, ok := err.(*ProgramCheck)
	if !ok || pc.Code != Specification {
		t.Errorf("expected specification exception, got %v", err)
	}
}

func TestCompressSingleCharacterSymbols(t *testing.T) {
	sys := newTestSystem(t, 0x6000, 1)
	cpu := sys.CPUs[0]
	setCDSS(cpu, 1, 0x1000) // symbolSize = cdss+1 = 2 bits.

	_ = sys.Storage.PutByte(0x3000, 'A')
	_ = sys.Storage.PutByte(0x3001, 'B')
	cpu.GPR[2] = 0x3000
	cpu.GPR[3] = 2 // source length in bytes

	cpu.GPR[4] = 0x4000
	cpu.GPR[5] = 4 // destination length in bytes

	cc, err := sys.Compress(cpu, 4, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc != 0 {
		t.Errorf("cc = %d, want 0 (end of source)", cc)
	}
	if cpu.GPR[3] != 0 {
		t.Errorf("source length = %d, want 0", cpu.GPR[3])
	}
	if cpu.GPR[2] != 0x3002 {
		t.Errorf("source address = %08x, want 0x3002", cpu.GPR[2])
	}
	if cbn := cbnOf(cpu); cbn != 4 {
		t.Errorf("cbn = %d, want 4 after two 2-bit symbols", cbn)
	}
}

func TestCompressEndOfDestination(t *testing.T) {
	sys := newTestSystem(t, 0x6000, 1)
	cpu := sys.CPUs[0]
	setCDSS(cpu, 5, 0x1000) // symbolSize = 6 bits
	cpu.GPR[1] |= 7         // cbn=7: one more 6-bit symbol needs a 2nd byte.

	_ = sys.Storage.PutByte(0x3000, 'A')
	cpu.GPR[2] = 0x3000
	cpu.GPR[3] = 1

	cpu.GPR[4] = 0x4000
	cpu.GPR[5] = 0 // no room at all in the destination

	cc, err := sys.Compress(cpu, 4, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cc != 1 {
		t.Errorf("cc = %d, want 1 (end of destination)", cc)
	}
	if cpu.GPR[3] != 1 {
		t.Errorf("source length advanced despite destination exhaustion: %d", cpu.GPR[3])
	}
}

func TestSearchSiblingDescriptorsMatchesFormat0Sibling(t *testing.T) {
	sys := newTestSystem(t, 0x6000, 1)
	cpu := sys.CPUs[0]

	const dictionary = uint32(0x1000)
	const dictionarySize = uint32(4096)

	// A parent with no directly-described children (cct=6, the
	// non-extended full case) whose sibling chain holds a single
	// format-0 descriptor: sct=2 comparison bytes 'X','Y', with 'Y'
	// pointing at a leaf Character Entry with no further children.
	parent := charEntry{6 << 5, 0, 0, 0, 0, 0, 0, 0}
	siblingAddr := dictionary + uint32(parent.cct())*8 // cptr is 0

	sib := [8]byte{2 << 5, 0, 'X', 'Y', 0, 0, 0, 0}
	for i, b := range sib {
		if err := sys.Storage.PutByte(siblingAddr+uint32(i), b); err != nil {
			t.Fatalf("writing sibling descriptor: %v", err)
		}
	}
	// Leaf entry for the 'Y' match, at siblingAddr + (index+1)*8 = +16,
	// all zero: no children of its own.

	_ = sys.Storage.PutByte(0x3000, 'Y')
	cpu.GPR[2] = 0x3000
	cpu.GPR[3] = 1

	found, ptr, _, err := sys.searchSiblingDescriptors(cpu, 2, parent, dictionary, dictionarySize, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected a sibling match for 'Y'")
	}
	wantPtr := parent.cptr() + 1*8
	if ptr != wantPtr {
		t.Errorf("ptr = %d, want %d", ptr, wantPtr)
	}
	if cpu.GPR[3] != 0 {
		t.Errorf("source length = %d, want 0 (one byte consumed)", cpu.GPR[3])
	}
}
