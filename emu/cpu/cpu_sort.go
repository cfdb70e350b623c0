/*
   Compare-and-Form-Codeword and Update-Tree sorting instructions.

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

// addrMask returns the operand address wraparound mask for the CPU's
// current addressing mode.
func addrMask(cpu *CPUState) uint32 {
	if cpu.PSW.Amode31 {
		return 0x7fffffff
	}
	return 0x00ffffff
}

// CompareAndFormCodeword implements CFC: it walks a table of halfword
// keys pointed to by GPR1/GPR3 from the offset in GPR2's low halfword up
// to the limit in eaddr, looking for the first position where the two
// tables diverge,
// and forms a codeword describing that divergence in GPR1-3.
func (sys *System) CompareAndFormCodeword(cpu *CPUState, eaddr uint32) (uint8, error) {
	if cpu.GPR[1]&1 != 0 || cpu.GPR[2]&1 != 0 || cpu.GPR[3]&1 != 0 {
		return 3, newCheck(Specification)
	}

	mask := addrMask(cpu)
	n1 := eaddr & 0x00007ffe
	oddControl := eaddr&1 != 0

	for {
		n2 := cpu.GPR[2] & 0x0000ffff
		if n2 > n1 {
			cpu.GPR[2] = cpu.GPR[3] | 0x80000000
			return 0, nil
		}
		cpu.GPR[2] += 2

		addr1 := (cpu.GPR[1] + n2) & mask
		addr3 := (cpu.GPR[3] + n2) & mask

		h1, err := sys.Storage.GetHalfWord(addr1)
		if err != nil {
			return 0, err
		}
		h3, err := sys.Storage.GetHalfWord(addr3)
		if err != nil {
			return 0, err
		}

		var h2 uint16
		var cc uint8

		switch {
		case h1 > h3:
			if oddControl {
				h2 = h3
				cc = 1
			} else {
				h2 = ^h1
				cpu.GPR[1], cpu.GPR[3] = cpu.GPR[3], cpu.GPR[1]
				cc = 2
			}
		case h1 < h3:
			if oddControl {
				h2 = h1
				cpu.GPR[1], cpu.GPR[3] = cpu.GPR[3], cpu.GPR[1]
				cc = 2
			} else {
				h2 = ^h3
				cc = 1
			}
		default:
			continue // equal: keep scanning
		}

		cpu.GPR[2] = (cpu.GPR[2] << 16) | uint32(h2)
		return cc, nil
	}
}

// UpdateTree implements UPT: it walks a binary tree of 8-byte nodes
// rooted at GPR4, inserting or finding the key/value pair in GPR0/GPR1.
func (sys *System) UpdateTree(cpu *CPUState) (uint8, error) {
	if cpu.GPR[4]&0x00000007 != 0 || cpu.GPR[5]&0x00000007 != 0 {
		return 0, newCheck(Specification)
	}

	mask := addrMask(cpu)

	for {
		d := (cpu.GPR[5] >> 1) & 0xfffffff8
		if d == 0 {
			cpu.GPR[5] = 0
			return 1, nil
		}
		cpu.GPR[5] = d

		if int32(cpu.GPR[0]) < 0 {
			return 3, nil
		}

		j := (cpu.GPR[4] + d) & mask
		h, err := sys.Storage.GetFullWord(j)
		if err != nil {
			return 0, err
		}
		i, err := sys.Storage.GetFullWord(j + 4)
		if err != nil {
			return 0, err
		}

		if cpu.GPR[0] == h {
			cpu.GPR[2] = h
			cpu.GPR[3] = i
			return 0, nil
		}

		if cpu.GPR[0] < h {
			if err := sys.Storage.PutFullWord(j, cpu.GPR[0]); err != nil {
				return 0, err
			}
			if err := sys.Storage.PutFullWord(j+4, cpu.GPR[1]); err != nil {
				return 0, err
			}
			cpu.GPR[0] = h
			cpu.GPR[1] = i
		}
	}
}
