/*
   Compression Call (CMPSC): dictionary-trie compression.

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

import "errors"

// Sentinel results from the dictionary walk, distinct from storage
// addressing errors which propagate unchanged.
var (
	errEndSource      = errors.New("cmpsc: end of source operand")
	errEndDestination = errors.New("cmpsc: end of destination operand")
	errMore260        = errors.New("cmpsc: more than 260 children")
)

// processMax bounds the number of index symbols produced by a single
// execution of the instruction (the "CPU determined" processing amount).
const processMax = 2048

// charEntry is a Character Entry: 8 bytes holding a child count, a
// layout selector, an additional-extension-character count, a child
// pointer, and up to 5 extension/child comparison bytes.
type charEntry [8]byte

func (ce charEntry) cct() int   { return int(ce[0] >> 5) }
func (ce charEntry) d() bool    { return ce[1]&0x20 != 0 }
func (ce charEntry) act() int   { return int(ce[1] >> 5) }
func (ce charEntry) cptr() uint32 {
	return uint32(ce[1]&0x1f)<<8 | uint32(ce[2])
}

func cdssOf(cpu *CPUState) int   { return int((cpu.GPR[0] & 0x0000f000) >> 12) }
func f1Of(cpu *CPUState) bool    { return cpu.GPR[0]&0x00000200 != 0 }
func expandOf(cpu *CPUState) bool { return cpu.GPR[0]&0x00000100 != 0 }
func symTranOf(cpu *CPUState) bool { return cpu.GPR[0]&0x00010000 != 0 }

func dictorOf(cpu *CPUState) uint32 {
	if cpu.PSW.Amode31 {
		return cpu.GPR[1] & 0x7ffff000
	}
	return cpu.GPR[1] & 0x00fff000
}

func cbnOf(cpu *CPUState) uint8 { return uint8(cpu.GPR[1] & 0x00000007) }

func setCbnOf(cpu *CPUState, cbn uint8) {
	cpu.GPR[1] = (cpu.GPR[1] &^ 0x00000007) | (uint32(cbn) & 0x00000007)
}

// getChar fetches the next byte of the second operand (r2/r2+1) and
// advances its address/length pair. Returns errEndSource once the
// remaining length is zero.
func (sys *System) getChar(cpu *CPUState, r2 int) (byte, error) {
	if cpu.GPR[r2+1] == 0 {
		return 0, errEndSource
	}
	addr := cpu.GPR[r2] & addrMask(cpu)
	ch, err := sys.Storage.GetByte(addr)
	if err != nil {
		return 0, err
	}
	cpu.GPR[r2]++
	cpu.GPR[r2+1]--
	return ch, nil
}

func (sys *System) fetchCharEntry(addr uint32) (charEntry, error) {
	var ce charEntry
	b, err := sys.Storage.GetBytes(addr, 8)
	if err != nil {
		return ce, err
	}
	copy(ce[:], b)
	return ce, nil
}

// checkExtensionCharacters consumes act additional characters from the
// source and compares them against child's extension bytes (starting
// at offset 3). Any mismatch, or running out of source, ends the check.
func (sys *System) checkExtensionCharacters(cpu *CPUState, r2 int, child charEntry) (bool, error) {
	act := child.act()
	for i := 0; i < act; i++ {
		ch, err := sys.getChar(cpu, r2)
		if err != nil {
			return false, err
		}
		if ch != child[3+i] {
			return false, nil
		}
	}
	return true, nil
}

// searchCharacterEntry looks for one matching child among parent's
// directly-described children (those packed into the parent entry
// itself, as opposed to its sibling-descriptor chain).
func (sys *System) searchCharacterEntry(cpu *CPUState, r2 int, parent charEntry, dictionary uint32) (bool, uint32, charEntry, error) {
	cct := parent.cct()
	act := parent.act()
	if (parent.d() && cct == 5) || (!parent.d() && cct == 6) {
		cct--
	}
	if cct == 0 {
		return false, 0, charEntry{}, nil
	}

	ch, err := sys.getChar(cpu, r2)
	if err != nil {
		return false, 0, charEntry{}, err
	}

	cptr := parent.cptr()
	for index := 0; index < cct; index++ {
		if ch != parent[3+act+index] {
			continue
		}
		childAddr := dictionary + cptr + uint32(index)*8
		child, err := sys.fetchCharEntry(childAddr)
		if err != nil {
			return false, 0, charEntry{}, err
		}
		matched, err := sys.checkExtensionCharacters(cpu, r2, child)
		if err != nil {
			return false, 0, charEntry{}, err
		}
		if matched {
			return true, cptr + uint32(index)*8, child, nil
		}
	}
	return false, 0, charEntry{}, nil
}

// searchSiblingDescriptors walks the sibling-descriptor chain attached
// to parent when its direct children don't exhaust cct. Format-0
// descriptors pack a 3-bit count and up to 6 comparison bytes in one
// 8-byte quadword; format-1 descriptors pack a 4-bit count across one
// quadword plus a companion quadword at base+dictionarySize holding the
// comparison bytes, for up to 260 total siblings across the chain.
//
// Unlike the reference this walk advances by (sct+1)*8 between
// descriptors rather than sct*8: the shorter stride used by the
// original omits the descriptor's own 8 bytes and misreads the next
// header as comparison data.
func (sys *System) searchSiblingDescriptors(cpu *CPUState, r2 int, parent charEntry, dictionary uint32, dictionarySize uint32, useFormat1 bool) (bool, uint32, charEntry, error) {
	cct := parent.cct()
	d := parent.d()
	if (!d && cct != 6) || (d && cct != 5) {
		return false, 0, charEntry{}, nil
	}

	childrenSearched := 5
	if d {
		childrenSearched = 4
	}

	cptr := parent.cptr()
	siblingAddr := dictionary + cptr + uint32(cct)*8

	for {
		moreSiblings := false
		var combined [16]byte

		b0, err := sys.Storage.GetBytes(siblingAddr, 8)
		if err != nil {
			return false, 0, charEntry{}, err
		}
		copy(combined[0:8], b0)

		var sct int
		if useFormat1 {
			b1, err := sys.Storage.GetBytes(siblingAddr+dictionarySize, 8)
			if err != nil {
				return false, 0, charEntry{}, err
			}
			copy(combined[8:16], b1)
			sct = int(combined[0] >> 4)
			if sct == 15 {
				sct = 14
				moreSiblings = true
			}
		} else {
			sct = int(combined[0] >> 5)
			if sct == 0 {
				sct = 7
				moreSiblings = true
			}
		}

		childrenSearched += sct
		if childrenSearched > 260 {
			return false, 0, charEntry{}, errMore260
		}

		ch, err := sys.getChar(cpu, r2)
		if err != nil {
			return false, 0, charEntry{}, err
		}

		for index := 0; index < sct; index++ {
			if ch != combined[2+index] {
				continue
			}
			childAddr := siblingAddr + uint32(index+1)*8
			child, err := sys.fetchCharEntry(childAddr)
			if err != nil {
				return false, 0, charEntry{}, err
			}
			matched, err := sys.checkExtensionCharacters(cpu, r2, child)
			if err != nil {
				return false, 0, charEntry{}, err
			}
			if matched {
				return true, cptr + uint32(index)*8, child, nil
			}
		}

		if !moreSiblings {
			return false, 0, charEntry{}, nil
		}
		siblingAddr += uint32(sct+1) * 8
	}
}

func (sys *System) searchChild(cpu *CPUState, r2 int, parent charEntry, dictionary, dictionarySize uint32, useFormat1 bool) (bool, uint32, charEntry, error) {
	found, ptr, child, err := sys.searchCharacterEntry(cpu, r2, parent, dictionary)
	if err != nil || found {
		return found, ptr, child, err
	}
	return sys.searchSiblingDescriptors(cpu, r2, parent, dictionary, dictionarySize, useFormat1)
}

// getIndexSymbol walks the dictionary trie as deep as the source
// operand matches, returning the deepest matching index symbol.
func (sys *System) getIndexSymbol(cpu *CPUState, r1, r2, cdss int, useFormat1 bool) (uint32, error) {
	dictionary := dictorOf(cpu)
	dictionarySize := uint32(2048) << uint(cdss)

	cbn := cbnOf(cpu)
	symbolSize := cdss + 1
	if (int(cbn)+symbolSize+1)/8 > int(cpu.GPR[r1+1]) {
		return 0, errEndDestination
	}

	ch, err := sys.getChar(cpu, r2)
	if err != nil {
		return 0, err
	}

	parent, err := sys.fetchCharEntry(dictionary + uint32(ch)*8)
	if err != nil {
		return 0, err
	}
	indexSymbol := uint32(ch)

	for {
		found, ptr, child, err := sys.searchChild(cpu, r2, parent, dictionary, dictionarySize, useFormat1)
		if err != nil {
			return 0, err
		}
		if !found {
			return indexSymbol, nil
		}
		indexSymbol = ptr
		parent = child
	}
}

// storeIndexSymbol packs indexSymbol, (cdss+1) bits wide, into the
// first operand's bit stream at its current Compressed-data Bit Number,
// then advances the operand address/length and CBN.
func (sys *System) storeIndexSymbol(cpu *CPUState, r1, cdss int, indexSymbol uint32) error {
	cbn := cbnOf(cpu)
	symbolSize := uint32(cdss + 1)

	addr := cpu.GPR[r1] & addrMask(cpu)
	work, err := sys.Storage.GetFullWord(addr)
	if err != nil {
		return err
	}

	work &^= (^uint32(0) << (32 - symbolSize)) >> uint32(cbn)
	work |= indexSymbol << (32 - symbolSize - uint32(cbn))

	if err := sys.Storage.PutFullWord(addr, work); err != nil {
		return err
	}

	increment := (uint32(cbn) + symbolSize) / 8
	cpu.GPR[r1] += increment
	cpu.GPR[r1+1] -= increment
	setCbnOf(cpu, uint8((uint32(cbn)+symbolSize)%8))
	return nil
}

// Compress implements the compress form of CMPSC: it repeatedly finds
// the longest dictionary match for the source operand (r2/r2+1) and
// packs the resulting index symbol into the destination operand
// (r1/r1+1), until source or destination is exhausted, a node has more
// than 260 children (a data exception), or the per-instruction
// processing budget is spent (condition code 3, resumable).
func (sys *System) Compress(cpu *CPUState, r1, r2 int) (uint8, error) {
	cdss := cdssOf(cpu)
	if r1%2 != 0 || r2%2 != 0 || cdss == 0 || cdss > 5 {
		return 0, newCheck(Specification)
	}
	useFormat1 := f1Of(cpu)

	for n := 0; n < processMax; n++ {
		idx, err := sys.getIndexSymbol(cpu, r1, r2, cdss, useFormat1)
		switch {
		case errors.Is(err, errEndSource):
			return 0, nil
		case errors.Is(err, errEndDestination):
			return 1, nil
		case errors.Is(err, errMore260):
			return 0, newCheck(Data)
		case err != nil:
			return 0, err
		}
		if err := sys.storeIndexSymbol(cpu, r1, cdss, idx); err != nil {
			return 0, err
		}
	}
	return 3, nil
}
