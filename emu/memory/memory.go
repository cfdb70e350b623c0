package memory

/*
 * S370MP - Main storage and PSA layout
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"errors"
	"sync"
)

// ErrAddressing is returned when an absolute address falls outside of
// configured main storage.
var ErrAddressing = errors.New("addressing exception")

// Storage key bits, one byte per 4KiB frame.
const (
	KeyFetchProtect uint8 = 0x80
	KeyAccessMask   uint8 = 0x70
	KeyReference    uint8 = 0x08
	KeyChange       uint8 = 0x04
	KeyBadFrame     uint8 = 0x01

	FrameSize = 4096
)

// PSA field offsets, bit-exact per the architecture.
const (
	OldPSWRestart  = 0x08
	OldPSWExternal = 0x18
	OldPSWSVC      = 0x20
	OldPSWProgram  = 0x28
	OldPSWMCheck   = 0x30
	OldPSWIO       = 0x38

	NewPSWRestart  = 0x0
	NewPSWExternal = 0x58
	NewPSWSVC      = 0x60
	NewPSWProgram  = 0x68
	NewPSWMCheck   = 0x70
	NewPSWIO       = 0x78

	IntervalTimer     = 0x50 // 80 decimal, four bytes, bit 26 decremented at 300Hz.
	ExtServiceParam   = 0x80 // Service-signal parameter.
	ExtCPUAddress     = 0x84 // Originating CPU address.
	ExtInterruptCode  = 0x86 // External-interrupt code.
	StoreStatusBase   = 0xd8 // 216 decimal.
	StoreStatusLength = 512
)

// Store-status save-area field offsets, relative to StoreStatusBase.
const (
	ssCPUTimer  = 0   // 8 bytes, signed.
	ssClockComp = 8   // 8 bytes, shifted left 8 from the architectural value.
	ssPSW       = 40  // 8 bytes (256 - 216).
	ssPrefix    = 48  // 4 bytes (264 - 216).
	ssAccessReg = 72  // 64 bytes, 16 x 4 (288 - 216).
	ssFPReg     = 136 // 32 bytes, 8 x 4 (352 - 216).
	ssGPR       = 168 // 64 bytes, 16 x 4 (384 - 216).
	ssCtlReg    = 232 // 64 bytes, 16 x 4 (448 - 216).
)

// StatusBlock is the raw register content stored by Store-Status. It
// carries no behaviour; callers (the cpu package) populate it from a
// CPU's live state.
type StatusBlock struct {
	CPUTimer    int64
	ClockComp   uint64
	PSW         [8]byte
	Prefix      uint32
	AccessRegs  [16]uint32
	FloatRegs   [8]uint32 // low halves of the 8 FP register pairs.
	GeneralRegs [16]uint32
	ControlRegs [16]uint32
}

// Storage is a single flat, byte-addressable main store shared by every
// CPU in the configuration, plus its parallel array of per-frame
// storage keys.
type Storage struct {
	mu   sync.RWMutex
	mem  []byte
	keys []uint8
	size uint32
}

// New allocates a Storage of the given size in bytes, rounded down to a
// whole number of 4KiB frames.
func New(size uint32) *Storage {
	size -= size % FrameSize
	return &Storage{
		mem:  make([]byte, size),
		keys: make([]uint8, size/FrameSize),
		size: size,
	}
}

// Size returns the configured size of main storage in bytes.
func (s *Storage) Size() uint32 {
	return s.size
}

// CheckAddr reports whether addr is a valid address in main storage.
func (s *Storage) CheckAddr(addr uint32) bool {
	return addr < s.size
}

// ApplyPrefixing maps a real address through the prefix register: the
// 4KiB ranges [0,4096) and [prefix,prefix+4096) are swapped. Applying
// it twice is the identity (it is its own inverse).
func ApplyPrefixing(real, prefix uint32) uint32 {
	switch {
	case real < FrameSize:
		return real + prefix
	case real >= prefix && real < prefix+FrameSize:
		return real - prefix
	default:
		return real
	}
}

func (s *Storage) touch(addr uint32, bits uint8) {
	s.keys[addr/FrameSize] |= bits
}

// GetByte fetches one byte at an absolute address.
func (s *Storage) GetByte(addr uint32) (uint8, error) {
	if addr >= s.size {
		return 0, ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference)
	return s.mem[addr], nil
}

// PutByte stores one byte at an absolute address.
func (s *Storage) PutByte(addr uint32, data uint8) error {
	if addr >= s.size {
		return ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference|KeyChange)
	s.mem[addr] = data
	return nil
}

// GetHalfWord fetches a big-endian 16-bit value.
func (s *Storage) GetHalfWord(addr uint32) (uint16, error) {
	if addr+1 >= s.size {
		return 0, ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference)
	return uint16(s.mem[addr])<<8 | uint16(s.mem[addr+1]), nil
}

// PutHalfWord stores a big-endian 16-bit value.
func (s *Storage) PutHalfWord(addr uint32, data uint16) error {
	if addr+1 >= s.size {
		return ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference|KeyChange)
	s.mem[addr] = uint8(data >> 8)
	s.mem[addr+1] = uint8(data)
	return nil
}

// GetFullWord fetches a big-endian 32-bit value.
func (s *Storage) GetFullWord(addr uint32) (uint32, error) {
	if addr+3 >= s.size {
		return 0, ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference)
	return uint32(s.mem[addr])<<24 | uint32(s.mem[addr+1])<<16 |
		uint32(s.mem[addr+2])<<8 | uint32(s.mem[addr+3]), nil
}

// PutFullWord stores a big-endian 32-bit value.
func (s *Storage) PutFullWord(addr uint32, data uint32) error {
	if addr+3 >= s.size {
		return ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference|KeyChange)
	s.mem[addr] = uint8(data >> 24)
	s.mem[addr+1] = uint8(data >> 16)
	s.mem[addr+2] = uint8(data >> 8)
	s.mem[addr+3] = uint8(data)
	return nil
}

// GetDoubleWord fetches a big-endian 64-bit value.
func (s *Storage) GetDoubleWord(addr uint32) (uint64, error) {
	hi, err := s.GetFullWord(addr)
	if err != nil {
		return 0, err
	}
	lo, err := s.GetFullWord(addr + 4)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// PutDoubleWord stores a big-endian 64-bit value.
func (s *Storage) PutDoubleWord(addr uint32, data uint64) error {
	if err := s.PutFullWord(addr, uint32(data>>32)); err != nil {
		return err
	}
	return s.PutFullWord(addr+4, uint32(data))
}

// GetBytes copies n raw bytes starting at addr, bypassing key bookkeeping
// other than a single reference-bit update, for bulk operand fetches
// (CMPSC dictionary entries, sibling descriptors).
func (s *Storage) GetBytes(addr uint32, n int) ([]byte, error) {
	if addr+uint32(n) > s.size {
		return nil, ErrAddressing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(addr, KeyReference)
	out := make([]byte, n)
	copy(out, s.mem[addr:addr+uint32(n)])
	return out, nil
}

// GetKey returns the storage key of the frame containing addr.
func (s *Storage) GetKey(addr uint32) uint8 {
	if addr >= s.size {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[addr/FrameSize]
}

// PutKey sets the storage key of the frame containing addr.
func (s *Storage) PutKey(addr uint32, key uint8) {
	if addr >= s.size {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[addr/FrameSize] = key
}

// StoreStatus writes the 512-byte store-status save area at absolute
// address base, per the field layout in the architecture manual.
func (s *Storage) StoreStatus(base uint32, sb StatusBlock) error {
	if base+StoreStatusLength > s.size {
		return ErrAddressing
	}
	if err := s.PutDoubleWord(base+ssCPUTimer, uint64(sb.CPUTimer)); err != nil {
		return err
	}
	if err := s.PutDoubleWord(base+ssClockComp, sb.ClockComp<<8); err != nil {
		return err
	}
	s.mu.Lock()
	copy(s.mem[base+ssPSW:base+ssPSW+8], sb.PSW[:])
	s.touch(base+ssPSW, KeyReference|KeyChange)
	s.mu.Unlock()
	if err := s.PutFullWord(base+ssPrefix, sb.Prefix); err != nil {
		return err
	}
	for i, v := range sb.AccessRegs {
		if err := s.PutFullWord(base+ssAccessReg+uint32(i*4), v); err != nil {
			return err
		}
	}
	for i, v := range sb.FloatRegs {
		if err := s.PutFullWord(base+ssFPReg+uint32(i*4), v); err != nil {
			return err
		}
	}
	for i, v := range sb.GeneralRegs {
		if err := s.PutFullWord(base+ssGPR+uint32(i*4), v); err != nil {
			return err
		}
	}
	for i, v := range sb.ControlRegs {
		if err := s.PutFullWord(base+ssCtlReg+uint32(i*4), v); err != nil {
			return err
		}
	}
	return nil
}
