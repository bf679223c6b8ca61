// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hostarch contains host arch address operations.
package hostarch

import "fmt"

// Addr represents a virtual address in the probe's own address space.
type Addr uintptr

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uintptr(v))
}

// RoundDown returns the address rounded down to the nearest multiple of
// size.
//
// Preconditions: size is a power of two.
func (v Addr) RoundDown(size uint64) Addr {
	return v & ^Addr(size-1)
}

// RoundUp returns the address rounded up to the nearest multiple of size. ok
// is true iff rounding up did not wrap around.
//
// Preconditions: size is a power of two.
func (v Addr) RoundUp(size uint64) (addr Addr, ok bool) {
	addr = Addr(v + Addr(size) - 1).RoundDown(size)
	ok = addr >= v
	return
}

// IsAligned returns true if v is a multiple of size.
func (v Addr) IsAligned(size uint64) bool {
	return v&Addr(size-1) == 0
}

// HugeRoundDown returns the address rounded down to the start of the huge
// page of size hpage that contains it.
func (v Addr) HugeRoundDown(hpage uint64) Addr {
	return v.RoundDown(hpage)
}

// SamePage reports whether v and w fall in the same page of the given size.
func (v Addr) SamePage(w Addr, size uint64) bool {
	return v.RoundDown(size) == w.RoundDown(size)
}

// IsPowerOfTwo returns true if n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
