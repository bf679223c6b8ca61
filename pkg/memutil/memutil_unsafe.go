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

//go:build linux

// Package memutil provides utilities for working with shared memory files.
package memutil

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// CreateMemFD creates a memfd file and returns the fd.
func CreateMemFD(name string, flags int) (int, error) {
	fd, err := unix.MemfdCreate(name, flags)
	if err != nil {
		return -1, fmt.Errorf("memfd_create(%q, %#x): %w", name, flags, err)
	}
	return fd, nil
}

// MapFile returns a memory mapping configured by the given options as per
// mmap(2). Unlike unix.Mmap, addr is passed to the kernel, so MAP_FIXED
// replaces whatever is mapped at addr.
func MapFile(addr, size, prot, flags, fd, offset uintptr) (uintptr, error) {
	m, _, e := unix.RawSyscall6(unix.SYS_MMAP, addr, size, prot, flags, fd, offset)
	if e != 0 {
		return 0, e
	}
	return m, nil
}

// Unmap removes the mapping [addr, addr+size).
func Unmap(addr, size uintptr) error {
	if _, _, e := unix.RawSyscall(unix.SYS_MUNMAP, addr, size, 0); e != 0 {
		return e
	}
	return nil
}

// MapSlice is like MapFile, but returns a slice instead of a uintptr.
func MapSlice(addr, size, prot, flags, fd, offset uintptr) ([]byte, error) {
	addr, err := MapFile(addr, size, prot, flags, fd, offset)
	if err != nil {
		return nil, err
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}

// UnmapSlice unmaps a mapping returned by MapSlice.
func UnmapSlice(slice []byte) error {
	ptr := unsafe.SliceData(slice)
	return Unmap(uintptr(unsafe.Pointer(ptr)), uintptr(cap(slice)))
}

// Mapping is a mapped region.
type Mapping struct {
	Addr uintptr
	Size uintptr
}

// End returns the first address past the mapping.
func (m Mapping) End() uintptr {
	return m.Addr + m.Size
}

// Unmap unmaps m.
func (m Mapping) Unmap() error {
	return Unmap(m.Addr, m.Size)
}
