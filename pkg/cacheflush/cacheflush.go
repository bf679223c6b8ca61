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

// Package cacheflush synchronizes the instruction cache with the data cache
// after code has been written to memory.
package cacheflush

// MinLineSize is the smallest cache line size of any supported CPU. Range
// steps by this amount so that no line in the range is skipped, whatever the
// actual line size is.
const MinLineSize = 16

// Range synchronizes every cache line overlapping [addr, addr+n).
func Range(addr, n uintptr) {
	if n == 0 {
		return
	}
	start := addr &^ (MinLineSize - 1)
	for p := start; p < addr+n; p += MinLineSize {
		Line(p)
	}
}
