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

package cacheflush

import (
	"testing"
	"unsafe"
)

func TestRangeOverHeapBuffer(t *testing.T) {
	buf := make([]byte, 3*MinLineSize+5)
	for i := range buf {
		buf[i] = byte(i)
	}
	base := uintptr(unsafe.Pointer(&buf[0]))
	Range(base+1, uintptr(len(buf)-1))
	Range(base, 0)
	for i := range buf {
		if buf[i] != byte(i) {
			t.Fatalf("buf[%d] = %d after Range, want %d", i, buf[i], byte(i))
		}
	}
}
