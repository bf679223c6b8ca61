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

//go:build !amd64 && !arm64

package trampoline

// Supported reports whether jumps are implemented on this architecture.
const Supported = false

var (
	installed          bool
	savedSigIllHandler uintptr
	savedSigBusHandler uintptr
)

func addrOfSignalHandler() uintptr { return 0 }

// addrOfJumpLabel is only reached through Image, which has nothing to capture
// here.
func addrOfJumpLabel() uintptr {
	panic(ErrUnsupported)
}

func jumpTo(uintptr) (uintptr, int32) {
	panic(ErrUnsupported)
}
