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

//go:build amd64 || arm64

package trampoline

// Supported reports whether jumps are implemented on this architecture.
const Supported = true

// Escape state shared with the assembly signal handler.
var (
	// jumpArmed is non-zero while jumpTo is calling into foreign code.
	jumpArmed uint32

	// jumpSP is the stack pointer at entry to jumpTo.
	jumpSP uintptr

	// savedSigIllHandler and savedSigBusHandler are the Go runtime's
	// handlers, called for signals that do not interrupt a jump.
	savedSigIllHandler uintptr
	savedSigBusHandler uintptr
)

// installed is set once both handlers have been replaced.
var installed bool

// jumpLabel is the code fragment. Its body is CopySize bytes of return
// instructions.
func jumpLabel()

// jumpTo calls target. If target returns, sig is zero. If target raises
// SIGILL or SIGBUS, signalHandler resumes execution at handleJumpFault which
// returns from jumpTo with sig set to the signal number and fault set to the
// faulting address.
//
//go:noescape
func jumpTo(target uintptr) (fault uintptr, sig int32)

// signalHandler is the raw SIGILL and SIGBUS handler.
func signalHandler()

// addrOfSignalHandler returns the start address of signalHandler.
func addrOfSignalHandler() uintptr

// addrOfJumpLabel returns the start address of jumpLabel.
func addrOfJumpLabel() uintptr
