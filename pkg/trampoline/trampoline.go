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

// Package trampoline executes a small relocatable code fragment at an
// arbitrary address and turns a fault raised by that code into an ordinary
// return value.
//
// The fragment is the machine code of jumpLabel, an assembly function that
// consists only of return instructions. Image captures CopySize bytes of it
// once from the running binary. A caller copies the image to writable and
// executable memory, synchronizes the instruction cache, and calls into it
// with Jump.
//
// Faults are recovered by a signal handler installed underneath the Go
// runtime for SIGILL and SIGBUS (see Install). While a jump is in flight the
// handler rewrites the interrupted context so that Jump returns the signal
// and the fault address to its caller instead of crashing the process. All
// other deliveries of those signals are passed to the Go runtime's handler.
package trampoline

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/hostarch"
)

// CopySize is the size of the code fragment, in bytes.
const CopySize = 128

// ErrUnsupported is returned on architectures without a jump implementation.
var ErrUnsupported = errors.New("trampoline: unsupported architecture")

// ErrNotInstalled is returned by Jump before Install has succeeded, or when
// the handlers it installed have since been replaced.
var ErrNotInstalled = errors.New("trampoline: fault handlers are not installed")

// Fault is returned by Jump when the jumped-to code raised SIGILL or SIGBUS.
type Fault struct {
	// Signal is the signal that interrupted the jump.
	Signal unix.Signal

	// Addr is the fault address reported in siginfo. For SIGILL this is the
	// address of the offending instruction.
	Addr hostarch.Addr
}

// Error implements error.Error.
func (f *Fault) Error() string {
	return fmt.Sprintf("%v at %v", unix.SignalName(f.Signal), f.Addr)
}
