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

package trampoline

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/cacheflush"
	"gvisor.dev/icprobe/pkg/hostarch"
	"gvisor.dev/icprobe/pkg/sighandling"
)

var (
	imageOnce sync.Once
	image     [CopySize]byte

	installOnce sync.Once
	installErr  error

	// jumpMu serializes jumps. The escape checkpoint is process-wide, so
	// only one jump may be in flight.
	jumpMu sync.Mutex
)

// Image returns a copy of the code fragment. The bytes are read from the
// binary's text on first use, and every call returns the same bytes. It
// returns nil if Supported is false.
func Image() []byte {
	if !Supported {
		return nil
	}
	imageOnce.Do(func() {
		src := unsafe.Slice((*byte)(unsafe.Pointer(addrOfJumpLabel())), CopySize)
		copy(image[:], src)
	})
	b := image
	return b[:]
}

// Install replaces the Go runtime's SIGILL and SIGBUS handlers with the
// escape handler. It is idempotent.
func Install() error {
	if !Supported {
		return ErrUnsupported
	}
	installOnce.Do(func() {
		if err := sighandling.ReplaceSignalHandler(unix.SIGILL, addrOfSignalHandler(), &savedSigIllHandler); err != nil {
			installErr = fmt.Errorf("can't install SIGILL handler: %w", err)
			return
		}
		if err := sighandling.ReplaceSignalHandler(unix.SIGBUS, addrOfSignalHandler(), &savedSigBusHandler); err != nil {
			installErr = fmt.Errorf("can't install SIGBUS handler: %w", err)
			return
		}
		installed = true
	})
	return installErr
}

// checkHandlers returns an error if something, such as a later signal.Notify,
// has replaced the handlers that Install put in place.
func checkHandlers() error {
	for _, sig := range []unix.Signal{unix.SIGILL, unix.SIGBUS} {
		h, err := sighandling.CurrentHandler(sig)
		if err != nil {
			return fmt.Errorf("reading %v handler: %w", unix.SignalName(sig), err)
		}
		if h != addrOfSignalHandler() {
			return fmt.Errorf("%w: %v handler replaced by %v", ErrNotInstalled, unix.SignalName(sig), hostarch.Addr(h))
		}
	}
	return nil
}

// WriteAndFlush copies the code fragment to target and synchronizes the
// instruction cache for it. Memory outside [target, target+CopySize) is not
// touched. A fault while writing is returned as an error.
//
// Preconditions: [target, target+CopySize) is mapped writable.
func WriteAndFlush(target uintptr) (err error) {
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			if addr, ok := r.(interface{ Addr() uintptr }); ok {
				err = fmt.Errorf("fault at %v writing code to %v", hostarch.Addr(addr.Addr()), hostarch.Addr(target))
				return
			}
			panic(r)
		}
	}()
	copy(unsafe.Slice((*byte)(unsafe.Pointer(target)), CopySize), Image())
	cacheflush.Range(target, CopySize)
	return nil
}

// Jump calls into the code at target. It returns nil if that code returned
// normally, and a *Fault if it raised SIGILL or SIGBUS.
//
// The jump runs on a locked OS thread with SIGURG blocked, so that the Go
// scheduler does not preempt into the foreign code. Jump may hang if target
// holds code that neither returns nor faults.
//
// Preconditions: Install has succeeded; target is mapped executable.
func Jump(target uintptr) error {
	if !Supported {
		return ErrUnsupported
	}
	if !installed {
		return ErrNotInstalled
	}
	if err := checkHandlers(); err != nil {
		return err
	}

	jumpMu.Lock()
	defer jumpMu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	restore, err := sighandling.BlockSignals(unix.SIGURG)
	if err != nil {
		return fmt.Errorf("blocking SIGURG: %w", err)
	}
	defer restore()

	addr, sig := jumpTo(target)
	if sig == 0 {
		return nil
	}
	return &Fault{Signal: unix.Signal(sig), Addr: hostarch.Addr(addr)}
}

// Enter writes and flushes the code fragment at target if copy is set, and
// then jumps to target.
func Enter(copy bool, target uintptr) error {
	if copy {
		if err := WriteAndFlush(target); err != nil {
			return err
		}
	}
	return Jump(target)
}
