// Copyright 2018 The gVisor Authors.
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

// Package sighandling contains helpers for installing raw signal handlers
// underneath the Go runtime.
package sighandling

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sigAction is the kernel's struct sigaction on amd64 and arm64.
type sigAction struct {
	Handler  uint64
	Flags    uint64
	Restorer uint64
	Mask     uint64
}

// signalSetSize is the size in bytes of the kernel's sigset_t.
const signalSetSize = 8

func getAction(sig unix.Signal, sa *sigAction) error {
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), 0, uintptr(unsafe.Pointer(sa)), signalSetSize, 0, 0); e != 0 {
		return e
	}
	return nil
}

func setAction(sig unix.Signal, sa *sigAction) error {
	if _, _, e := unix.RawSyscall6(unix.SYS_RT_SIGACTION, uintptr(sig), uintptr(unsafe.Pointer(sa)), 0, signalSetSize, 0, 0); e != 0 {
		return e
	}
	return nil
}

// ReplaceSignalHandler replaces the existing signal handler for the provided
// signal with the function pointer at `handler`. This bypasses the Go runtime
// signal handlers, and should only be used for low-level signal handlers where
// use of signal.Notify is not appropriate.
//
// The flags, mask and restorer of the existing action are kept, so the new
// handler runs on the Go signal stack and returns through the runtime's
// restorer. It stores the value of the previously set handler in previous.
func ReplaceSignalHandler(sig unix.Signal, handler uintptr, previous *uintptr) error {
	var sa sigAction

	// Get the existing signal handler information, and save the current
	// handler. Once we replace it, we will use this pointer to fall back to
	// it when we receive other signals.
	if err := getAction(sig, &sa); err != nil {
		return err
	}

	// Fail if there isn't a previous handler.
	if sa.Handler == 0 {
		return fmt.Errorf("previous handler for signal %x isn't set", sig)
	}

	*previous = uintptr(sa.Handler)

	// Install our own handler.
	sa.Handler = uint64(handler)
	return setAction(sig, &sa)
}

// CurrentHandler returns the address of the handler currently installed for
// sig.
func CurrentHandler(sig unix.Signal) (uintptr, error) {
	var sa sigAction
	if err := getAction(sig, &sa); err != nil {
		return 0, err
	}
	return uintptr(sa.Handler), nil
}

// BlockSignals blocks the given signals on the calling thread and returns a
// function restoring the previous mask. The caller must hold the OS thread
// (runtime.LockOSThread) until the returned function has run.
func BlockSignals(sigs ...unix.Signal) (func(), error) {
	var set, old unix.Sigset_t
	for _, sig := range sigs {
		// sigset_t bit n-1 corresponds to signal n.
		set.Val[(sig-1)/64] |= 1 << (uint(sig-1) % 64)
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &old); err != nil {
		return nil, err
	}
	return func() {
		unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
	}, nil
}
