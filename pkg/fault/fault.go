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

// Package fault decides whether a fault signal raised by a probe jump was
// the one the probe set up, or a sign that the probe's own assumptions broke.
//
// A Watch holds at most one expected fault address. It is armed immediately
// before the unflushed jump and disarmed when the iteration ends. It is not
// safe for concurrent use; only one jump may be in flight at a time.
package fault

import (
	"fmt"

	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/hostarch"
)

// Outcome is the result of one probe iteration.
type Outcome int

const (
	// Completed means the iteration ended without an accepted fault.
	Completed Outcome = iota

	// IllegalInstruction means SIGILL was raised at exactly the expected
	// address.
	IllegalInstruction

	// BusFault means SIGBUS was raised within the huge page holding the
	// expected address.
	BusFault
)

// String implements fmt.Stringer.String.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case IllegalInstruction:
		return "illegal-instruction"
	case BusFault:
		return "bus-fault"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// UnexpectedError is returned when a fault does not match the expectation.
// It is fatal to the whole run.
type UnexpectedError struct {
	// Signal is the signal that was raised.
	Signal unix.Signal

	// Addr is the fault address reported in siginfo.
	Addr hostarch.Addr

	// Expected is the armed address, or zero if nothing was armed.
	Expected hostarch.Addr
}

// Error implements error.Error.
func (e *UnexpectedError) Error() string {
	what := "somewhere unexpected"
	if e.Signal != unix.SIGILL && e.Signal != unix.SIGBUS {
		what = "which the probe does not handle"
	}
	return fmt.Sprintf("%v at %v (expected=%v) %s", unix.SignalName(e.Signal), e.Addr, e.Expected, what)
}

// Watch is the expected-fault slot.
type Watch struct {
	// pageSize is the huge page size used to match SIGBUS addresses.
	pageSize uint64

	// expected is the armed address. It is only valid if watching is true.
	expected hostarch.Addr
	watching bool
}

// NewWatch returns a disarmed Watch that matches bus faults by huge pages of
// the given size.
//
// Preconditions: pageSize is a power of two.
func NewWatch(pageSize uint64) *Watch {
	return &Watch{pageSize: pageSize}
}

// Arm sets the expected fault address.
func (w *Watch) Arm(addr hostarch.Addr) {
	w.expected = addr
	w.watching = true
}

// Disarm clears the expected fault address.
func (w *Watch) Disarm() {
	w.expected = 0
	w.watching = false
}

// Expected returns the armed address and whether the watch is armed.
func (w *Watch) Expected() (hostarch.Addr, bool) {
	return w.expected, w.watching
}

// Classify matches a fault against the expectation.
//
// SIGILL is accepted only at exactly the expected address. SIGBUS is accepted
// only while armed and when the fault address lies in the same huge page as
// the expected address. Every other fault yields an *UnexpectedError.
func (w *Watch) Classify(sig unix.Signal, addr hostarch.Addr) (Outcome, error) {
	switch sig {
	case unix.SIGILL:
		if w.watching && addr == w.expected {
			return IllegalInstruction, nil
		}
	case unix.SIGBUS:
		if w.watching && addr.SamePage(w.expected, w.pageSize) {
			return BusFault, nil
		}
	}
	return Completed, &UnexpectedError{Signal: sig, Addr: addr, Expected: w.expected}
}
