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

package sighandling

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func blocked(t *testing.T, sig unix.Signal) bool {
	t.Helper()
	var cur unix.Sigset_t
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, nil, &cur); err != nil {
		t.Fatalf("PthreadSigmask: %v", err)
	}
	return cur.Val[(sig-1)/64]&(1<<(uint(sig-1)%64)) != 0
}

func TestBlockSignals(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if blocked(t, unix.SIGURG) {
		t.Skip("SIGURG already blocked on this thread")
	}
	restore, err := BlockSignals(unix.SIGURG)
	if err != nil {
		t.Fatalf("BlockSignals: %v", err)
	}
	if !blocked(t, unix.SIGURG) {
		t.Errorf("SIGURG not blocked after BlockSignals")
	}
	restore()
	if blocked(t, unix.SIGURG) {
		t.Errorf("SIGURG still blocked after restore")
	}
}

func TestGoRuntimeOwnsFaultSignals(t *testing.T) {
	for _, sig := range []unix.Signal{unix.SIGILL, unix.SIGBUS} {
		h, err := CurrentHandler(sig)
		if err != nil {
			t.Fatalf("CurrentHandler(%v): %v", sig, err)
		}
		if h == 0 {
			t.Errorf("no handler installed for %v", sig)
		}
	}
}
