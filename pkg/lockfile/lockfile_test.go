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

package lockfile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
)

func TestAcquireEmptyPath(t *testing.T) {
	unlock, err := Acquire(context.Background(), "", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := unlock(); err != nil {
		t.Errorf("unlock: %v", err)
	}
}

func TestAcquireCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "icprobe.lock")
	unlock, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := unlock(); err != nil {
		t.Errorf("unlock: %v", err)
	}
	// Free again.
	unlock, err = Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	unlock()
}

func TestAcquireTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icprobe.lock")
	// flock(2) locks belong to the open file description, so a second
	// description conflicts even within one process.
	holder := flock.New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer holder.Unlock()

	start := time.Now()
	if _, err := Acquire(context.Background(), path, 50*time.Millisecond); !errors.Is(err, errLocked) {
		t.Errorf("Acquire = %v, want %v", err, errLocked)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Acquire took %v", elapsed)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icprobe.lock")
	holder := flock.New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer holder.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Acquire(ctx, path, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire = %v, want %v", err, context.Canceled)
	}
}

func TestAcquireSucceedsAfterRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icprobe.lock")
	holder := flock.New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	time.AfterFunc(20*time.Millisecond, func() { holder.Unlock() })

	unlock, err := Acquire(context.Background(), path, 10*time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	unlock()
}

func TestAcquireZeroTimeoutTriesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "icprobe.lock")
	holder := flock.New(path)
	if err := holder.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer holder.Unlock()

	start := time.Now()
	if _, err := Acquire(context.Background(), path, 0); !errors.Is(err, errLocked) {
		t.Errorf("Acquire = %v, want %v", err, errLocked)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Acquire with zero timeout took %v", elapsed)
	}

	holder.Unlock()
	unlock, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if err := unlock(); err != nil {
		t.Errorf("unlock: %v", err)
	}
}
