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

package hugetlb

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestMemfdFlags(t *testing.T) {
	got, err := memfdFlags(2 << 20)
	if err != nil {
		t.Fatalf("memfdFlags: %v", err)
	}
	if want := unix.MFD_CLOEXEC | unix.MFD_HUGETLB | unix.MFD_HUGE_2MB; got != want {
		t.Errorf("memfdFlags(2M) = %#x, want %#x", got, want)
	}
	if got, _ := memfdFlags(1 << 30); got&^(unix.MFD_CLOEXEC|unix.MFD_HUGETLB) != unix.MFD_HUGE_1GB {
		t.Errorf("memfdFlags(1G) = %#x, want MFD_HUGE_1GB", got)
	}
	if _, err := memfdFlags(3 << 20); err == nil {
		t.Errorf("memfdFlags(3M) succeeded")
	}
}

func TestOpenUnlinkedAtRejectsOtherFilesystems(t *testing.T) {
	_, err := OpenUnlinkedAt(t.TempDir(), 2<<20)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("OpenUnlinkedAt(tmpdir) = %v, want %v", err, ErrUnavailable)
	}
}

func TestOpenUnlinked(t *testing.T) {
	size, err := PageSize()
	if err != nil {
		t.Skipf("no huge pages: %v", err)
	}
	f, err := OpenUnlinked(size)
	if errors.Is(err, ErrUnavailable) {
		t.Skipf("no huge page backing: %v", err)
	}
	if err != nil {
		t.Fatalf("OpenUnlinked(%d): %v", size, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		t.Errorf("Truncate(%d): %v", size, err)
	}
}

func TestOpenUnlinkedEmptyPool(t *testing.T) {
	withPool(t, "1", "0", "0")
	_, err := OpenUnlinkedAt("", 2<<20)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("OpenUnlinkedAt = %v, want %v", err, ErrUnavailable)
	}
	if !strings.Contains(err.Error(), "1 of 2097152 byte pages available") {
		t.Errorf("OpenUnlinkedAt = %v, want the pool size in the error", err)
	}
}

func TestIsHugetlbfs(t *testing.T) {
	if !isHugetlbfs(unix.HUGETLBFS_MAGIC) {
		t.Errorf("isHugetlbfs(HUGETLBFS_MAGIC) = false")
	}
	if isHugetlbfs(unix.TMPFS_MAGIC) {
		t.Errorf("isHugetlbfs(TMPFS_MAGIC) = true")
	}
	// f_type as a sign-extended 32-bit value.
	magic := int32(-0x6a7ba70a)
	if !isHugetlbfs(uint32(magic)) {
		t.Errorf("isHugetlbfs(%#x) = false", uint32(magic))
	}
}
