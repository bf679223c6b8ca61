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
	"fmt"
	"math/bits"
	"os"

	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/log"
	"gvisor.dev/icprobe/pkg/memutil"
)

// MinPages is the number of huge pages a file from OpenUnlinked must be able to
// map at once.
const MinPages = 2

// OpenUnlinked returns an unlinked file whose pages are huge pages of the
// given size. The mount named by EnvPath is used if set.
func OpenUnlinked(size uint64) (*os.File, error) {
	return OpenUnlinkedAt(os.Getenv(EnvPath), size)
}

// OpenUnlinkedAt is like OpenUnlinked, but creates the file in dir. If dir is
// empty, a hugetlbfs mount with the requested page size is looked up, and an
// anonymous MFD_HUGETLB memfd is used when there is none.
//
// Errors that mean the host is not set up for huge pages, including a pool
// with fewer than MinPages pages left, wrap ErrUnavailable.
func OpenUnlinkedAt(dir string, size uint64) (*os.File, error) {
	if err := checkPool(size); err != nil {
		return nil, err
	}
	if dir != "" {
		return createUnlinked(dir)
	}
	mounts, err := Mounts()
	if err != nil {
		log.Debugf("Reading hugetlbfs mounts: %v", err)
	}
	for _, m := range mounts {
		if m.PageSize == size {
			return createUnlinked(m.Path)
		}
	}
	log.Debugf("No hugetlbfs mount for %d byte pages, trying memfd", size)
	return createMemFD(size)
}

func checkPool(size uint64) error {
	n, err := AvailablePages(size)
	if err != nil {
		// Not every kernel exposes the pool, and the mapping will fail
		// anyway if it is empty.
		log.Debugf("Reading huge page pool for %d byte pages: %v", size, err)
		return nil
	}
	if n < MinPages {
		return fmt.Errorf("%w: %d of %d byte pages available, need %d", ErrUnavailable, n, size, MinPages)
	}
	return nil
}

// isHugetlbfs reports whether a statfs f_type is hugetlbfs. f_type is signed
// and 32 bits wide on some architectures, so it is compared as a uint32.
func isHugetlbfs(fsType uint32) bool {
	return fsType == unix.HUGETLBFS_MAGIC
}

func createUnlinked(dir string) (*os.File, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return nil, fmt.Errorf("%w: statfs(%q): %v", ErrUnavailable, dir, err)
	}
	if !isHugetlbfs(uint32(st.Type)) {
		return nil, fmt.Errorf("%w: %q is not a hugetlbfs mount", ErrUnavailable, dir)
	}
	f, err := os.CreateTemp(dir, "icprobe.tmp.")
	if err != nil {
		return nil, fmt.Errorf("creating file in %q: %w", dir, err)
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, fmt.Errorf("unlinking %q: %w", f.Name(), err)
	}
	log.Debugf("Using unlinked hugetlbfs file %q", f.Name())
	return f, nil
}

// memfdFlags returns the memfd_create flags selecting pages of size bytes.
func memfdFlags(size uint64) (int, error) {
	if size == 0 || size&(size-1) != 0 {
		return 0, fmt.Errorf("page size %d is not a power of two", size)
	}
	shift := bits.TrailingZeros64(size)
	return unix.MFD_CLOEXEC | unix.MFD_HUGETLB | shift<<unix.MFD_HUGE_SHIFT, nil
}

func createMemFD(size uint64) (*os.File, error) {
	flags, err := memfdFlags(size)
	if err != nil {
		return nil, err
	}
	fd, err := memutil.CreateMemFD("icprobe", flags)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return os.NewFile(uintptr(fd), "memfd:icprobe"), nil
}
