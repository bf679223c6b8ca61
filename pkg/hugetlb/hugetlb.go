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

// Package hugetlb discovers the host's huge page configuration and provides
// files backed by huge pages.
package hugetlb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Environment variables understood by the package. They carry the same names
// and meanings as in libhugetlbfs.
const (
	// EnvPath names a hugetlbfs mount to use instead of discovering one.
	EnvPath = "HUGETLB_PATH"

	// EnvDefaultPageSize overrides the kernel's default huge page size.
	EnvDefaultPageSize = "HUGETLB_DEFAULT_PAGE_SIZE"
)

// ErrUnavailable is returned when the host has no usable huge pages. Callers
// treat it as a configuration problem rather than a failure.
var ErrUnavailable = errors.New("huge pages unavailable")

// Host files. Variables for tests.
var (
	meminfoPath = "/proc/meminfo"
	mountsPath  = "/proc/mounts"
	sysfsDir    = "/sys/kernel/mm/hugepages"
)

// ParseSize parses a page size such as "2M", "1G", "2048kB" or "2097152".
// Units are binary and case insensitive.
func ParseSize(s string) (uint64, error) {
	num := strings.TrimSpace(s)
	num = strings.TrimSuffix(strings.TrimSuffix(num, "B"), "b")
	shift := 0
	if n := len(num); n > 0 {
		switch num[n-1] {
		case 'k', 'K':
			shift = 10
		case 'm', 'M':
			shift = 20
		case 'g', 'G':
			shift = 30
		}
		if shift != 0 {
			num = num[:n-1]
		}
	}
	v, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid page size %q: %w", s, err)
	}
	if v == 0 {
		return 0, fmt.Errorf("invalid page size %q: zero", s)
	}
	if bits.LeadingZeros64(v) < shift {
		return 0, fmt.Errorf("invalid page size %q: overflow", s)
	}
	return v << shift, nil
}

// PageSize returns the default huge page size in bytes. EnvDefaultPageSize
// takes precedence over the kernel's default.
func PageSize() (uint64, error) {
	if s := os.Getenv(EnvDefaultPageSize); s != "" {
		size, err := ParseSize(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", EnvDefaultPageSize, err)
		}
		return size, nil
	}
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()
	return parseMeminfo(f)
}

func parseMeminfo(r io.Reader) (uint64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// Format: Hugepagesize:       2048 kB
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || key != "Hugepagesize" {
			continue
		}
		size, err := ParseSize(strings.Join(strings.Fields(value), ""))
		if err != nil {
			return 0, fmt.Errorf("invalid meminfo line %q: %w", scanner.Text(), err)
		}
		return size, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("%w: no Hugepagesize in meminfo", ErrUnavailable)
}

// PageSizes returns the huge page sizes supported by the kernel in ascending
// order. If sysfs doesn't list any, it returns the default size alone.
func PageSizes() ([]uint64, error) {
	ents, err := os.ReadDir(sysfsDir)
	if err == nil {
		names := make([]string, 0, len(ents))
		for _, ent := range ents {
			names = append(names, ent.Name())
		}
		if sizes := parseSysfsNames(names); len(sizes) > 0 {
			return sizes, nil
		}
	}
	size, err := PageSize()
	if err != nil {
		return nil, err
	}
	return []uint64{size}, nil
}

// parseSysfsNames extracts page sizes from hugepages-<N>kB directory names.
func parseSysfsNames(names []string) []uint64 {
	var sizes []uint64
	for _, name := range names {
		kb, ok := strings.CutPrefix(name, "hugepages-")
		if !ok {
			continue
		}
		size, err := ParseSize(kb)
		if err != nil || !strings.HasSuffix(kb, "kB") {
			continue
		}
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}

// AvailablePages returns how many pages of the given size can still be
// allocated: the free pages of the pool plus the surplus pages the kernel may
// still overcommit.
func AvailablePages(size uint64) (uint64, error) {
	dir := filepath.Join(sysfsDir, fmt.Sprintf("hugepages-%dkB", size>>10))
	read := func(name string) (uint64, error) {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %s/%s: %w", dir, name, err)
		}
		return v, nil
	}
	free, err := read("free_hugepages")
	if err != nil {
		return 0, err
	}
	overcommit, err := read("nr_overcommit_hugepages")
	if err != nil {
		return 0, err
	}
	surplus, err := read("surplus_hugepages")
	if err != nil {
		return 0, err
	}
	if overcommit > surplus {
		free += overcommit - surplus
	}
	return free, nil
}
