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

package hugetlb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Mount is a hugetlbfs mount point.
type Mount struct {
	// Path is the mount point.
	Path string

	// PageSize is the size of the pages backing files on the mount.
	PageSize uint64
}

// Mounts returns the host's hugetlbfs mounts in /proc/mounts order. Mounts
// without a pagesize option use the default huge page size.
func Mounts() ([]Mount, error) {
	f, err := os.Open(mountsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	mounts, err := parseMounts(f)
	if err != nil {
		return nil, err
	}
	for i := range mounts {
		if mounts[i].PageSize != 0 {
			continue
		}
		if mounts[i].PageSize, err = PageSize(); err != nil {
			return nil, err
		}
	}
	return mounts, nil
}

// parseMounts returns hugetlbfs entries from r. PageSize is zero for entries
// without a pagesize option.
func parseMounts(r io.Reader) ([]Mount, error) {
	var mounts []Mount
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		// Format: source target fstype options dump pass
		// Example: hugetlbfs /dev/hugepages hugetlbfs rw,relatime,pagesize=2M 0 0
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return nil, fmt.Errorf("invalid mounts file, line: %q", scanner.Text())
		}
		if fields[2] != "hugetlbfs" {
			continue
		}
		m := Mount{Path: unescapeOctal(fields[1])}
		for _, opt := range strings.Split(fields[3], ",") {
			v, ok := strings.CutPrefix(opt, "pagesize=")
			if !ok {
				continue
			}
			size, err := ParseSize(v)
			if err != nil {
				return nil, fmt.Errorf("mount %q: %w", m.Path, err)
			}
			m.PageSize = size
		}
		mounts = append(mounts, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// unescapeOctal decodes the \ooo escapes the kernel uses for whitespace in
// mount paths.
func unescapeOctal(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
