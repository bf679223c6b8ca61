// Copyright 2019 The gVisor Authors.
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

//go:build arm64

package hostarch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// 16K and 64K translation granules change both the base and the default huge
// page size.
func init() {
	if size := unix.Getpagesize(); size != PageSize {
		panic(fmt.Sprintf("hostarch: running with %d byte pages, built for %d", size, PageSize))
	}
}
