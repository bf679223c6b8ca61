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

//go:build arm64

package cacheflush

// Coherent is false: arm64 requires explicit maintenance unless CTR_EL0.DIC
// and CTR_EL0.IDC are both set.
const Coherent = false

// Line cleans the data cache line containing addr to the point of
// unification, invalidates the matching instruction cache line, and issues
// the barriers needed before that address is executed.
//
//go:noescape
func Line(addr uintptr)
