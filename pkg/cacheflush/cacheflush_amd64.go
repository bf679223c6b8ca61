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

//go:build amd64

package cacheflush

// Coherent is true if the hardware keeps the instruction cache coherent with
// stores, making Line a no-op.
const Coherent = true

// Line is a no-op: x86 snoops stores into the instruction cache, and the
// indirect jump that follows a write is serializing enough for
// cross-modifying code on the same thread.
func Line(addr uintptr) {}
