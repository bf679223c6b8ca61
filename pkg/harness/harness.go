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

// Package harness reports results the way the libhugetlbfs test suite
// expects them.
package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gvisor.dev/icprobe/pkg/hugetlb"
	"gvisor.dev/icprobe/pkg/log"
	"gvisor.dev/icprobe/pkg/trampoline"
)

// Status is a test exit status.
type Status int

// Exit statuses.
const (
	Pass   Status = 0
	Config Status = 1
	Fail   Status = 2
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Config:
		return "CONFIG"
	case Fail:
		return "FAIL"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// EnvVerbose sets the verbosity of the test suite.
const EnvVerbose = "HUGETLB_VERBOSE"

// verboseLevel is the HUGETLB_VERBOSE level at which traces are shown.
const verboseLevel = 3

// ConfigError marks an error as a problem with the host's configuration.
type ConfigError struct {
	Err error
}

// Error implements error.Error.
func (e *ConfigError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Configf returns a *ConfigError with the formatted message.
func Configf(format string, v ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, v...)}
}

// IsConfig returns true if err means the test could not run on this host.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce) || errors.Is(err, hugetlb.ErrUnavailable) || errors.Is(err, trampoline.ErrUnsupported)
}

// Classify returns the status for the result err.
func Classify(err error) Status {
	switch {
	case err == nil:
		return Pass
	case IsConfig(err):
		return Config
	default:
		return Fail
	}
}

// Report writes the result line for err to w and returns its status.
func Report(w io.Writer, err error) Status {
	s := Classify(err)
	switch s {
	case Pass:
		fmt.Fprintln(w, "PASS")
	case Config:
		fmt.Fprintf(w, "Bad configuration: %v\n", err)
	default:
		fmt.Fprintf(w, "FAIL\t%v\n", err)
	}
	return s
}

// Verbose returns true if HUGETLB_VERBOSE asks for traces.
func Verbose() bool {
	v, err := strconv.Atoi(os.Getenv(EnvVerbose))
	return err == nil && v >= verboseLevel
}

// Verbosef logs a trace message. Traces are shown at Debug.
func Verbosef(format string, v ...any) {
	log.Log().DebugfAtDepth(1, format, v...)
}
