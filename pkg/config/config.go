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

// Package config holds the probe's configuration.
package config

import (
	"fmt"
	"time"

	"gvisor.dev/icprobe/pkg/hostarch"
	"gvisor.dev/icprobe/pkg/hugetlb"
	"gvisor.dev/icprobe/pkg/log"
	"gvisor.dev/icprobe/pkg/trampoline"
)

// Config holds configuration that is not part of the command line arguments
// of a subcommand. Fields are populated from flags of the same name; see
// RegisterFlags.
type Config struct {
	// Repetitions is the number of iterations to run.
	Repetitions int `flag:"repetitions"`

	// PageSize is the huge page size to probe. Zero selects the default huge
	// page size.
	PageSize PageSize `flag:"page-size"`

	// HugetlbfsPath is the hugetlbfs mount to create the probe file on. If
	// empty, a mount is discovered.
	HugetlbfsPath string `flag:"hugetlbfs-path"`

	// LockFile is the path of a lock serializing concurrent runs. Empty
	// disables locking.
	LockFile string `flag:"lock-file"`

	// LockTimeout bounds the time spent waiting for LockFile.
	LockTimeout time.Duration `flag:"lock-timeout"`

	// MetricsFile is a path the run's results are written to in Prometheus
	// text format. Empty disables it.
	MetricsFile string `flag:"metrics-file"`

	// Verbose enables per-iteration traces.
	Verbose bool `flag:"verbose"`

	// LogFilename is the file debug logs are written to, in addition to
	// stderr. Empty means only stderr.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format"`

	// AlsoLogToStderr keeps logging to stderr when LogFilename is set.
	AlsoLogToStderr bool `flag:"alsologtostderr"`
}

func (c *Config) validate() error {
	if c.Repetitions < 1 {
		return fmt.Errorf("--repetitions must be at least 1, got %d", c.Repetitions)
	}
	if c.PageSize != 0 {
		if !hostarch.IsPowerOfTwo(uint64(c.PageSize)) {
			return fmt.Errorf("--page-size %d is not a power of two", c.PageSize)
		}
		if c.PageSize < trampoline.CopySize {
			return fmt.Errorf("--page-size %d is smaller than %d bytes", c.PageSize, trampoline.CopySize)
		}
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("--lock-timeout must not be negative, got %v", c.LockTimeout)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid --log-format %q: must be text or json", c.LogFormat)
	}
	return nil
}

// Validate checks that c is consistent.
func (c *Config) Validate() error {
	return c.validate()
}

// ResolvePageSize returns c.PageSize, or the host's default huge page size if
// it is zero.
func (c *Config) ResolvePageSize() (uint64, error) {
	if c.PageSize != 0 {
		return uint64(c.PageSize), nil
	}
	return hugetlb.PageSize()
}

// Log writes the configuration to the log.
func (c *Config) Log() {
	log.Infof("Configuration:")
	log.Infof("\t\tRepetitions: %d", c.Repetitions)
	if c.PageSize == 0 {
		log.Infof("\t\tPageSize: default")
	} else {
		log.Infof("\t\tPageSize: %v", c.PageSize)
	}
	log.Infof("\t\tHugetlbfsPath: %q", c.HugetlbfsPath)
	log.Infof("\t\tLockFile: %q, LockTimeout: %v", c.LockFile, c.LockTimeout)
	if c.MetricsFile != "" {
		log.Infof("\t\tMetricsFile: %q", c.MetricsFile)
	}
	log.Infof("\t\tVerbose: %t, LogFormat: %s", c.Verbose, c.LogFormat)
}

// PageSize is a page size in bytes. As a flag it accepts the same units as
// hugetlb.ParseSize.
type PageSize uint64

// Set implements flag.Value.
func (p *PageSize) Set(v string) error {
	if v == "" {
		*p = 0
		return nil
	}
	size, err := hugetlb.ParseSize(v)
	if err != nil {
		return err
	}
	*p = PageSize(size)
	return nil
}

// Get implements flag.Getter.
func (p *PageSize) Get() any {
	return *p
}

// String implements flag.Value.
func (p PageSize) String() string {
	switch {
	case p == 0:
		return ""
	case p%(1<<30) == 0:
		return fmt.Sprintf("%dG", p>>30)
	case p%(1<<20) == 0:
		return fmt.Sprintf("%dM", p>>20)
	case p%(1<<10) == 0:
		return fmt.Sprintf("%dK", p>>10)
	default:
		return fmt.Sprintf("%d", uint64(p))
	}
}
