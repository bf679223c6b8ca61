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

package cmd

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/config"
	"gvisor.dev/icprobe/pkg/harness"
	"gvisor.dev/icprobe/pkg/hugetlb"
	"gvisor.dev/icprobe/pkg/lockfile"
	"gvisor.dev/icprobe/pkg/log"
	"gvisor.dev/icprobe/pkg/probe"
	"gvisor.dev/icprobe/pkg/trampoline"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	// out receives the result line. Stdout if nil.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run the instruction cache probe"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags]

Repeatedly maps a huge page, runs code from it, recycles the page into a fresh
mapping of the truncated file and jumps to the same address again. Prints PASS
and exits with 0 if every jump into the fresh mapping faulted, FAIL and exits
with 2 if stale code ran or a fault was unexpected, and exits with 1 if the
host has no usable huge pages.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Run) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	out := r.out
	if out == nil {
		out = os.Stdout
	}
	start := time.Now()
	res, size, err := r.run(ctx, conf)
	status := harness.Report(out, err)
	if conf.MetricsFile != "" {
		s := resultSnapshot(size, res, status, time.Since(start))
		if err := s.WriteFile(conf.MetricsFile); err != nil {
			log.Warningf("Writing metrics to %q: %v", conf.MetricsFile, err)
		}
	}
	return subcommands.ExitStatus(status)
}

// run runs the probe. It returns the results of the iterations that ran and
// the page size probed, if they got that far.
func (r *Run) run(ctx context.Context, conf *config.Config) (*probe.Result, uint64, error) {
	if !trampoline.Supported {
		return nil, 0, trampoline.ErrUnsupported
	}
	unlock, err := lockfile.Acquire(ctx, conf.LockFile, conf.LockTimeout)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warningf("Releasing lock file %q: %v", conf.LockFile, err)
		}
	}()

	size, err := conf.ResolvePageSize()
	if err != nil {
		return nil, 0, err
	}
	file, err := hugetlb.OpenUnlinkedAt(conf.HugetlbfsPath, size)
	if err != nil {
		return nil, size, err
	}
	defer file.Close()
	log.Infof("Probing %v pages, %d iterations", config.PageSize(size), conf.Repetitions)

	p, err := probe.New(file, probe.Config{Repetitions: conf.Repetitions, PageSize: size})
	if err != nil {
		return nil, size, harness.Configf("%v", err)
	}
	res, err := p.Run(ctx)
	return res, size, poolError(res, err)
}

// poolError returns err as a configuration error if the first mapping of the
// file failed because the huge page pool had no pages for it.
func poolError(res *probe.Result, err error) error {
	var se *probe.SetupError
	if res == nil || res.Iterations != 0 || !errors.As(err, &se) || !errors.Is(se.Err, unix.ENOMEM) {
		return err
	}
	return harness.Configf("huge page pool exhausted: %w", err)
}
