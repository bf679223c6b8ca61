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

// Package probe checks that the kernel synchronizes the instruction cache
// when a huge page is handed out again.
//
// Each iteration maps a huge page file, installs a code fragment in its first
// page and runs it. The file is then truncated, the first page is replaced by
// a fresh mapping of the now empty file, and the same address is jumped to
// without writing or flushing anything. A correct kernel faults on that jump.
// If the jump instead returns, stale instructions were executed from the
// instruction cache.
package probe

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sys/unix"
	"gvisor.dev/icprobe/pkg/cacheflush"
	"gvisor.dev/icprobe/pkg/cleanup"
	"gvisor.dev/icprobe/pkg/fault"
	"gvisor.dev/icprobe/pkg/harness"
	"gvisor.dev/icprobe/pkg/hostarch"
	"gvisor.dev/icprobe/pkg/log"
	"gvisor.dev/icprobe/pkg/memutil"
	"gvisor.dev/icprobe/pkg/trampoline"
)

// DefaultRepetitions is the number of iterations in a run.
const DefaultRepetitions = 128

const prot = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC

// progressInterval limits how often progress is logged at Info.
const progressInterval = time.Second

// ErrUncleanICache is returned when the jump into the fresh mapping returned
// normally.
var ErrUncleanICache = errors.New("icache unclean")

// Backing is the file whose pages are mapped. *os.File satisfies it.
type Backing interface {
	Fd() uintptr
	Truncate(size int64) error
}

// SetupError is returned when the file or its mappings can't be set up.
type SetupError struct {
	// Op names the failed step.
	Op string

	// Err is the underlying error.
	Err error
}

// Error implements error.Error.
func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SetupError) Unwrap() error {
	return e.Err
}

// Config configures a Prober.
type Config struct {
	// Repetitions is the number of iterations run by Run.
	Repetitions int

	// PageSize is the page size of the backing file.
	PageSize uint64
}

// Validate checks c.
func (c Config) Validate() error {
	if c.Repetitions < 1 {
		return fmt.Errorf("repetitions must be at least 1, got %d", c.Repetitions)
	}
	if !hostarch.IsPowerOfTwo(c.PageSize) {
		return fmt.Errorf("page size %d is not a power of two", c.PageSize)
	}
	if c.PageSize < trampoline.CopySize {
		return fmt.Errorf("page size %d is smaller than the %d byte code fragment", c.PageSize, trampoline.CopySize)
	}
	return nil
}

// Result summarizes a run.
type Result struct {
	// Iterations is the number of iterations that completed.
	Iterations int

	// IllegalInstructions and BusFaults count iterations by the fault that
	// completed them.
	IllegalInstructions int
	BusFaults           int
}

func (r *Result) record(o fault.Outcome) {
	r.Iterations++
	switch o {
	case fault.IllegalInstruction:
		r.IllegalInstructions++
	case fault.BusFault:
		r.BusFaults++
	}
}

// String implements fmt.Stringer.
func (r *Result) String() string {
	return fmt.Sprintf("%d iterations (%d SIGILL, %d SIGBUS)", r.Iterations, r.IllegalInstructions, r.BusFaults)
}

// Prober runs probe iterations against one file.
type Prober struct {
	file  Backing
	cfg   Config
	watch *fault.Watch

	// progress is a rate limited logger for per-iteration messages.
	progress log.Logger
}

// New returns a Prober for file.
func New(file Backing, cfg Config) (*Prober, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Prober{
		file:     file,
		cfg:      cfg,
		watch:    fault.NewWatch(cfg.PageSize),
		progress: log.BasicRateLimitedLogger(progressInterval),
	}, nil
}

// TargetAddr returns the address of the code fragment in a mapping at base:
// the last CopySize bytes of the first page.
func TargetAddr(base uintptr, pageSize uint64) uintptr {
	return base + uintptr(pageSize) - trampoline.CopySize
}

func (p *Prober) truncate(size int64) error {
	if err := p.file.Truncate(size); err != nil {
		return &SetupError{Op: fmt.Sprintf("ftruncate(%d)", size), Err: err}
	}
	return nil
}

// Once runs one iteration. It returns the outcome of an iteration completed
// by an expected fault, or an error that must end the run.
//
// Preconditions: trampoline.Install has succeeded.
func (p *Prober) Once() (fault.Outcome, error) {
	size := uintptr(p.cfg.PageSize)
	defer p.watch.Disarm()

	if err := p.truncate(0); err != nil {
		return fault.Completed, err
	}

	// Map two pages of the empty file. Only the first is populated below; the
	// second keeps the range reserved while the first is replaced.
	base, err := memutil.MapFile(0, 2*size, prot, unix.MAP_SHARED, p.file.Fd(), 0)
	if err != nil {
		return fault.Completed, &SetupError{Op: "mmap() 1", Err: err}
	}
	m := memutil.Mapping{Addr: base, Size: 2 * size}
	cu := cleanup.Make(func() {
		if err := m.Unmap(); err != nil {
			log.Warningf("Unmapping %v: %v", hostarch.Addr(m.Addr), err)
		}
	})
	defer cu.Clean()
	// Bus faults are matched by page, so the mapping must start on one.
	if !hostarch.Addr(base).IsAligned(p.cfg.PageSize) {
		return fault.Completed, &SetupError{Op: "mmap() 1", Err: fmt.Errorf("mapped at %v, not aligned to %d bytes", hostarch.Addr(base), p.cfg.PageSize)}
	}

	if err := p.truncate(int64(size)); err != nil {
		return fault.Completed, err
	}
	target := TargetAddr(base, p.cfg.PageSize)
	if err := trampoline.Enter(true, target); err != nil {
		return p.escaped(err)
	}

	if err := p.truncate(0); err != nil {
		return fault.Completed, err
	}
	addr, err := memutil.MapFile(base, size, prot, unix.MAP_SHARED|unix.MAP_FIXED, p.file.Fd(), 0)
	if err != nil {
		return fault.Completed, &SetupError{Op: "mmap() 2", Err: err}
	}
	if addr != base {
		return fault.Completed, &SetupError{Op: "mmap() 2", Err: fmt.Errorf("mapped at %v, want %v", hostarch.Addr(addr), hostarch.Addr(base))}
	}

	target = TargetAddr(addr, p.cfg.PageSize)
	p.watch.Arm(hostarch.Addr(target))
	if err := trampoline.Enter(false, target); err != nil {
		return p.escaped(err)
	}
	return fault.Completed, ErrUncleanICache
}

// escaped classifies an error returned by a jump.
func (p *Prober) escaped(err error) (fault.Outcome, error) {
	var f *trampoline.Fault
	if !errors.As(err, &f) {
		return fault.Completed, &SetupError{Op: "entering code", Err: err}
	}
	expected, _ := p.watch.Expected()
	harness.Verbosef("%s at %v (sig_expected=%v)", unix.SignalName(f.Signal), f.Addr, expected)
	return p.watch.Classify(f.Signal, f.Addr)
}

// Run installs the fault handlers and runs the configured number of
// iterations. It stops at the first error, or when ctx is done.
func (p *Prober) Run(ctx context.Context) (*Result, error) {
	if err := trampoline.Install(); err != nil {
		return nil, err
	}
	if cacheflush.Coherent {
		log.Infof("The instruction cache is coherent on %s, so every iteration should fault", runtime.GOARCH)
	}
	res := &Result{}
	for i := 0; i < p.cfg.Repetitions; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o, err := p.Once()
		if err != nil {
			return res, fmt.Errorf("iteration %d: %w", i, err)
		}
		res.record(o)
		p.progress.Infof("Iteration %d/%d: %v", i+1, p.cfg.Repetitions, o)
	}
	log.Infof("Probe finished: %v", res)
	return res, nil
}
