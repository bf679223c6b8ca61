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
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gvisor.dev/icprobe/pkg/config"
	"gvisor.dev/icprobe/pkg/hugetlb"
)

// Sizes implements subcommands.Command for the "sizes" command.
type Sizes struct{}

// Name implements subcommands.Command.Name.
func (*Sizes) Name() string {
	return "sizes"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Sizes) Synopsis() string {
	return "list the host's huge page sizes and hugetlbfs mounts"
}

// Usage implements subcommands.Command.Usage.
func (*Sizes) Usage() string {
	return "sizes\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Sizes) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Sizes) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	def, err := hugetlb.PageSize()
	if err != nil {
		return Errorf("%v", err)
	}
	sizes, err := hugetlb.PageSizes()
	if err != nil {
		return Errorf("%v", err)
	}
	mounts, err := hugetlb.Mounts()
	if err != nil {
		return Errorf("reading mounts: %v", err)
	}
	if err := writeSizes(os.Stdout, def, sizes, mounts); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}

func writeSizes(out io.Writer, def uint64, sizes []uint64, mounts []hugetlb.Mount) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "SIZE\tDEFAULT\tMOUNT")
	for _, size := range sizes {
		isDefault := ""
		if size == def {
			isDefault = "yes"
		}
		mount := "-"
		for _, m := range mounts {
			if m.PageSize == size {
				mount = m.Path
				break
			}
		}
		fmt.Fprintf(w, "%v\t%s\t%s\n", config.PageSize(size), isDefault, mount)
	}
	return w.Flush()
}
