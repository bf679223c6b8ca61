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

package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v2"
)

// file is the contents of a configuration file. Each key in Flags is the name
// of a flag registered by RegisterFlags, e.g. in TOML:
//
//	[flags]
//	repetitions = "256"
//	page-size = "2M"
//
// or in YAML:
//
//	flags:
//	  repetitions: "256"
//	  page-size: 2M
type file struct {
	Flags map[string]string `toml:"flags" yaml:"flags"`
}

func decodeTOML(path string, f *file) error {
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys %v", undecoded)
	}
	return nil
}

func decodeYAML(path string, f *file) error {
	r, err := os.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	dec := yaml.NewDecoder(r)
	dec.SetStrict(true)
	return dec.Decode(f)
}

// LoadFile applies the flags set in the configuration file at path to
// flagSet. Files ending in .yaml or .yml are YAML, others TOML. Flags already
// set on the command line take precedence over the file.
func LoadFile(path string, flagSet *flag.FlagSet) error {
	var f file
	decode := decodeTOML
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		decode = decodeYAML
	}
	if err := decode(path, &f); err != nil {
		return fmt.Errorf("decode config file %q: %w", path, err)
	}

	set := make(map[string]bool)
	flagSet.Visit(func(fl *flag.Flag) {
		set[fl.Name] = true
	})

	// Apply in a stable order so that errors are reproducible.
	names := make([]string, 0, len(f.Flags))
	for name := range f.Flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if flagSet.Lookup(name) == nil {
			return fmt.Errorf("config file %q: flag %q not found", path, name)
		}
		if set[name] {
			continue
		}
		if err := flagSet.Set(name, f.Flags[name]); err != nil {
			return fmt.Errorf("config file %q: error setting flag %s=%q: %w", path, name, f.Flags[name], err)
		}
	}
	return nil
}
