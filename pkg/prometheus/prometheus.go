// Copyright 2022 The gVisor Authors.
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

// Package prometheus writes metric data in the Prometheus text exposition
// format, documented at:
// https://prometheus.io/docs/instrumenting/exposition_formats/
//
// Output is meant for the node_exporter textfile collector, which reads
// *.prom files from a directory. WriteFile replaces such a file atomically.
package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Type is a Prometheus metric type.
type Type int

// List of supported Prometheus metric types.
const (
	TypeUntyped = Type(iota)
	TypeGauge
	TypeCounter
)

// String returns the type as written in TYPE comments.
func (t Type) String() string {
	switch t {
	case TypeGauge:
		return "gauge"
	case TypeCounter:
		return "counter"
	default:
		return "untyped"
	}
}

// Metric is a Prometheus metric metadata.
type Metric struct {
	// Name is the Prometheus metric name.
	Name string

	// Type is the type of the metric.
	Type Type

	// Help is an optional helpful string explaining what the metric is about.
	Help string
}

// writeHeaderTo writes the metric comment header to the given writer.
func (m *Metric) writeHeaderTo(w io.Writer) error {
	if m.Help != "" {
		// Prometheus metric description escape rules: Only backslashes and line breaks need escaping.
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n", m.Name, strings.ReplaceAll(strings.ReplaceAll(m.Help, "\\", "\\\\"), "\n", "\\n")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "# TYPE %s %v\n", m.Name, m.Type)
	return err
}

// Number represents a numerical value.
// In Prometheus, all numbers are float64s. Integers are kept apart so that
// counters are written exactly.
type Number struct {
	// Float is the float value of this number.
	// Mutually exclusive with Int.
	Float float64

	// Int is the integer value of this number.
	// Mutually exclusive with Float.
	Int int64
}

// String returns a string representation of this number.
func (n *Number) String() string {
	switch {
	// Zero case:
	case n.Int == 0 && n.Float == 0:
		return "0"

	// Integer case:
	case n.Int != 0:
		return fmt.Sprintf("%d", n.Int)

	// Special float cases:
	case n.Float == math.Inf(-1):
		return "-Inf"
	case n.Float == math.Inf(1):
		return "+Inf"
	case math.IsNaN(n.Float):
		return "NaN"

	// Regular float case:
	default:
		return fmt.Sprintf("%f", n.Float)
	}
}

// Data is an observation of the value of a single metric.
type Data struct {
	// Metric is the metric for which the value is being reported.
	Metric *Metric

	// Labels is a key-value pair representing the labels set on this metric.
	Labels map[string]string

	// Number is the value.
	Number Number
}

// NewIntData returns a new Data struct with the given metric and value.
func NewIntData(metric *Metric, val int64) *Data {
	return &Data{Metric: metric, Number: Number{Int: val}}
}

// LabeledIntData returns a new Data struct with the given metric, labels, and value.
func LabeledIntData(metric *Metric, labels map[string]string, val int64) *Data {
	return &Data{Metric: metric, Labels: labels, Number: Number{Int: val}}
}

// NewFloatData returns a new Data struct with the given metric and value.
func NewFloatData(metric *Metric, val float64) *Data {
	return &Data{Metric: metric, Number: Number{Float: val}}
}

// OrderedLabels returns the list of 'label_key="label_value"' in sorted
// order. Label names must be unique across all maps.
func OrderedLabels(labels ...map[string]string) ([]string, error) {
	seen := make(map[string]struct{})
	var ordered []string
	for _, labelMap := range labels {
		for k, v := range labelMap {
			if _, found := seen[k]; found {
				return nil, fmt.Errorf("duplicate label name %q", k)
			}
			seen[k] = struct{}{}
			ordered = append(ordered, fmt.Sprintf("%s=%q", k, v))
		}
	}
	sort.Strings(ordered)
	return ordered, nil
}

// writeTo writes a single line for d.
func (d *Data) writeTo(w io.Writer, extraLabels map[string]string, when time.Time) error {
	if _, err := io.WriteString(w, d.Metric.Name); err != nil {
		return err
	}
	labels, err := OrderedLabels(d.Labels, extraLabels)
	if err != nil {
		return fmt.Errorf("metric %s: %w", d.Metric.Name, err)
	}
	if len(labels) > 0 {
		if _, err := fmt.Fprintf(w, "{%s}", strings.Join(labels, ",")); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, " %s", d.Number.String()); err != nil {
		return err
	}
	if !when.IsZero() {
		if _, err := fmt.Fprintf(w, " %d", when.UnixMilli()); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Snapshot is a set of metric values.
type Snapshot struct {
	// When is written as the timestamp of every value if set. The textfile
	// collector rejects timestamps, so it is usually left zero.
	When time.Time

	// ExtraLabels is added as labels for all metric values.
	ExtraLabels map[string]string

	// Data is the whole snapshot data.
	// Each Data must be a unique combination of (Metric, Labels) within a Snapshot.
	Data []*Data
}

// Add data point(s) to the snapshot.
// Returns itself for chainability.
func (s *Snapshot) Add(data ...*Data) *Snapshot {
	s.Data = append(s.Data, data...)
	return s
}

// Write writes the snapshot to w. Values of the same metric are grouped under
// a single header, and metrics are written in name order.
func (s *Snapshot) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	byName := make(map[string][]*Data)
	var names []string
	for _, d := range s.Data {
		if _, ok := byName[d.Metric.Name]; !ok {
			names = append(names, d.Metric.Name)
		}
		byName[d.Metric.Name] = append(byName[d.Metric.Name], d)
	}
	sort.Strings(names)
	for _, name := range names {
		data := byName[name]
		if err := data[0].Metric.writeHeaderTo(bw); err != nil {
			return err
		}
		for _, d := range data {
			if err := d.writeTo(bw, s.ExtraLabels, s.When); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// WriteFile replaces the file at path with the snapshot. The data is written
// to a temporary file in the same directory first, so readers never see a
// partial file.
func (s *Snapshot) WriteFile(path string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if err := s.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %q: %w", f.Name(), err)
	}
	if err := f.Chmod(0644); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}
