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

package prometheus

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/common/expfmt"
)

var (
	iterations = &Metric{Name: "icprobe_iterations_total", Type: TypeCounter, Help: "Iterations completed."}
	faults     = &Metric{Name: "icprobe_faults_total", Type: TypeCounter, Help: "Faults that completed an iteration,\nby signal."}
	duration   = &Metric{Name: "icprobe_duration_seconds", Type: TypeGauge}
)

func snapshot() *Snapshot {
	s := &Snapshot{ExtraLabels: map[string]string{"page_size": "2097152"}}
	return s.Add(
		NewIntData(iterations, 128),
		LabeledIntData(faults, map[string]string{"signal": "SIGBUS"}, 127),
		LabeledIntData(faults, map[string]string{"signal": "SIGILL"}, 1),
		NewFloatData(duration, 0.5),
	)
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	if err := snapshot().Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := strings.Join([]string{
		"# TYPE icprobe_duration_seconds gauge",
		`icprobe_duration_seconds{page_size="2097152"} 0.500000`,
		"# HELP icprobe_faults_total Faults that completed an iteration,\\nby signal.",
		"# TYPE icprobe_faults_total counter",
		`icprobe_faults_total{page_size="2097152",signal="SIGBUS"} 127`,
		`icprobe_faults_total{page_size="2097152",signal="SIGILL"} 1`,
		"# HELP icprobe_iterations_total Iterations completed.",
		"# TYPE icprobe_iterations_total counter",
		`icprobe_iterations_total{page_size="2097152"} 128`,
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Write mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteParses(t *testing.T) {
	var buf bytes.Buffer
	s := snapshot()
	s.When = time.UnixMilli(1700000000000)
	if err := s.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	parsed, err := (&expfmt.TextParser{}).TextToMetricFamilies(&buf)
	if err != nil {
		t.Fatalf("TextToMetricFamilies: %v\n%s", err, buf.String())
	}
	got := make(map[string]float64)
	for name, mf := range parsed {
		for _, m := range mf.GetMetric() {
			key := name
			for _, l := range m.GetLabel() {
				if l.GetName() == "signal" {
					key += "/" + l.GetValue()
				}
			}
			switch mf.GetType().String() {
			case "COUNTER":
				got[key] = m.GetCounter().GetValue()
			case "GAUGE":
				got[key] = m.GetGauge().GetValue()
			}
			if m.GetTimestampMs() != 1700000000000 {
				t.Errorf("%s: timestamp %d, want 1700000000000", key, m.GetTimestampMs())
			}
		}
	}
	want := map[string]float64{
		"icprobe_iterations_total":    128,
		"icprobe_faults_total/SIGBUS": 127,
		"icprobe_faults_total/SIGILL": 1,
		"icprobe_duration_seconds":    0.5,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parsed metrics mismatch (-want +got):\n%s", diff)
	}
}

func TestDuplicateLabels(t *testing.T) {
	s := &Snapshot{ExtraLabels: map[string]string{"signal": "x"}}
	s.Add(LabeledIntData(faults, map[string]string{"signal": "SIGBUS"}, 1))
	if err := s.Write(&bytes.Buffer{}); err == nil {
		t.Errorf("Write accepted duplicate label names")
	}
}

func TestNumberString(t *testing.T) {
	for _, tc := range []struct {
		n    Number
		want string
	}{
		{Number{}, "0"},
		{Number{Int: -3}, "-3"},
		{Number{Float: 1.25}, "1.250000"},
		{Number{Float: math.Inf(1)}, "+Inf"},
		{Number{Float: math.Inf(-1)}, "-Inf"},
		{Number{Float: math.NaN()}, "NaN"},
	} {
		if got := tc.n.String(); got != tc.want {
			t.Errorf("%+v.String() = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icprobe.prom")
	if err := os.WriteFile(path, []byte("stale"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := snapshot().WriteFile(path); err != nil {
		t.Fatalf("Snapshot.WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "icprobe_iterations_total") {
		t.Errorf("file contents = %q", data)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(ents) != 1 {
		t.Errorf("directory has %d entries, want 1", len(ents))
	}
}
