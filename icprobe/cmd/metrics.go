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
	"strconv"
	"time"

	"gvisor.dev/icprobe/pkg/harness"
	"gvisor.dev/icprobe/pkg/probe"
	"gvisor.dev/icprobe/pkg/prometheus"
)

var (
	statusMetric = &prometheus.Metric{
		Name: "icprobe_status",
		Type: prometheus.TypeGauge,
		Help: "Result of the last run: 0 pass, 1 bad configuration, 2 fail.",
	}
	iterationsMetric = &prometheus.Metric{
		Name: "icprobe_iterations_total",
		Type: prometheus.TypeCounter,
		Help: "Iterations completed by the last run.",
	}
	faultsMetric = &prometheus.Metric{
		Name: "icprobe_faults_total",
		Type: prometheus.TypeCounter,
		Help: "Expected faults that completed an iteration, by signal.",
	}
	durationMetric = &prometheus.Metric{
		Name: "icprobe_duration_seconds",
		Type: prometheus.TypeGauge,
		Help: "Wall time of the last run.",
	}
	lastRunMetric = &prometheus.Metric{
		Name: "icprobe_last_run_timestamp_seconds",
		Type: prometheus.TypeGauge,
		Help: "Time the last run finished.",
	}
)

// resultSnapshot returns the metrics for a run. res may be nil, and size zero,
// if the run ended before they were known.
func resultSnapshot(size uint64, res *probe.Result, status harness.Status, elapsed time.Duration) *prometheus.Snapshot {
	if res == nil {
		res = &probe.Result{}
	}
	s := &prometheus.Snapshot{
		ExtraLabels: map[string]string{"page_size": strconv.FormatUint(size, 10)},
	}
	return s.Add(
		prometheus.NewIntData(statusMetric, int64(status)),
		prometheus.NewIntData(iterationsMetric, int64(res.Iterations)),
		prometheus.LabeledIntData(faultsMetric, map[string]string{"signal": "SIGILL"}, int64(res.IllegalInstructions)),
		prometheus.LabeledIntData(faultsMetric, map[string]string{"signal": "SIGBUS"}, int64(res.BusFaults)),
		prometheus.NewFloatData(durationMetric, elapsed.Seconds()),
		prometheus.NewFloatData(lastRunMetric, float64(timeNow().UnixMilli())/1000),
	)
}

// timeNow is time.Now. Can be mocked in tests.
var timeNow = time.Now
