// Copyright 2018 Google LLC
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

package log

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

// recorder collects formatted messages without the Writer's newline handling.
type recorder struct {
	msgs []string
}

func (r *recorder) Emit(_ int, _ Level, _ time.Time, format string, v ...any) {
	r.msgs = append(r.msgs, fmt.Sprintf(format, v...))
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	want := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("written lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if diff := cmp.Diff([]string{"no newline", "\n"}, tw.lines); diff != "" {
		t.Errorf("written lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLevelFiltering(t *testing.T) {
	r := &recorder{}
	l := BasicLogger{Level: Info, Emitter: r}
	l.Debugf("SIGBUS at %#x", 0x1000)
	l.Infof("iteration %d", 1)
	l.Warningf("unexpected")
	if diff := cmp.Diff([]string{"iteration 1", "unexpected"}, r.msgs); diff != "" {
		t.Fatalf("messages at Info mismatch (-want +got):\n%s", diff)
	}

	l.SetLevel(Debug)
	if !l.IsLogging(Debug) {
		t.Fatalf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
	l.Debugf("SIGBUS at %#x", 0x1000)
	if got := r.msgs[len(r.msgs)-1]; got != "SIGBUS at 0x1000" {
		t.Errorf("last message = %q, want %q", got, "SIGBUS at 0x1000")
	}
}

func TestGoogleEmitterFormat(t *testing.T) {
	tw := &testWriter{}
	e := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2026, time.May, 4, 3, 2, 1, 5000, time.UTC)
	e.Emit(0, Warning, ts, "icache unclean at %s", "0x7f0000000000")
	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(tw.lines))
	}
	line := tw.lines[0]
	if !strings.HasPrefix(line, "W0504 03:02:01.000005 ") {
		t.Errorf("line %q has wrong header", line)
	}
	if !strings.Contains(line, "log_test.go:") {
		t.Errorf("line %q does not name the calling file", line)
	}
	if !strings.HasSuffix(line, "] icache unclean at 0x7f0000000000\n") {
		t.Errorf("line %q has wrong message", line)
	}
}

func TestJSONEmitter(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{&Writer{Next: tw}}
	e.Emit(0, Debug, time.Now(), "SIGILL at %#x", 0x2000)
	if len(tw.lines) == 0 {
		t.Fatalf("nothing was written")
	}
	var got jsonLog
	if err := json.Unmarshal([]byte(tw.lines[0]), &got); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", tw.lines[0], err)
	}
	if got.Msg != "SIGILL at 0x2000" || got.Level != Debug {
		t.Errorf("got %+v, want msg %q at debug", got, "SIGILL at 0x2000")
	}
	if !strings.HasPrefix(got.Caller, "log_test.go:") {
		t.Errorf("caller = %q, want log_test.go:<line>", got.Caller)
	}
}

func TestRateLimitedLogger(t *testing.T) {
	r := &recorder{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: r}, time.Hour)
	for i := 0; i < 10; i++ {
		l.Infof("iteration %d", i)
	}
	if diff := cmp.Diff([]string{"iteration 0"}, r.msgs); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimitedLoggerCountsDropped(t *testing.T) {
	r := &recorder{}
	l := RateLimitedLogger(&BasicLogger{Level: Info, Emitter: r}, time.Hour).(*rateLimitedLogger)
	l.Infof("iteration %d", 0)
	l.Infof("iteration %d", 1)
	l.Infof("iteration %d", 2)
	l.Debugf("not logged at Info")
	l.limit = rate.NewLimiter(rate.Inf, 1)
	l.Infof("iteration %d", 3)
	l.Infof("iteration %d", 4)
	want := []string{
		"iteration 0",
		"iteration 3 (2 similar messages suppressed)",
		"iteration 4",
	}
	if diff := cmp.Diff(want, r.msgs); diff != "" {
		t.Errorf("rate limited output mismatch (-want +got):\n%s", diff)
	}
}
