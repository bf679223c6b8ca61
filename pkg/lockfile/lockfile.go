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

// Package lockfile serializes processes that compete for the huge page pool.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gofrs/flock"
	"gvisor.dev/icprobe/pkg/log"
)

var errLocked = errors.New("lock is held by another process")

// Acquire takes an exclusive lock on the file at path, creating it and its
// directory if needed. It retries until timeout has elapsed or ctx is done.
// A timeout of zero tries once. If path is empty, no lock is taken and the
// returned unlock does nothing.
func Acquire(ctx context.Context, path string, timeout time.Duration) (func() error, error) {
	if path == "" {
		return func() error { return nil }, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0711); err != nil {
		return nil, fmt.Errorf("error creating lock directory for %q: %v", path, err)
	}

	l := flock.New(path)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Millisecond
	b.MaxInterval = 1 * time.Second
	b.MaxElapsedTime = timeout
	var bo backoff.BackOff = b
	if timeout <= 0 {
		// A zero MaxElapsedTime never stops, and neither does
		// WithMaxRetries(b, 0).
		bo = &backoff.StopBackOff{}
	}

	op := func() error {
		ok, err := l.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLocked
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		log.Debugf("Waiting %v for lock file %q: %v", next, path, err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, fmt.Errorf("error acquiring lock on %q: %w", path, err)
	}
	log.Debugf("Acquired lock file %q", path)
	return l.Unlock, nil
}
