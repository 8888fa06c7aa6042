// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package heartbeat runs a periodic liveness probe and reports when it
// starts or stops succeeding.
package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ProbeFunc func(ctx context.Context) error

type Keepalive struct {
	probe     ProbeFunc
	interval  time.Duration
	threshold int
	onChange  func(healthy bool)
	ll        *slog.Logger

	mu       sync.Mutex
	failures int
	healthy  bool
}

type Option func(*Keepalive)

// WithFailureThreshold sets how many probes in a row must fail before the
// target is reported unhealthy.
func WithFailureThreshold(n int) Option {
	return func(k *Keepalive) {
		if n > 0 {
			k.threshold = n
		}
	}
}

// OnHealthChange is called on every transition, starting with the result
// of the first probe.
func OnHealthChange(fn func(healthy bool)) Option {
	return func(k *Keepalive) { k.onChange = fn }
}

func New(probe ProbeFunc, interval time.Duration, logger *slog.Logger, opts ...Option) *Keepalive {
	if logger == nil {
		logger = slog.Default()
	}
	k := &Keepalive{
		probe:     probe,
		interval:  interval,
		threshold: 1,
		onChange:  func(bool) {},
		ll:        logger.With("component", "keepalive"),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Start probes immediately and then every interval until the returned
// cancel func is called or ctx is done.
func (k *Keepalive) Start(ctx context.Context) context.CancelFunc {
	runCtx, cancel := context.WithCancel(ctx)
	go k.run(runCtx)
	return cancel
}

// Run is Start for callers that supervise the goroutine themselves.
func (k *Keepalive) Run(ctx context.Context) error {
	k.run(ctx)
	return nil
}

func (k *Keepalive) Healthy() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.healthy
}

func (k *Keepalive) run(ctx context.Context) {
	k.ll.Debug("Starting keepalive loop", slog.Duration("interval", k.interval))
	first := true
	k.beat(ctx, &first)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.beat(ctx, &first)
		}
	}
}

func (k *Keepalive) beat(ctx context.Context, first *bool) {
	err := k.probe(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}

	k.mu.Lock()
	was := k.healthy
	if err != nil {
		k.failures++
		if k.failures >= k.threshold {
			k.healthy = false
		}
	} else {
		k.failures = 0
		k.healthy = true
	}
	now, failures := k.healthy, k.failures
	changed := *first || now != was
	*first = false
	k.mu.Unlock()

	if err != nil {
		k.ll.Warn("Keepalive probe failed (continuing)", slog.Int("consecutiveFailures", failures), slog.Any("error", err))
	}
	if changed {
		k.ll.Info("Keepalive health changed", slog.Bool("healthy", now))
		k.onChange(now)
	}
}
