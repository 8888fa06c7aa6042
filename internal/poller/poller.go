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

// Package poller asks the work queue for calls to place. It polls quickly
// for a while after it last found work and slowly otherwise, skips the
// queue while a call is in progress, and releases the lease when the call
// flow reports completion.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cardinalhq/callrunner/internal/lease"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

type Config struct {
	FastInterval time.Duration `mapstructure:"fast_interval"`
	SlowInterval time.Duration `mapstructure:"slow_interval"`
	// FastWindow is how long after finding work the fast interval is used.
	FastWindow time.Duration `mapstructure:"fast_window"`
}

func DefaultConfig() Config {
	return Config{
		FastInterval: 3 * time.Second,
		SlowInterval: 30 * time.Second,
		FastWindow:   5 * time.Minute,
	}
}

type WorkSource interface {
	TakeWork(ctx context.Context, identities []string) (*workqueue.WorkItem, error)
}

type Leases interface {
	IsHeld() (bool, error)
	TryAcquire(item workqueue.WorkItem) (lease.Lease, bool, error)
	Release() error
}

type Dialer interface {
	Dial(ctx context.Context, req workqueue.DialRequest) error
}

type IdentitySource func() (workqueue.Identities, error)

// Status is a snapshot of the poll loop for status reporting.
type Status struct {
	LastWorkAt   time.Time `json:"lastWorkAt,omitzero"`
	LastPollAt   time.Time `json:"lastPollAt,omitzero"`
	LastError    string    `json:"lastError,omitempty"`
	Polls        int64     `json:"polls"`
	Dispatched   int64     `json:"dispatched"`
	NextInterval string    `json:"nextInterval,omitempty"`
}

type Poller struct {
	cfg    Config
	src    WorkSource
	leases Leases
	dialer Dialer
	ids    IdentitySource
	done   <-chan struct{}
	ready  func() bool
	now    func() time.Time
	ll     *slog.Logger

	mu     sync.Mutex
	status Status
}

type Option func(*Poller)

func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithReadiness skips asking for work while ready reports false, so work
// is not claimed when it cannot be dialled.
func WithReadiness(ready func() bool) Option {
	return func(p *Poller) { p.ready = ready }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.ll = logger
		}
	}
}

// New builds a poller. done delivers call completions and may be nil.
func New(cfg Config, src WorkSource, leases Leases, dialer Dialer, ids IdentitySource, done <-chan struct{}, opts ...Option) *Poller {
	p := &Poller{
		cfg:    cfg,
		src:    src,
		leases: leases,
		dialer: dialer,
		ids:    ids,
		done:   done,
		ready:  func() bool { return true },
		now:    time.Now,
		ll:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ll = p.ll.With("component", "poller")
	return p
}

// Run polls until ctx is done. Errors from a single poll never end it.
func (p *Poller) Run(ctx context.Context) error {
	p.ll.Info("Starting work poller",
		slog.Duration("fastInterval", p.cfg.FastInterval),
		slog.Duration("slowInterval", p.cfg.SlowInterval))
	for {
		if ctx.Err() != nil {
			return nil
		}
		p.PollOnce(ctx)
		if !p.sleep(ctx, p.NextInterval()) {
			p.ll.Info("Work poller stopped")
			return nil
		}
	}
}

// sleep waits d, releasing the lease for every completion that arrives
// meanwhile. It returns false once ctx is done.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-p.done:
			p.complete()
		case <-t.C:
			return true
		}
	}
}

func (p *Poller) complete() {
	if err := p.leases.Release(); err != nil {
		p.ll.Error("Failed to release lease after call completion", slog.Any("error", err))
		return
	}
	p.ll.Info("Call complete, lease released")
}

// PollOnce performs one poll cycle and reports whether a call was
// dispatched.
func (p *Poller) PollOnce(ctx context.Context) bool {
	// A started iteration runs to the end: cancelling ctx only prevents the
	// next one. The HTTP client timeouts bound the request.
	ctx = context.WithoutCancel(ctx)

	polls.Add(ctx, 1)
	p.mu.Lock()
	p.status.Polls++
	p.status.LastPollAt = p.now()
	p.mu.Unlock()

	held, err := p.leases.IsHeld()
	if err != nil {
		p.fail("Failed to read lease, skipping this cycle", err)
		return false
	}
	if held {
		p.ll.Debug("Work in progress, skipping fetch")
		return false
	}

	if !p.ready() {
		p.ll.Debug("Dialer not ready, skipping fetch")
		return false
	}

	ids, err := p.ids()
	if err != nil {
		p.ll.Warn("Failed to load identities, polling without them", slog.Any("error", err))
		ids = workqueue.Identities{}
	}

	item, err := p.src.TakeWork(ctx, ids.SimCards())
	if err != nil {
		p.fail("Failed to take work", err)
		return false
	}
	if item == nil {
		p.ll.Debug("No work available")
		p.clearError()
		return false
	}

	l, ok, err := p.leases.TryAcquire(*item)
	if err != nil {
		p.fail("Failed to acquire lease", err)
		return false
	}
	if !ok {
		p.ll.Warn("Lease already held, dropping work item", slog.Any("item", item))
		return false
	}

	p.mu.Lock()
	p.status.LastWorkAt = p.now()
	p.mu.Unlock()

	req := workqueue.NewDialRequest(l.WorkID, *item, ids)
	ll := p.ll.With(slog.String("workId", l.WorkID), slog.String("artifactName", l.ArtifactName))
	ll.Info("Work received, placing call", slog.Int("simIndex", req.SimIndex), slog.Duration("duration", l.Duration()))

	if err := p.dialer.Dial(ctx, req); err != nil {
		dialFailures.Add(ctx, 1)
		p.fail("Failed to place call, releasing lease", err)
		if rerr := p.leases.Release(); rerr != nil {
			ll.Error("Failed to release lease", slog.Any("error", rerr))
		}
		return false
	}

	dispatched.Add(ctx, 1)
	p.mu.Lock()
	p.status.Dispatched++
	p.status.LastError = ""
	p.mu.Unlock()
	return true
}

// NextInterval is the fast interval while inside the window after the
// last work item, and the slow one otherwise. Leaving the window forgets
// the last work time.
func (p *Poller) NextInterval() time.Duration {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	d := p.cfg.SlowInterval
	if !p.status.LastWorkAt.IsZero() && now.Sub(p.status.LastWorkAt) < p.cfg.FastWindow {
		d = p.cfg.FastInterval
	} else {
		p.status.LastWorkAt = time.Time{}
	}
	p.status.NextInterval = d.String()
	return d
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) fail(msg string, err error) {
	p.ll.Error(msg, slog.Any("error", err))
	p.mu.Lock()
	p.status.LastError = err.Error()
	p.mu.Unlock()
}

func (p *Poller) clearError() {
	p.mu.Lock()
	p.status.LastError = ""
	p.mu.Unlock()
}
