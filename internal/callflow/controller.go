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

// Package callflow follows the telephony state of the device through a
// call. Once connected it mutes the call, hangs up after the requested
// duration, and on hang-up hands the recording to the post-call pipeline
// before signalling that the call is complete.
package callflow

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cardinalhq/callrunner/internal/lease"
	"github.com/cardinalhq/callrunner/internal/logctx"
	"github.com/cardinalhq/callrunner/internal/uiagent"
)

type Config struct {
	MuteDelay     time.Duration `mapstructure:"mute_delay"`
	MuteLabels    []string      `mapstructure:"mute_labels"`
	EndCallLabels []string      `mapstructure:"end_call_labels"`
	// DumpTree logs the view hierarchy at debug level before every search.
	DumpTree bool `mapstructure:"dump_tree"`
}

func DefaultConfig() Config {
	return Config{
		MuteDelay:     3 * time.Second,
		MuteLabels:    slices.Clone(uiagent.DefaultMuteLabels),
		EndCallLabels: slices.Clone(uiagent.DefaultEndCallLabels),
		DumpTree:      true,
	}
}

type LeaseReader interface {
	Current() (lease.Lease, error)
}

type Activator interface {
	FindAndActivate(ctx context.Context, labels []string) bool
}

// PostCall runs after a connected call has ended.
type PostCall interface {
	Run(ctx context.Context, artifactName string) error
}

type Notifier interface {
	Notify() bool
}

type Controller struct {
	cfg     Config
	leases  LeaseReader
	ui      Activator
	post    PostCall
	done    Notifier
	history *History
	now     func() time.Time
	ll      *slog.Logger

	mu      sync.Mutex
	phase   State
	gen     uint64
	call    *Outcome
	mute    timerHandle
	endCall timerHandle

	wg sync.WaitGroup
}

// NewController wires the controller. history may be nil.
func NewController(cfg Config, leases LeaseReader, ui Activator, post PostCall, done Notifier, history *History, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:     cfg,
		leases:  leases,
		ui:      ui,
		post:    post,
		done:    done,
		history: history,
		now:     time.Now,
		ll:      logger.With("component", "callflow"),
		phase:   StateIdle,
	}
}

// Run feeds events to HandleState until ctx is done or events is closed.
func (c *Controller) Run(ctx context.Context, events <-chan State) error {
	defer c.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-events:
			if !ok {
				c.ll.Info("Telephony event stream closed")
				return nil
			}
			c.HandleState(ctx, s)
		}
	}
}

// Wait blocks until every started post-call pipeline has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Phase() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Active returns the call currently connected, if any.
func (c *Controller) Active() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.call == nil {
		return Outcome{}, false
	}
	return *c.call, true
}

func (c *Controller) HandleState(ctx context.Context, next State) {
	var l lease.Lease
	if next == StateOffhook {
		var err error
		if l, err = c.leases.Current(); err != nil {
			c.ll.Warn("Could not read lease, using defaults", slog.Any("error", err))
			l = lease.Lease{}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.phase
	if prev == next {
		return
	}
	c.phase = next
	c.ll.Debug("Telephony state changed", slog.String("from", prev.String()), slog.String("to", next.String()))

	switch {
	case next == StateOffhook && c.call == nil:
		c.connectLocked(ctx, l)
	case next == StateIdle && c.call != nil:
		c.endLocked(ctx)
	}
}

func (c *Controller) connectLocked(ctx context.Context, l lease.Lease) {
	c.gen++
	gen := c.gen
	c.call = &Outcome{WorkID: l.WorkID, ArtifactName: l.ArtifactName, ConnectedAt: c.now()}
	callsConnected.Add(ctx, 1)

	callCtx := logctx.WithLogger(ctx, c.ll)
	callCtx = logctx.WithCall(callCtx, l.WorkID, l.ArtifactName)
	logctx.FromContext(callCtx).Info("Call connected",
		slog.Duration("muteIn", c.cfg.MuteDelay),
		slog.Duration("hangUpIn", l.Duration()))

	c.mute.arm(c.cfg.MuteDelay, func() {
		c.fire(callCtx, gen, "mute", c.cfg.MuteLabels, func(o *Outcome) { o.Muted = true })
	})
	c.endCall.arm(l.Duration(), func() {
		c.fire(callCtx, gen, "end call", c.cfg.EndCallLabels, func(o *Outcome) { o.HungUp = true })
	})
}

// fire runs a timer's action if the call it was armed for is still up.
func (c *Controller) fire(ctx context.Context, gen uint64, action string, labels []string, mark func(*Outcome)) {
	c.mu.Lock()
	current := gen == c.gen && c.call != nil
	c.mu.Unlock()
	if !current {
		return
	}

	ll := logctx.FromContext(ctx).With(slog.String("action", action))
	if !c.ui.FindAndActivate(ctx, labels) {
		ll.Warn("Could not find a control to activate")
		return
	}
	ll.Info("Activated call control")

	c.mu.Lock()
	if gen == c.gen && c.call != nil {
		mark(c.call)
	}
	c.mu.Unlock()
}

func (c *Controller) endLocked(ctx context.Context) {
	c.mute.cancel()
	c.endCall.cancel()
	c.gen++

	var call Outcome
	if c.call != nil {
		call = *c.call
	}
	c.call = nil
	call.EndedAt = c.now()

	c.wg.Add(1)
	go c.finish(ctx, call)
}

// finish uploads the recording and then signals completion, whether or
// not the upload worked.
func (c *Controller) finish(ctx context.Context, call Outcome) {
	defer c.wg.Done()

	if l, err := c.leases.Current(); err != nil {
		c.ll.Warn("Could not read lease after call", slog.Any("error", err))
	} else {
		call.ArtifactName = l.ArtifactName
		if call.WorkID == "" {
			call.WorkID = l.WorkID
		}
	}

	ctx = logctx.WithCall(logctx.WithLogger(ctx, c.ll), call.WorkID, call.ArtifactName)
	ll := logctx.FromContext(ctx)
	ll.Info("Call ended, starting post-call upload")

	if err := c.post.Run(ctx, call.ArtifactName); err != nil {
		call.Error = err.Error()
		ll.Error("Post-call pipeline failed", slog.Any("error", err))
	} else {
		call.Uploaded = true
	}

	if c.history != nil {
		c.history.Record(call)
	}
	callsCompleted.Add(ctx, 1)
	c.done.Notify()
	ll.Info("Call complete", slog.Bool("uploaded", call.Uploaded))
}

func (c *Controller) stopTimers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mute.cancel()
	c.endCall.cancel()
	c.gen++
}
