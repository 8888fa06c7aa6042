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

// Package lease persists the single "work item in flight" claim of this
// worker. The lease is the only state shared between the poll loop and the
// call-lifecycle controller, so every operation is one atomic update of the
// backing store.
package lease

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardinalhq/callrunner/internal/idgen"
	"github.com/cardinalhq/callrunner/internal/kvstore"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

// Store keys. They are shared with the on-device tooling and must not change.
const (
	KeyInProgress   = "isWorkInProgress"
	KeyStartTime    = "workStartTime"
	KeyArtifactName = "lastFileName"
	KeyDurationMs   = "callDurationMs"
	KeyWorkID       = "workId"
)

const (
	DefaultStaleAfter = 3 * time.Minute
	DefaultDurationMs = int64(60_000)
)

// Lease is the persisted claim. ArtifactName, DurationMs and WorkID outlive
// a release so that post-call processing can still read them.
type Lease struct {
	InProgress   bool      `json:"inProgress"`
	StartedAt    time.Time `json:"startedAt,omitzero"`
	ArtifactName string    `json:"artifactName,omitempty"`
	DurationMs   int64     `json:"durationMs"`
	WorkID       string    `json:"workId,omitempty"`
}

// Duration is the end-call countdown for the leased work item.
func (l Lease) Duration() time.Duration {
	if l.DurationMs <= 0 {
		return time.Duration(DefaultDurationMs) * time.Millisecond
	}
	return time.Duration(l.DurationMs) * time.Millisecond
}

// Age is how long the lease has been held at now.
func (l Lease) Age(now time.Time) time.Duration {
	return now.Sub(l.StartedAt)
}

type Config struct {
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

func DefaultConfig() Config {
	return Config{StaleAfter: DefaultStaleAfter}
}

// Store implements the lease operations on top of a kvstore.Store.
type Store struct {
	kv         kvstore.Store
	staleAfter time.Duration
	now        func() time.Time
	newID      func() string
	ll         *slog.Logger
}

type Option func(*Store)

// WithStaleAfter overrides the staleness threshold. Non-positive values are ignored.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.ll = logger
		}
	}
}

func NewStore(kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		newID:      idgen.NewWorkID,
		ll:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ll = s.ll.With("component", "lease")
	return s
}

// TryAcquire claims the lease for item. It returns false without error
// when another lease is in progress and not yet stale.
func (s *Store) TryAcquire(item workqueue.WorkItem) (Lease, bool, error) {
	var (
		acquired Lease
		ok       bool
	)
	err := s.kv.Update(func(tx kvstore.Tx) error {
		now := s.now()
		if s.reconcile(tx, now) {
			return nil
		}
		acquired = Lease{
			InProgress:   true,
			StartedAt:    now,
			ArtifactName: item.ArtifactName,
			DurationMs:   item.CallDuration().Milliseconds(),
			WorkID:       s.newID(),
		}
		tx.Set(KeyInProgress, kvstore.FormatBool(true))
		tx.Set(KeyStartTime, kvstore.FormatInt64(now.UnixMilli()))
		tx.Set(KeyArtifactName, acquired.ArtifactName)
		tx.Set(KeyDurationMs, kvstore.FormatInt64(acquired.DurationMs))
		tx.Set(KeyWorkID, acquired.WorkID)
		ok = true
		return nil
	})
	if err != nil {
		return Lease{}, false, err
	}
	if ok {
		acquiredCounter.Add(context.Background(), 1)
		if acquired.Duration() >= s.staleAfter {
			s.ll.Warn("Call may outlive its lease; another item can be dialled before it ends",
				slog.String("workId", acquired.WorkID),
				slog.Duration("callDuration", acquired.Duration()),
				slog.Duration("staleAfter", s.staleAfter))
		}
	}
	return acquired, ok, nil
}

// Release clears the lease unconditionally.
func (s *Store) Release() error {
	return s.kv.Update(func(tx kvstore.Tx) error {
		clearLease(tx)
		return nil
	})
}

// IsHeld reports whether a lease is in progress, force-releasing it first
// if it has gone stale.
func (s *Store) IsHeld() (bool, error) {
	held := false
	err := s.kv.Update(func(tx kvstore.Tx) error {
		held = s.reconcile(tx, s.now())
		return nil
	})
	return held, err
}

// Current returns the persisted lease without reconciling staleness.
func (s *Store) Current() (Lease, error) {
	snap, err := s.kv.Snapshot()
	if err != nil {
		return Lease{}, err
	}
	return read(kvstore.MapReader(snap)), nil
}

// reconcile reports whether a live lease is held in tx, clearing a stale
// one. Must run inside an Update.
func (s *Store) reconcile(tx kvstore.Tx, now time.Time) bool {
	l := read(tx)
	if !l.InProgress {
		return false
	}
	age := l.Age(now)
	if age <= s.staleAfter {
		return true
	}
	s.ll.Warn("Work in progress flag is stale, clearing it",
		slog.Duration("age", age),
		slog.Duration("staleAfter", s.staleAfter),
		slog.String("artifactName", l.ArtifactName),
		slog.String("workID", l.WorkID))
	clearLease(tx)
	staleCounter.Add(context.Background(), 1)
	return false
}

func read(r kvstore.Reader) Lease {
	l := Lease{
		InProgress:   kvstore.Bool(r, KeyInProgress, false),
		ArtifactName: kvstore.String(r, KeyArtifactName, ""),
		DurationMs:   kvstore.Int64(r, KeyDurationMs, DefaultDurationMs),
		WorkID:       kvstore.String(r, KeyWorkID, ""),
	}
	if l.DurationMs <= 0 {
		l.DurationMs = DefaultDurationMs
	}
	// A flag without a start time keeps a zero StartedAt, whose age
	// saturates, so the next observation clears it.
	if _, ok := r.Get(KeyStartTime); ok {
		l.StartedAt = time.UnixMilli(kvstore.Int64(r, KeyStartTime, 0))
	}
	return l
}

func clearLease(tx kvstore.Tx) {
	tx.Delete(KeyInProgress, KeyStartTime)
}
