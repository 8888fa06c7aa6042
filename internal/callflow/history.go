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

package callflow

import (
	"context"
	"sort"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	DefaultHistoryTTL      = time.Hour
	DefaultHistoryCapacity = 100
)

// Outcome is what happened during one connected call.
type Outcome struct {
	WorkID       string    `json:"workId"`
	ArtifactName string    `json:"artifactName"`
	ConnectedAt  time.Time `json:"connectedAt"`
	EndedAt      time.Time `json:"endedAt,omitzero"`
	Muted        bool      `json:"muted"`
	HungUp       bool      `json:"hungUp"`
	Uploaded     bool      `json:"uploaded"`
	Error        string    `json:"error,omitempty"`
}

// History keeps recent call outcomes for a while.
type History struct {
	cache *ttlcache.Cache[string, Outcome]
}

func NewHistory(ttl time.Duration, capacity uint64) *History {
	return &History{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Outcome](ttl),
			ttlcache.WithCapacity[string, Outcome](capacity),
		),
	}
}

// Record stores o under its work ID, or its connect time for calls that
// were not placed by the worker.
func (h *History) Record(o Outcome) {
	key := o.WorkID
	if key == "" {
		key = o.ConnectedAt.Format(time.RFC3339Nano)
	}
	h.cache.Set(key, o, ttlcache.DefaultTTL)
}

// Recent returns the unexpired outcomes, newest connection first.
func (h *History) Recent() []Outcome {
	items := h.cache.Items()
	out := make([]Outcome, 0, len(items))
	for _, item := range items {
		out = append(out, item.Value())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.After(out[j].ConnectedAt)
	})
	return out
}

// Run expires old outcomes in the background until ctx is done.
func (h *History) Run(ctx context.Context) error {
	go h.cache.Start()
	<-ctx.Done()
	h.cache.Stop()
	return nil
}
