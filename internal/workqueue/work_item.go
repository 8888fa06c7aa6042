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

package workqueue

import (
	"log/slog"
	"strings"
	"time"
)

// DefaultDurationSeconds is used when the queue does not say how long a
// call should be kept up.
const DefaultDurationSeconds = 60

// WorkItem is a single unit of work handed out by the remote queue.
// The JSON names are the queue's wire names, misspelling included.
type WorkItem struct {
	TargetSequence  string `json:"callSequance,omitempty"`
	ArtifactName    string `json:"fileName,omitempty"`
	DurationSeconds int    `json:"recordingDuration,omitempty"`
	OriginIdentity  string `json:"simCardName,omitempty"`
}

// HasWork reports whether the queue actually handed out work. Both the
// dial sequence and the artifact name are required.
func (w WorkItem) HasWork() bool {
	return strings.TrimSpace(w.TargetSequence) != "" && strings.TrimSpace(w.ArtifactName) != ""
}

// CallDuration is how long the call is kept up before it is hung up.
func (w WorkItem) CallDuration() time.Duration {
	secs := w.DurationSeconds
	if secs <= 0 {
		secs = DefaultDurationSeconds
	}
	return time.Duration(secs) * time.Second
}

func (w WorkItem) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("targetSequence", w.TargetSequence),
		slog.String("artifactName", w.ArtifactName),
		slog.Int("durationSeconds", w.DurationSeconds),
		slog.String("originIdentity", w.OriginIdentity),
	)
}

// takeWorkRequest is the body of a take-work poll.
type takeWorkRequest struct {
	SimCards []string `json:"simCards"`
}
