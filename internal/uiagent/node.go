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

// Package uiagent finds on-screen controls by their visible label and
// activates them.
package uiagent

import (
	"context"
	"errors"
)

// ErrNoActiveWindow is returned by a TreeSource when nothing is in the
// foreground.
var ErrNoActiveWindow = errors.New("no active window")

// Node is one element of the foreground window's view hierarchy.
type Node interface {
	Text() string
	Description() string
	ViewID() string
	Clickable() bool
	Children() []Node
	Click(ctx context.Context) error
}

// TreeSource hands out the root of the current foreground window.
type TreeSource interface {
	ActiveRoot(ctx context.Context) (Node, error)
}

var (
	DefaultMuteLabels    = []string{"Mute", "Unmute"}
	DefaultEndCallLabels = []string{"End call", "Hang up", "End"}
)
