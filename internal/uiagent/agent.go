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

package uiagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cardinalhq/callrunner/internal/logctx"
)

// FindAndActivate clicks the first clickable node matching the highest
// priority label that has one. A node matches when its text or
// description equals the label, ignoring case and surrounding space.
func FindAndActivate(ctx context.Context, root Node, labels []string) bool {
	ll := logctx.FromContext(ctx)
	if root == nil {
		ll.Warn("No root node to search", slog.Any("labels", labels))
		return false
	}

	for _, label := range labels {
		for _, n := range findByLabel(root, label) {
			if !n.Clickable() {
				continue
			}
			if err := n.Click(ctx); err != nil {
				ll.Warn("Click failed, trying next match",
					slog.String("label", label),
					slog.String("viewId", n.ViewID()),
					slog.Any("error", err))
				continue
			}
			ll.Info("Activated control", slog.String("label", label), slog.String("viewId", n.ViewID()))
			activations.Add(ctx, 1)
			return true
		}
	}

	ll.Warn("No clickable control found", slog.Any("labels", labels))
	misses.Add(ctx, 1)
	return false
}

func findByLabel(root Node, label string) []Node {
	want := strings.TrimSpace(label)
	if want == "" {
		return nil
	}
	var out []Node
	walk(root, 0, func(n Node, _ int) {
		if matches(n.Text(), want) || matches(n.Description(), want) {
			out = append(out, n)
		}
	})
	return out
}

func matches(s, label string) bool {
	return strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(label))
}

func walk(n Node, depth int, fn func(Node, int)) {
	if n == nil {
		return
	}
	fn(n, depth)
	for _, c := range n.Children() {
		walk(c, depth+1, fn)
	}
}

// Agent searches whatever window is in front when it is asked.
type Agent struct {
	source   TreeSource
	dumpTree bool
	ll       *slog.Logger
}

func NewAgent(source TreeSource, dumpTree bool, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{source: source, dumpTree: dumpTree, ll: logger.With("component", "uiagent")}
}

func (a *Agent) FindAndActivate(ctx context.Context, labels []string) bool {
	ll := a.ll.With(slog.Any("labels", labels))
	root, err := a.source.ActiveRoot(ctx)
	if err != nil {
		ll.Warn("Could not read the active window", slog.Any("error", err))
		misses.Add(ctx, 1)
		return false
	}
	if a.dumpTree {
		ll.Debug("View hierarchy", slog.String("tree", DumpTree(root)))
	}
	return FindAndActivate(logctx.WithLogger(ctx, ll), root, labels)
}

// DumpTree renders the hierarchy one node per line, indented by depth.
func DumpTree(root Node) string {
	var b strings.Builder
	walk(root, 0, func(n Node, depth int) {
		fmt.Fprintf(&b, "%s[text=%q desc=%q id=%q clickable=%t]\n",
			strings.Repeat("  ", depth), n.Text(), n.Description(), n.ViewID(), n.Clickable())
	})
	return b.String()
}
