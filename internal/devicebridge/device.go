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

package devicebridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/cardinalhq/callrunner/internal/uiagent"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

// Ping checks that the companion answers.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.ack(ctx, methodPing, nil)
}

// Dial asks the companion to place the call.
func (b *Bridge) Dial(ctx context.Context, req workqueue.DialRequest) error {
	return b.ack(ctx, methodCallPlace, req)
}

// ActiveRoot fetches the foreground window's view hierarchy.
func (b *Bridge) ActiveRoot(ctx context.Context) (uiagent.Node, error) {
	raw, err := b.Call(ctx, methodUITree, nil)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, uiagent.ErrNoActiveWindow
	}
	var root treeNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", methodUITree, err)
	}
	return &remoteNode{b: b, n: &root}, nil
}

func (b *Bridge) ack(ctx context.Context, method string, params any) error {
	raw, err := b.Call(ctx, method, params)
	if err != nil {
		return err
	}
	var res ackResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	if !res.OK {
		if res.Error != "" {
			return fmt.Errorf("%s rejected: %s", method, res.Error)
		}
		return fmt.Errorf("%s rejected", method)
	}
	return nil
}

type treeNode struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	Description string      `json:"description"`
	ViewID      string      `json:"viewId"`
	Clickable   bool        `json:"clickable"`
	Children    []*treeNode `json:"children"`
}

type clickParams struct {
	ID string `json:"id"`
}

// remoteNode is a snapshot of one view. Clicking it goes back to the
// device, which may report the node as gone.
type remoteNode struct {
	b *Bridge
	n *treeNode
}

var _ uiagent.Node = (*remoteNode)(nil)

func (r *remoteNode) Text() string        { return r.n.Text }
func (r *remoteNode) Description() string { return r.n.Description }
func (r *remoteNode) ViewID() string      { return r.n.ViewID }
func (r *remoteNode) Clickable() bool     { return r.n.Clickable }

func (r *remoteNode) Children() []uiagent.Node {
	out := make([]uiagent.Node, 0, len(r.n.Children))
	for _, c := range r.n.Children {
		if c != nil {
			out = append(out, &remoteNode{b: r.b, n: c})
		}
	}
	return out
}

func (r *remoteNode) Click(ctx context.Context) error {
	return r.b.ack(ctx, methodUIClick, clickParams{ID: r.n.ID})
}
