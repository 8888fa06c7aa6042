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
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/callrunner/internal/callflow"
	"github.com/cardinalhq/callrunner/internal/uiagent"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

type handlerFunc func(params json.RawMessage) (any, *rpcError)

// companion plays the on-device side of the protocol.
type companion struct {
	t        *testing.T
	conn     *websocket.Conn
	writeMu  sync.Mutex
	handlers map[string]handlerFunc
	closed   chan struct{}
}

type inbound struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func startBridge(t *testing.T, cfg Config, opts ...Option) *Bridge {
	t.Helper()
	cfg.ListenAddr = "127.0.0.1:0"
	b := New(cfg, opts...)
	require.NoError(t, b.Start())
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func dial(t *testing.T, b *Bridge, token string, handlers map[string]handlerFunc) *companion {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(helloMessage{Type: "hello", Token: token, Client: "test-companion", Version: 1}))
	var welcome welcomeMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "welcome", welcome.Type)

	c := &companion{t: t, conn: conn, handlers: handlers, closed: make(chan struct{})}
	go c.serve()
	require.Eventually(t, b.Connected, time.Second, 5*time.Millisecond)
	return c
}

func (c *companion) serve() {
	defer close(c.closed)
	for {
		var req inbound
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		h, ok := c.handlers[req.Method]
		if !ok {
			c.reply(req.ID, nil, &rpcError{Code: -32601, Message: "method not found"})
			continue
		}
		res, rerr := h(req.Params)
		if res == nil && rerr == nil {
			continue
		}
		c.reply(req.ID, res, rerr)
	}
}

func (c *companion) reply(id string, result any, rerr *rpcError) {
	msg := map[string]any{"jsonrpc": "2.0", "id": id}
	if rerr != nil {
		msg["error"] = rerr
	} else {
		msg["result"] = result
	}
	c.send(msg)
}

func (c *companion) send(v any) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteJSON(v)
}

func (c *companion) notifyState(state string) {
	c.send(map[string]any{"jsonrpc": "2.0", "method": "phone.state", "params": map[string]string{"state": state}})
}

func ok(json.RawMessage) (any, *rpcError) { return map[string]bool{"ok": true}, nil }

func TestBridge_RejectsNonLoopback(t *testing.T) {
	assert.Error(t, New(Config{ListenAddr: "0.0.0.0:17333"}).Start())
	assert.Error(t, New(Config{ListenAddr: ":17333"}).Start())
	assert.Error(t, New(Config{ListenAddr: "not-an-addr"}).Start())
	assert.NoError(t, checkLoopback("localhost:1"))
	assert.NoError(t, checkLoopback("[::1]:1"))
}

func TestBridge_NotConnected(t *testing.T) {
	b := startBridge(t, Config{})
	assert.False(t, b.Connected())
	assert.ErrorIs(t, b.Ping(t.Context()), ErrNotConnected)
	_, err := b.ActiveRoot(t.Context())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestBridge_TokenMismatchRejected(t *testing.T) {
	b := startBridge(t, Config{Token: "secret"})
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+b.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.WriteJSON(helloMessage{Type: "hello", Token: "wrong"}))
	var welcome welcomeMessage
	assert.Error(t, conn.ReadJSON(&welcome))
	assert.False(t, b.Connected())
}

func TestBridge_PingAndConnectionCallbacks(t *testing.T) {
	var changes []bool
	var mu sync.Mutex
	b := startBridge(t, Config{Token: "secret"}, OnConnectionChange(func(c bool) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	}))

	c := dial(t, b, "secret", map[string]handlerFunc{methodPing: ok})
	require.NoError(t, b.Ping(t.Context()))
	name, version := b.Client()
	assert.Equal(t, "test-companion", name)
	assert.Equal(t, 1, version)

	_ = c.conn.Close()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(changes) == 2
	}, time.Second, 5*time.Millisecond)
	assert.False(t, b.Connected())
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, changes)
}

func TestBridge_Dial(t *testing.T) {
	b := startBridge(t, Config{})
	var got workqueue.DialRequest
	dial(t, b, "", map[string]handlerFunc{
		methodCallPlace: func(p json.RawMessage) (any, *rpcError) {
			assert.NoError(t, json.Unmarshal(p, &got))
			return map[string]bool{"ok": true}, nil
		},
	})

	req := workqueue.DialRequest{WorkID: "w-1", Number: "*1#", URI: "tel:*1%23", SimIndex: 1}
	require.NoError(t, b.Dial(t.Context(), req))
	assert.Equal(t, req, got)
}

func TestBridge_DialRejected(t *testing.T) {
	b := startBridge(t, Config{})
	dial(t, b, "", map[string]handlerFunc{
		methodCallPlace: func(json.RawMessage) (any, *rpcError) {
			return map[string]any{"ok": false, "error": "no SIM"}, nil
		},
	})

	err := b.Dial(t.Context(), workqueue.DialRequest{Number: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SIM")
}

func TestBridge_RPCError(t *testing.T) {
	b := startBridge(t, Config{})
	dial(t, b, "", nil)

	err := b.Ping(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestBridge_CallTimeout(t *testing.T) {
	b := startBridge(t, Config{CallTimeout: 30 * time.Millisecond})
	dial(t, b, "", map[string]handlerFunc{
		methodPing: func(json.RawMessage) (any, *rpcError) { return nil, nil },
	})

	err := b.Ping(t.Context())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBridge_UITreeAndClick(t *testing.T) {
	b := startBridge(t, Config{})
	var clicked atomic.Value
	dial(t, b, "", map[string]handlerFunc{
		methodUITree: func(json.RawMessage) (any, *rpcError) {
			return treeNode{ID: "0", Children: []*treeNode{
				{ID: "1", Text: "Speaker", Clickable: true},
				{ID: "2", Description: "Unmute", ViewID: "com.android.dialer:id/mute", Clickable: true},
			}}, nil
		},
		methodUIClick: func(p json.RawMessage) (any, *rpcError) {
			var cp clickParams
			assert.NoError(t, json.Unmarshal(p, &cp))
			clicked.Store(cp.ID)
			return map[string]bool{"ok": true}, nil
		},
	})

	agent := uiagent.NewAgent(b, true, nil)
	assert.True(t, agent.FindAndActivate(t.Context(), uiagent.DefaultMuteLabels))
	assert.Equal(t, "2", clicked.Load())
}

func TestBridge_UITreeNoWindow(t *testing.T) {
	b := startBridge(t, Config{})
	dial(t, b, "", map[string]handlerFunc{
		methodUITree: func(json.RawMessage) (any, *rpcError) { return json.RawMessage("null"), nil },
	})

	_, err := b.ActiveRoot(t.Context())
	assert.ErrorIs(t, err, uiagent.ErrNoActiveWindow)
}

func TestBridge_PhoneStateEvents(t *testing.T) {
	b := startBridge(t, Config{})
	c := dial(t, b, "", nil)

	c.notifyState("RINGING")
	c.notifyState("dialing")
	c.notifyState("connected")
	c.send(map[string]any{"jsonrpc": "2.0", "method": "battery.level", "params": map[string]int{"level": 4}})
	c.notifyState("idle")

	var got []callflow.State
	timeout := time.After(time.Second)
	for len(got) < 3 {
		select {
		case s := <-b.Events():
			got = append(got, s)
		case <-timeout:
			t.Fatalf("only received %v", got)
		}
	}
	assert.Equal(t, []callflow.State{callflow.StateRinging, callflow.StateOffhook, callflow.StateIdle}, got)
}

func TestBridge_EventsDroppedWhenFull(t *testing.T) {
	b := startBridge(t, Config{EventBuffer: 1})
	b.handleMessage([]byte(`{"jsonrpc":"2.0","method":"phone.state","params":{"state":"ringing"}}`))
	b.handleMessage([]byte(`{"jsonrpc":"2.0","method":"phone.state","params":{"state":"offhook"}}`))

	assert.Equal(t, callflow.StateRinging, <-b.Events())
	select {
	case s := <-b.Events():
		t.Fatalf("unexpected event %v", s)
	default:
	}
}

func TestBridge_NewConnectionReplacesOld(t *testing.T) {
	b := startBridge(t, Config{})
	first := dial(t, b, "", nil)
	dial(t, b, "", map[string]handlerFunc{methodPing: ok})

	select {
	case <-first.closed:
	case <-time.After(time.Second):
		t.Fatal("first connection was not closed")
	}
	assert.NoError(t, b.Ping(t.Context()), "requests go to the newest connection")
}

func TestRpcIDToString(t *testing.T) {
	assert.Equal(t, "7", rpcIDToString(float64(7)))
	assert.Equal(t, "7", rpcIDToString(" 7 "))
	assert.Equal(t, "", rpcIDToString(nil))
	assert.Equal(t, "1.5", rpcIDToString(1.5))
}
