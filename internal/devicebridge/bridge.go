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

// Package devicebridge hosts the loopback WebSocket endpoint the on-device
// companion connects to. The worker sends JSON-RPC requests over it to
// read the UI tree, click controls and place calls; the companion sends
// telephony state changes back as notifications.
package devicebridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cardinalhq/callrunner/internal/callflow"
)

const (
	protocolVersion = 1

	helloTimeout = 10 * time.Second
)

var ErrNotConnected = errors.New("device bridge is not connected")

type Config struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	Token        string        `mapstructure:"token"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	EventBuffer  int           `mapstructure:"event_buffer"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:17333",
		CallTimeout:  15 * time.Second,
		PingInterval: 30 * time.Second,
		EventBuffer:  16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.ListenAddr = strings.TrimSpace(c.ListenAddr)
	c.Token = strings.TrimSpace(c.Token)
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Bridge is the server side of the device connection. At most one
// companion is connected; a new one replaces the old.
type Bridge struct {
	cfg      Config
	events   chan callflow.State
	onChange func(connected bool)
	ll       *slog.Logger

	mu      sync.RWMutex
	ln      net.Listener
	httpSrv *http.Server
	addr    string
	conn    *websocket.Conn
	hello   helloMessage

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan callResult
	nextID    atomic.Uint64
}

type Option func(*Bridge)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.ll = logger
		}
	}
}

// OnConnectionChange registers fn to be told when a companion connects or
// goes away.
func OnConnectionChange(fn func(connected bool)) Option {
	return func(b *Bridge) { b.onChange = fn }
}

func New(cfg Config, opts ...Option) *Bridge {
	cfg = cfg.withDefaults()
	b := &Bridge{
		cfg:      cfg,
		events:   make(chan callflow.State, cfg.EventBuffer),
		onChange: func(bool) {},
		ll:       slog.Default(),
		pending:  make(map[string]chan callResult),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ll = b.ll.With("component", "devicebridge")
	return b
}

// Events delivers telephony states reported by the companion.
func (b *Bridge) Events() <-chan callflow.State {
	return b.events
}

func (b *Bridge) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.addr
}

func (b *Bridge) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conn != nil
}

// Client reports what the connected companion announced in its hello.
func (b *Bridge) Client() (name string, version int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hello.Client, b.hello.Version
}

// Start listens on the configured loopback address and serves in the
// background. Calling it again is a no-op.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.ln != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	if err := checkLoopback(b.cfg.ListenAddr); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", b.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", b.cfg.ListenAddr, err)
	}
	addr := ln.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	b.mu.Lock()
	b.ln = ln
	b.httpSrv = httpSrv
	b.addr = addr
	b.mu.Unlock()

	b.ll.Info("Device bridge listening", slog.String("addr", addr))
	go func() {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.ll.Error("Device bridge server error", slog.Any("error", err))
		}
	}()
	return nil
}

// Run starts the bridge and closes it when ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.Close(shutdownCtx)
}

func (b *Bridge) Close(ctx context.Context) error {
	b.mu.Lock()
	srv := b.httpSrv
	conn := b.conn
	b.httpSrv = nil
	b.conn = nil
	b.ln = nil
	b.addr = ""
	b.hello = helloMessage{}
	if conn != nil {
		b.failAllPendingLocked(ErrNotConnected)
	}
	b.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
		b.onChange(false)
	}
	if srv == nil {
		return nil
	}
	b.ll.Info("Device bridge stopped")
	return srv.Shutdown(ctx)
}

// Call sends one JSON-RPC request to the companion and waits for its
// answer, bounded by the configured call timeout.
func (b *Bridge) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, errors.New("method is required")
	}

	b.mu.RLock()
	conn := b.conn
	b.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	id := strconv.FormatUint(b.nextID.Add(1), 10)
	ch := make(chan callResult, 1)

	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := b.writeJSON(conn, req); err != nil {
		b.dropPending(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	select {
	case <-callCtx.Done():
		b.dropPending(id)
		rpcFailures.Add(ctx, 1)
		return nil, fmt.Errorf("%s: %w", method, callCtx.Err())
	case res := <-ch:
		if res.Err != nil {
			rpcFailures.Add(ctx, 1)
			return nil, fmt.Errorf("%s: %w", method, res.Err)
		}
		return res.Result, nil
	}
}

func (b *Bridge) dropPending(id string) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}

func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.ll.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}
	if err := b.accept(conn); err != nil {
		b.ll.Warn("Rejected device connection", slog.String("remote", r.RemoteAddr), slog.Any("error", err))
		_ = conn.Close()
	}
}

func (b *Bridge) accept(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	var hello helloMessage
	if err := json.Unmarshal(data, &hello); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(hello.Type), "hello") {
		return fmt.Errorf("expected hello, got %q", hello.Type)
	}
	if b.cfg.Token != "" && hello.Token != b.cfg.Token {
		return errors.New("unauthorized")
	}

	_ = conn.SetReadDeadline(time.Time{})
	if err := b.writeJSON(conn, welcomeMessage{Type: "welcome", Version: protocolVersion}); err != nil {
		return err
	}

	b.mu.Lock()
	if b.conn != nil {
		b.ll.Info("Replacing existing device connection")
		_ = b.conn.Close()
		b.failAllPendingLocked(ErrNotConnected)
	}
	b.conn = conn
	b.hello = hello
	b.mu.Unlock()

	connections.Add(context.Background(), 1)
	b.ll.Info("Device connected", slog.String("client", hello.Client), slog.Int("version", hello.Version))
	b.onChange(true)

	go b.readLoop(conn)
	return nil
}

func (b *Bridge) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		b.handleMessage(data)
	}

	b.mu.Lock()
	current := b.conn == conn
	if current {
		b.conn = nil
		b.hello = helloMessage{}
		b.failAllPendingLocked(ErrNotConnected)
	}
	b.mu.Unlock()
	_ = conn.Close()

	if current {
		b.ll.Warn("Device disconnected")
		b.onChange(false)
	}
}

func (b *Bridge) handleMessage(data []byte) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.ll.Debug("Ignoring malformed message", slog.Any("error", err))
		return
	}
	if strings.TrimSpace(msg.JSONRPC) != "2.0" {
		return
	}
	if msg.Method != "" {
		b.handleNotification(msg)
		return
	}

	id := rpcIDToString(msg.ID)
	if id == "" {
		return
	}
	out := callResult{Result: msg.Result}
	if msg.Error != nil {
		out.Err = fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)
	}

	b.pendingMu.Lock()
	ch := b.pending[id]
	delete(b.pending, id)
	b.pendingMu.Unlock()
	if ch != nil {
		ch <- out
	}
}

func (b *Bridge) handleNotification(msg rpcMessage) {
	if msg.Method != methodPhoneState {
		b.ll.Debug("Ignoring unknown notification", slog.String("method", msg.Method))
		return
	}
	var p phoneStateParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		b.ll.Warn("Malformed phone state notification", slog.Any("error", err))
		return
	}
	state, err := callflow.ParseState(p.State)
	if err != nil {
		b.ll.Warn("Ignoring phone state", slog.Any("error", err))
		return
	}

	select {
	case b.events <- state:
		stateEvents.Add(context.Background(), 1)
	default:
		droppedEvents.Add(context.Background(), 1)
		b.ll.Warn("Telephony event buffer full, dropping state", slog.String("state", state.String()))
	}
}

func (b *Bridge) failAllPendingLocked(err error) {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	for id, ch := range b.pending {
		delete(b.pending, id)
		if ch != nil {
			ch <- callResult{Err: err}
		}
	}
}

func (b *Bridge) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.WriteJSON(v)
}

func checkLoopback(listenAddr string) error {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return fmt.Errorf("invalid bridge listen address %q: %w", listenAddr, err)
	}
	if host == "localhost" {
		return nil
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("bridge listen address must be loopback, got %q", listenAddr)
	}
	return nil
}
