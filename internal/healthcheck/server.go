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

// Package healthcheck serves the worker's liveness, readiness and status
// endpoints.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

type Response struct {
	Healthy    bool            `json:"healthy"`
	Status     string          `json:"status,omitempty"`
	Conditions map[string]bool `json:"conditions,omitempty"`
}

// StatusFunc produces the JSON body of /statusz.
type StatusFunc func(ctx context.Context) (any, error)

type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func DefaultConfig() Config {
	return Config{Port: 8090}
}

// WithEnvOverride applies HEALTH_CHECK_PORT when it holds a valid port.
func (c Config) WithEnvOverride() Config {
	if portStr := os.Getenv("HEALTH_CHECK_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			c.Port = p
		}
	}
	return c
}

func (c Config) Addr() string {
	port := c.Port
	if port == 0 {
		port = DefaultConfig().Port
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

type Server struct {
	addr   string
	status atomic.Int32
	ready  atomic.Bool

	mu         sync.RWMutex
	conditions map[string]bool
	statusFn   StatusFunc

	server *http.Server
	ll     *slog.Logger
}

func NewServer(cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:       cfg.Addr(),
		conditions: map[string]bool{},
		ll:         logger.With("component", "healthcheck"),
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	s.ll.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	s.ll.Debug("Ready status updated", slog.Bool("ready", ready))
}

// SetReadyCondition records a named condition that must hold, along with
// SetReady(true), for /readyz to pass.
func (s *Server) SetReadyCondition(name string, ready bool) {
	s.mu.Lock()
	s.conditions[name] = ready
	s.mu.Unlock()
	s.ll.Debug("Ready condition updated", slog.String("condition", name), slog.Bool("ready", ready))
}

func (s *Server) ClearReadyCondition(name string) {
	s.mu.Lock()
	delete(s.conditions, name)
	s.mu.Unlock()
}

func (s *Server) SetStatusFunc(fn StatusFunc) {
	s.mu.Lock()
	s.statusFn = fn
	s.mu.Unlock()
}

func (s *Server) IsReady() bool {
	ready, _ := s.readiness()
	return ready
}

func (s *Server) readiness() (bool, map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ready := s.ready.Load()
	conds := make(map[string]bool, len(s.conditions))
	for name, ok := range s.conditions {
		conds[name] = ok
		ready = ready && ok
	}
	return ready, conds
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.HandleFunc("/livez", s.livezHandler)
	mux.HandleFunc("/statusz", s.statuszHandler)
	return mux
}

// Start serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.SetStatus(StatusStarting)
	s.ll.Info("Starting health check server", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.ll.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.ll.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	s.writeJSON(w, status == StatusHealthy, Response{Healthy: status == StatusHealthy, Status: status.String()})
}

func (s *Server) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	ready, conds := s.readiness()
	s.writeJSON(w, ready, Response{Healthy: ready, Conditions: conds})
}

func (s *Server) livezHandler(w http.ResponseWriter, _ *http.Request) {
	status := s.GetStatus()
	alive := status != StatusUnhealthy
	s.writeJSON(w, alive, Response{Healthy: alive, Status: status.String()})
}

func (s *Server) statuszHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	fn := s.statusFn
	s.mu.RUnlock()
	if fn == nil {
		http.Error(w, "status not available", http.StatusNotFound)
		return
	}
	body, err := fn(r.Context())
	if err != nil {
		s.ll.Error("Failed to collect status", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, true, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, ok bool, body any) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.ll.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
