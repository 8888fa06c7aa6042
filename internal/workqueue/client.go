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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cardinalhq/callrunner/internal/helpers"
)

const (
	TakeWorkPath = "/api/take-work"

	maxResponseSize = 1 << 20
)

type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://qintel-backend.onrender.com",
		ConnectTimeout: 20 * time.Second,
		RequestTimeout: 20 * time.Second,
	}
}

// Client asks the remote queue for work.
type Client struct {
	http    *http.Client
	baseURL string
	ll      *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    helpers.NewHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ll:      logger.With("component", "workqueue"),
	}
}

// TakeWork posts the available sending identities and returns the work
// item the queue handed out, or nil when there is no work.
func (c *Client) TakeWork(ctx context.Context, identities []string) (*WorkItem, error) {
	if identities == nil {
		identities = []string{}
	}
	body, err := json.Marshal(takeWorkRequest{SimCards: identities})
	if err != nil {
		return nil, fmt.Errorf("encode take-work request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TakeWorkPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.ll.Debug("Checking for work", slog.Any("simCards", identities))

	resp, err := c.http.Do(req)
	if err != nil {
		recordTakeWorkError("http_error")
		return nil, fmt.Errorf("take work: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		recordTakeWorkError("http_status")
		return nil, fmt.Errorf("take work returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		recordTakeWorkError("read_error")
		return nil, fmt.Errorf("read take-work response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}

	var item WorkItem
	if err := json.Unmarshal(data, &item); err != nil {
		recordTakeWorkError("decode_error")
		return nil, fmt.Errorf("decode take-work response: %w", err)
	}
	if !item.HasWork() {
		return nil, nil
	}
	return &item, nil
}
