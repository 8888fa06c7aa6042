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

// Package uploader hands a call recording to the remote side and clears
// the recordings directory once the remote side has confirmed receipt.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/cardinalhq/callrunner/internal/artifact"
	"github.com/cardinalhq/callrunner/internal/helpers"
)

const (
	PostRecordingPath = "/api/post-recording"

	recordingContentType = "audio/mpeg"
)

var ErrRetriesExhausted = errors.New("upload failed after all attempts")

type Config struct {
	BaseURL        string        `mapstructure:"base_url"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// StorageRoot is the device storage root the recording directories
	// are resolved against.
	StorageRoot string          `mapstructure:"storage_root"`
	Artifacts   artifact.Config `mapstructure:"artifacts"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        "https://qintel-backend.onrender.com",
		MaxAttempts:    3,
		RetryDelay:     5 * time.Second,
		ConnectTimeout: 20 * time.Second,
		RequestTimeout: 20 * time.Second,
		StorageRoot:    "/sdcard",
		Artifacts:      artifact.DefaultConfig(),
	}
}

// Result describes a finished upload.
type Result struct {
	Attempts   int
	StatusCode int
	Cleanup    artifact.CleanupResult
}

// BackOffFactory builds the wait policy for one upload. The policy decides
// both the delay between attempts and when to stop.
type BackOffFactory func() backoff.BackOff

// FixedAttempts allows maxAttempts tries with delay between them and no
// wait after the last one.
func FixedAttempts(maxAttempts int, delay time.Duration) BackOffFactory {
	retries := uint64(max(maxAttempts, 1) - 1)
	delay = max(delay, 0)
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries)
	}
}

// Uploader posts recordings with bounded, sequential retries.
type Uploader struct {
	http       *http.Client
	endpoint   string
	newBackOff BackOffFactory
	ll         *slog.Logger
}

type Option func(*Uploader)

func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.http = c }
}

// WithBackOff replaces the retry policy built from Config.
func WithBackOff(f BackOffFactory) Option {
	return func(u *Uploader) {
		if f != nil {
			u.newBackOff = f
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.ll = logger
		}
	}
}

func New(cfg Config, opts ...Option) *Uploader {
	u := &Uploader{
		http:       helpers.NewHTTPClient(cfg.ConnectTimeout, cfg.RequestTimeout),
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + PostRecordingPath,
		newBackOff: FixedAttempts(cfg.MaxAttempts, cfg.RetryDelay),
		ll:         slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.ll = u.ll.With("component", "uploader")
	return u
}

// Upload posts the file at path under artifactName. Only an explicit 200
// counts as success; anything else, including transport errors, uses up
// an attempt. After a success every plain file in the recording's
// directory is deleted.
func (u *Uploader) Upload(ctx context.Context, path, artifactName string) (Result, error) {
	ll := u.ll.With(slog.String("artifactName", artifactName), slog.String("file", filepath.Base(path)))

	var res Result
	attempt := func() error {
		res.Attempts++
		ll.Info("Uploading recording", slog.Int("attempt", res.Attempts))

		status, err := u.post(ctx, path, artifactName)
		res.StatusCode = status
		uploadAttempts.Add(ctx, 1)
		if err != nil {
			ll.Error("Upload attempt failed", slog.Int("attempt", res.Attempts), slog.Any("error", err))
			return err
		}
		if status != http.StatusOK {
			ll.Error("Upload attempt rejected", slog.Int("attempt", res.Attempts), slog.Int("status", status))
			return fmt.Errorf("post recording returned status %d", status)
		}
		return nil
	}
	wait := func(_ error, d time.Duration) {
		ll.Debug("Waiting before next upload attempt", slog.Duration("delay", d))
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(u.newBackOff(), ctx), wait)
	if err == nil {
		ll.Info("Uploaded recording", slog.Int("attempt", res.Attempts))
		res.Cleanup = u.cleanup(filepath.Dir(path), ll)
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, ctxErr
	}

	uploadFailures.Add(ctx, 1)
	ll.Error("Failed to upload recording", slog.Int("attempts", res.Attempts), slog.Any("error", err))
	return res, fmt.Errorf("%w (%d attempts): %s: %w", ErrRetriesExhausted, res.Attempts, artifactName, err)
}

func (u *Uploader) post(ctx context.Context, path, artifactName string) (int, error) {
	body, contentType, err := buildForm(path, artifactName)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post recording: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}

// buildForm reads the file fresh on every attempt so a recorder that was
// still flushing gets another chance.
func buildForm(path, artifactName string) (io.Reader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read recording: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("fileName", artifactName); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", recordingContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (u *Uploader) cleanup(dir string, ll *slog.Logger) artifact.CleanupResult {
	res, err := artifact.ClearDirectory(dir)
	if err != nil {
		ll.Warn("Some recordings could not be deleted (continuing)",
			slog.String("dir", dir),
			slog.Int("deleted", res.Deleted),
			slog.Int("failed", res.Failed),
			slog.Any("error", err))
		return res
	}
	ll.Info("Cleared recording directory", slog.String("dir", dir), slog.Int("deleted", res.Deleted))
	return res
}
