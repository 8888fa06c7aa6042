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

package uploader

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedWaits wraps a retry policy, keeps the waits it asks for and
// lets the retry continue at once.
type recordedWaits struct {
	delays []time.Duration
	onWait func()
}

func (r *recordedWaits) wrap(cfg Config) Option {
	inner := FixedAttempts(cfg.MaxAttempts, cfg.RetryDelay)
	return WithBackOff(func() backoff.BackOff {
		return &recordingBackOff{inner: inner(), rec: r}
	})
}

type recordingBackOff struct {
	inner backoff.BackOff
	rec   *recordedWaits
}

func (b *recordingBackOff) Reset() { b.inner.Reset() }

func (b *recordingBackOff) NextBackOff() time.Duration {
	d := b.inner.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	b.rec.delays = append(b.rec.delays, d)
	if b.rec.onWait != nil {
		b.rec.onWait()
		return time.Hour
	}
	return 0
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = url
	cfg.ConnectTimeout = time.Second
	cfg.RequestTimeout = time.Second
	return cfg
}

func writeRecording(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestUpload_MultipartBody(t *testing.T) {
	dir := t.TempDir()
	path := writeRecording(t, dir, "call_0001.mp3", "audio-bytes")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PostRecordingPath, r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "rec-42", r.FormValue("fileName"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = f.Close() }()
		assert.Equal(t, "call_0001.mp3", hdr.Filename)
		assert.Equal(t, "audio/mpeg", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		assert.Equal(t, "audio-bytes", string(data))
	}))
	defer srv.Close()

	sleeps := &recordedWaits{}
	cfg := testConfig(srv.URL)
	u := New(cfg, sleeps.wrap(cfg))
	res, err := u.Upload(t.Context(), path, "rec-42")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Empty(t, sleeps.delays)
}

func TestUpload_RetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeRecording(t, dir, "a.mp3", "x")
	writeRecording(t, dir, "older.mp3", "y")

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sleeps := &recordedWaits{}
	cfg := testConfig(srv.URL)
	u := New(cfg, sleeps.wrap(cfg))
	res, err := u.Upload(t.Context(), path, "rec")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, sleeps.delays)
	assert.Equal(t, 2, res.Cleanup.Deleted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "every recording in the directory is removed after success")
}

func TestUpload_RetriesExhausted(t *testing.T) {
	dir := t.TempDir()
	path := writeRecording(t, dir, "a.mp3", "x")

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sleeps := &recordedWaits{}
	cfg := testConfig(srv.URL)
	u := New(cfg, sleeps.wrap(cfg))
	res, err := u.Upload(t.Context(), path, "rec")
	require.ErrorIs(t, err, ErrRetriesExhausted)

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load(), "201 is not treated as success")
	assert.Len(t, sleeps.delays, 2, "no wait after the final attempt")
	assert.FileExists(t, path, "recordings are kept when the upload fails")
}

func TestUpload_TransportErrorCountsAsAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	path := writeRecording(t, t.TempDir(), "a.mp3", "x")
	sleeps := &recordedWaits{}
	cfg := testConfig(url)
	cfg.MaxAttempts = 2
	res, err := New(cfg, sleeps.wrap(cfg)).Upload(t.Context(), path, "rec")
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, sleeps.delays, 1)
}

func TestUpload_CancelledDuringWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := writeRecording(t, t.TempDir(), "a.mp3", "x")
	ctx, cancel := context.WithCancel(t.Context())
	waits := &recordedWaits{onWait: cancel}
	cfg := testConfig(srv.URL)

	res, err := New(cfg, waits.wrap(cfg)).Upload(ctx, path, "rec")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, res.Attempts)
}

func TestFixedAttempts(t *testing.T) {
	b := FixedAttempts(3, 5*time.Second)()
	assert.Equal(t, 5*time.Second, b.NextBackOff())
	assert.Equal(t, 5*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())

	b = FixedAttempts(0, time.Second)()
	assert.Equal(t, backoff.Stop, b.NextBackOff(), "a single attempt never waits")
}

func TestUpload_DefaultPolicyIsBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	path := writeRecording(t, t.TempDir(), "a.mp3", "x")
	cfg := testConfig(srv.URL)
	cfg.RetryDelay = time.Millisecond

	res, err := New(cfg).Upload(t.Context(), path, "rec")
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Contains(t, err.Error(), "status 502")
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), calls.Load())
}
