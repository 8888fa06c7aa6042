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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/", ConnectTimeout: time.Second, RequestTimeout: time.Second}, nil)
}

func TestClient_TakeWork(t *testing.T) {
	var got takeWorkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, TakeWorkPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"callSequance":"+15550001","fileName":"rec-7","recordingDuration":30,"simCardName":"sim-a","extra":true}`))
	}))
	defer srv.Close()

	item, err := newTestClient(srv.URL).TakeWork(t.Context(), []string{"sim-a", "sim-b"})
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, []string{"sim-a", "sim-b"}, got.SimCards)
	assert.Equal(t, WorkItem{
		TargetSequence:  "+15550001",
		ArtifactName:    "rec-7",
		DurationSeconds: 30,
		OriginIdentity:  "sim-a",
	}, *item)
}

func TestClient_TakeWork_SendsEmptyList(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	item, err := newTestClient(srv.URL).TakeWork(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, []any{}, raw["simCards"])
}

func TestClient_TakeWork_NoWork(t *testing.T) {
	bodies := []string{``, `null`, `{}`, `{"fileName":"only-a-name"}`, `{"callSequance":"555"}`}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			item, err := newTestClient(srv.URL).TakeWork(t.Context(), nil)
			assert.NoError(t, err)
			assert.Nil(t, item)
		})
	}
}

func TestClient_TakeWork_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TakeWork(t.Context(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestClient_TakeWork_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"callSequance":`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).TakeWork(t.Context(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_TakeWork_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).TakeWork(t.Context(), nil)
	assert.Error(t, err)
}
