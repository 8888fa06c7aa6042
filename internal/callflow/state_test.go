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

package callflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseState(t *testing.T) {
	tests := map[string]State{
		"idle":      StateIdle,
		"IDLE":      StateIdle,
		"Ringing":   StateRinging,
		"offhook":   StateOffhook,
		" OFFHOOK ": StateOffhook,
		"off_hook":  StateOffhook,
		"connected": StateOffhook,
	}
	for in, want := range tests {
		got, err := ParseState(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseState("dialing")
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "offhook", StateOffhook.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestTimerHandle(t *testing.T) {
	var h timerHandle
	assert.False(t, h.cancel())

	fired := make(chan int, 2)
	h.arm(time.Hour, func() { fired <- 1 })
	h.arm(5*time.Millisecond, func() { fired <- 2 })
	assert.NotNil(t, h.t)

	select {
	case v := <-fired:
		assert.Equal(t, 2, v, "arming replaces the earlier timer")
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	h.arm(time.Hour, func() { fired <- 3 })
	assert.True(t, h.cancel())
	assert.Nil(t, h.t)
}

func TestHistory(t *testing.T) {
	h := NewHistory(time.Hour, 10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.Record(Outcome{WorkID: "a", ConnectedAt: base})
	h.Record(Outcome{WorkID: "b", ConnectedAt: base.Add(time.Minute)})
	h.Record(Outcome{ConnectedAt: base.Add(2 * time.Minute)})
	h.Record(Outcome{WorkID: "a", ConnectedAt: base, Uploaded: true})

	recent := h.Recent()
	require.Len(t, recent, 3)
	assert.Equal(t, "", recent[0].WorkID)
	assert.Equal(t, "b", recent[1].WorkID)
	assert.True(t, recent[2].Uploaded, "recording again replaces the entry")
}

func TestHistoryExpires(t *testing.T) {
	h := NewHistory(20*time.Millisecond, 10)
	h.Record(Outcome{WorkID: "a"})
	assert.Len(t, h.Recent(), 1)
	assert.Eventually(t, func() bool { return len(h.Recent()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestHistoryRun(t *testing.T) {
	h := NewHistory(10*time.Millisecond, 10)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	h.Record(Outcome{WorkID: "a"})
	require.Eventually(t, func() bool { return h.cache.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
