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

package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestLocateLatest_FirstExistingDirNewestFile(t *testing.T) {
	root := t.TempDir()
	b := filepath.Join(root, "B")
	require.NoError(t, os.MkdirAll(b, 0o755))

	t1 := time.Now().Add(-time.Hour)
	t2 := t1.Add(10 * time.Minute)
	writeFile(t, filepath.Join(b, "f1.mp3"), t1)
	writeFile(t, filepath.Join(b, "f2.mp3"), t2)

	l, err := NewLocator(root, Config{SourceDirs: []string{"A", "B"}}, nil)
	require.NoError(t, err)

	got, err := l.LocateLatest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "f2.mp3"), got)
}

func TestLocateLatest_PrefersEarlierCandidate(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"A", "B"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	now := time.Now()
	writeFile(t, filepath.Join(root, "A", "old.mp3"), now.Add(-time.Hour))
	writeFile(t, filepath.Join(root, "B", "new.mp3"), now)

	l, err := NewLocator(root, Config{SourceDirs: []string{"A", "B"}}, nil)
	require.NoError(t, err)

	got, err := l.LocateLatest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "A", "old.mp3"), got)
}

func TestLocateLatest_SkipsDirectoriesAndNonMatching(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "rec")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "newest-but-a-dir"), 0o755))
	now := time.Now()
	writeFile(t, filepath.Join(dir, "call.m4a"), now.Add(-time.Minute))
	writeFile(t, filepath.Join(dir, "notes.txt"), now)

	l, err := NewLocator("", Config{SourceDirs: []string{dir}, Pattern: "*.{mp3,m4a,amr}"}, nil)
	require.NoError(t, err)

	got, err := l.LocateLatest(t.Context())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "call.m4a"), got)
}

func TestLocateLatest_NoSourceDir(t *testing.T) {
	l, err := NewLocator(t.TempDir(), Config{SourceDirs: []string{"missing", "also-missing"}}, nil)
	require.NoError(t, err)

	_, err = l.LocateLatest(t.Context())
	assert.ErrorIs(t, err, ErrNoSourceDir)
}

func TestLocateLatest_FileIsNotADirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A"), time.Now())

	l, err := NewLocator(root, Config{SourceDirs: []string{"A"}}, nil)
	require.NoError(t, err)

	_, err = l.LocateLatest(t.Context())
	assert.ErrorIs(t, err, ErrNoSourceDir)
}

func TestLocateLatest_EmptyDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A"), 0o755))

	l, err := NewLocator(root, Config{SourceDirs: []string{"A"}}, nil)
	require.NoError(t, err)

	_, err = l.LocateLatest(t.Context())
	assert.ErrorIs(t, err, ErrNoArtifact)
}

func TestLocateLatest_SettleDelay(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A"), 0o755))

	l, err := NewLocator(root, Config{SourceDirs: []string{"A"}, SettleDelay: 100 * time.Millisecond}, nil)
	require.NoError(t, err)

	// A file written during the settle window is still found.
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(root, "A", "late.mp3"), []byte("x"), 0o644)
	}()

	start := time.Now()
	got, err := l.LocateLatest(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, filepath.Join(root, "A", "late.mp3"), got)
}

func TestLocateLatest_SettleHonoursContext(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "A"), 0o755))

	l, err := NewLocator(root, Config{SourceDirs: []string{"A"}, SettleDelay: time.Hour}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = l.LocateLatest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLocator_InvalidPattern(t *testing.T) {
	_, err := NewLocator("", Config{Pattern: "[unterminated"}, nil)
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Len(t, cfg.SourceDirs, 4)
	assert.Equal(t, 2*time.Second, cfg.SettleDelay)
}
