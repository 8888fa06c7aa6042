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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearDirectory_RemovesOnlyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"), time.Now())
	writeFile(t, filepath.Join(dir, "b.mp3"), time.Now())
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "keep"), 0o755))
	writeFile(t, filepath.Join(dir, "keep", "nested.mp3"), time.Now())

	res, err := ClearDirectory(dir)
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Deleted: 2}, res)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name())
	assert.FileExists(t, filepath.Join(dir, "keep", "nested.mp3"))
}

func TestClearDirectory_MissingDir(t *testing.T) {
	_, err := ClearDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestClearDirectory_CountsFailures(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"), time.Now())
	writeFile(t, filepath.Join(dir, "b.mp3"), time.Now())
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	res, err := ClearDirectory(dir)
	assert.Error(t, err)
	assert.Equal(t, CleanupResult{Failed: 2}, res)
}
