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

// Package artifact finds the recording produced for a call and cleans up
// the directory it was found in.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	ErrNoSourceDir = errors.New("no recording source directory found")
	ErrNoArtifact  = errors.New("no recording found in source directory")
)

const DefaultSettleDelay = 2 * time.Second

type Config struct {
	// SourceDirs are tried in order; the first existing directory wins.
	SourceDirs []string `mapstructure:"source_dirs"`
	// Pattern is a doublestar glob matched against entry names.
	Pattern     string        `mapstructure:"pattern"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// DefaultConfig lists the directories common dialer apps record into,
// relative to the device's external storage root.
func DefaultConfig() Config {
	return Config{
		SourceDirs: []string{
			"Recordings/sound_recorder/call_rec",
			"MIUI/sound_recorder/call_rec",
			"CallRecorder",
			"call_records",
		},
		Pattern:     "*",
		SettleDelay: DefaultSettleDelay,
	}
}

// Locator picks the most recently written recording.
type Locator struct {
	dirs        []string
	pattern     string
	settleDelay time.Duration
	ll          *slog.Logger
}

// NewLocator resolves relative source directories against root.
func NewLocator(root string, cfg Config, logger *slog.Logger) (*Locator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid artifact pattern %q", pattern)
	}
	dirs := make([]string, 0, len(cfg.SourceDirs))
	for _, d := range cfg.SourceDirs {
		if !filepath.IsAbs(d) && root != "" {
			d = filepath.Join(root, d)
		}
		dirs = append(dirs, d)
	}
	return &Locator{
		dirs:        dirs,
		pattern:     pattern,
		settleDelay: max(cfg.SettleDelay, 0),
		ll:          logger.With("component", "artifact"),
	}, nil
}

// SourceDir returns the first candidate that exists and is a directory.
func (l *Locator) SourceDir() (string, error) {
	for _, d := range l.dirs {
		fi, err := os.Stat(d)
		if err == nil && fi.IsDir() {
			return d, nil
		}
	}
	return "", ErrNoSourceDir
}

// LocateLatest waits for the recorder to settle and returns the path of
// the newest matching regular file in the source directory.
func (l *Locator) LocateLatest(ctx context.Context) (string, error) {
	dir, err := l.SourceDir()
	if err != nil {
		return "", err
	}

	if l.settleDelay > 0 {
		t := time.NewTimer(l.settleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list %s: %w", dir, err)
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if ok, _ := doublestar.Match(l.pattern, e.Name()); !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest = filepath.Join(dir, e.Name())
			latestAt = info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w: %s", ErrNoArtifact, dir)
	}

	l.ll.Debug("Located latest recording", slog.String("path", latest), slog.Time("modified", latestAt))
	return latest, nil
}
