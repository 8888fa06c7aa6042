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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cardinalhq/callrunner/internal/artifact"
)

var ErrStorageUnavailable = errors.New("recording storage is not accessible")

// AccessCheck reports whether the process may read and delete recordings.
type AccessCheck func() error

// DirAccess checks that root can be listed.
func DirAccess(root string) AccessCheck {
	return func() error {
		if root == "" {
			return nil
		}
		f, err := os.Open(root)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		defer func() { _ = f.Close() }()
		if _, err := f.ReadDir(1); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return nil
	}
}

// Locator finds the recording to upload.
type Locator interface {
	LocateLatest(ctx context.Context) (string, error)
}

// Sender uploads one file.
type Sender interface {
	Upload(ctx context.Context, path, artifactName string) (Result, error)
}

// Pipeline is the post-call step: find the newest recording and upload it.
type Pipeline struct {
	locator Locator
	sender  Sender
	access  AccessCheck
	ll      *slog.Logger
}

func NewPipeline(locator Locator, sender Sender, access AccessCheck, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if access == nil {
		access = func() error { return nil }
	}
	return &Pipeline{
		locator: locator,
		sender:  sender,
		access:  access,
		ll:      logger.With("component", "postcall"),
	}
}

// Run uploads the latest recording as artifactName. Every failure is
// logged and returned; none of them are retried here.
func (p *Pipeline) Run(ctx context.Context, artifactName string) error {
	ll := p.ll.With(slog.String("artifactName", artifactName))

	if strings.TrimSpace(artifactName) == "" {
		ll.Error("Could not retrieve artifact name for upload")
		return errors.New("no artifact name for upload")
	}
	if err := p.access(); err != nil {
		ll.Error("Storage access unavailable, skipping upload", slog.Any("error", err))
		return err
	}

	path, err := p.locator.LocateLatest(ctx)
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNoSourceDir):
			ll.Error("Could not find a valid recording source directory")
		case errors.Is(err, artifact.ErrNoArtifact):
			ll.Error("No new recordings found", slog.Any("error", err))
		default:
			ll.Error("Failed to locate recording", slog.Any("error", err))
		}
		return err
	}

	res, err := p.sender.Upload(ctx, path, artifactName)
	if err != nil {
		return err
	}
	ll.Info("Post-call upload complete",
		slog.Int("attempts", res.Attempts),
		slog.Int("deleted", res.Cleanup.Deleted),
		slog.Int("deleteFailures", res.Cleanup.Failed))
	return nil
}
