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

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cardinalhq/callrunner/internal/lease"
)

type leaseView struct {
	InProgress   bool       `yaml:"inProgress"`
	StartedAt    *time.Time `yaml:"startedAt,omitempty"`
	Age          string     `yaml:"age,omitempty"`
	Stale        bool       `yaml:"stale"`
	ArtifactName string     `yaml:"artifactName,omitempty"`
	DurationMs   int64      `yaml:"durationMs"`
	WorkID       string     `yaml:"workId,omitempty"`
}

func newLeaseView(l lease.Lease, staleAfter time.Duration, now time.Time) leaseView {
	v := leaseView{
		InProgress:   l.InProgress,
		ArtifactName: l.ArtifactName,
		DurationMs:   l.DurationMs,
		WorkID:       l.WorkID,
	}
	if !l.StartedAt.IsZero() {
		started := l.StartedAt.UTC()
		v.StartedAt = &started
		age := l.Age(now)
		v.Age = age.Round(time.Second).String()
		v.Stale = l.InProgress && age > staleAfter
	} else if l.InProgress {
		v.Stale = true
	}
	return v
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func init() {
	leaseCmd := &cobra.Command{
		Use:   "lease",
		Short: "Inspect or clear the work-in-progress lease",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current lease",
		RunE: func(c *cobra.Command, _ []string) error {
			leases, cfg, err := openLeases()
			if err != nil {
				return err
			}
			l, err := leases.Current()
			if err != nil {
				return err
			}
			return writeYAML(c.OutOrStdout(), newLeaseView(l, cfg.Lease.StaleAfter, time.Now()))
		},
	}

	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Clear the lease so the worker takes new work",
		RunE: func(c *cobra.Command, _ []string) error {
			leases, _, err := openLeases()
			if err != nil {
				return err
			}
			held, err := leases.IsHeld()
			if err != nil {
				return err
			}
			if err := leases.Release(); err != nil {
				return err
			}
			if held {
				_, err = fmt.Fprintln(c.OutOrStdout(), "lease released")
			} else {
				_, err = fmt.Fprintln(c.OutOrStdout(), "no lease was held")
			}
			return err
		},
	}

	leaseCmd.AddCommand(showCmd, releaseCmd)
	rootCmd.AddCommand(leaseCmd)
}
