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
	"context"

	"github.com/cardinalhq/callrunner/internal/callflow"
	"github.com/cardinalhq/callrunner/internal/helpers"
	"github.com/cardinalhq/callrunner/internal/idgen"
	"github.com/cardinalhq/callrunner/internal/lease"
	"github.com/cardinalhq/callrunner/internal/poller"
)

type workerStatus struct {
	InstanceID  string             `json:"instanceId"`
	Bridge      bridgeStatus       `json:"bridge"`
	Lease       lease.Lease        `json:"lease"`
	Phase       string             `json:"phase"`
	ActiveCall  *callflow.Outcome  `json:"activeCall,omitempty"`
	Poller      poller.Status      `json:"poller"`
	Storage     *helpers.DiskUsage `json:"storage,omitempty"`
	RecentCalls []callflow.Outcome `json:"recentCalls"`
}

type bridgeStatus struct {
	Connected bool   `json:"connected"`
	Client    string `json:"client,omitempty"`
	Version   int    `json:"version,omitempty"`
}

type statusSources struct {
	leases interface {
		Current() (lease.Lease, error)
	}
	poller interface {
		Status() poller.Status
	}
	calls interface {
		Phase() callflow.State
		Active() (callflow.Outcome, bool)
	}
	history     *callflow.History
	storageRoot string
	bridge      interface {
		Connected() bool
		Client() (string, int)
	}
}

func (s statusSources) collect(_ context.Context) (any, error) {
	l, err := s.leases.Current()
	if err != nil {
		return nil, err
	}
	st := workerStatus{
		InstanceID:  idgen.InstanceID(),
		Lease:       l,
		Phase:       s.calls.Phase().String(),
		Poller:      s.poller.Status(),
		RecentCalls: []callflow.Outcome{},
	}
	if active, ok := s.calls.Active(); ok {
		st.ActiveCall = &active
	}
	if s.history != nil {
		st.RecentCalls = s.history.Recent()
	}
	if s.storageRoot != "" {
		if u, err := helpers.StatDisk(s.storageRoot); err == nil {
			st.Storage = &u
		}
	}
	st.Bridge.Connected = s.bridge.Connected()
	st.Bridge.Client, st.Bridge.Version = s.bridge.Client()
	return st, nil
}
