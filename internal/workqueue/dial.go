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
	"strings"
)

// DialRequest is what the call-placement boundary needs to place the
// outbound call for a work item.
type DialRequest struct {
	WorkID   string `json:"workId"`
	Number   string `json:"number"`
	URI      string `json:"uri"`
	SimIndex int    `json:"simIndex"`
}

// Identities are the two sending identities (SIM slots) of the device.
type Identities struct {
	Primary   string
	Secondary string
}

// SimCards lists the non-blank identities in slot order, as sent to the
// queue.
func (i Identities) SimCards() []string {
	out := make([]string, 0, 2)
	for _, s := range []string{i.Primary, i.Secondary} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// NewDialRequest picks the sending slot for item: an item naming the
// primary identity uses slot 0 and anything else uses slot 1.
func NewDialRequest(workID string, item WorkItem, ids Identities) DialRequest {
	simIndex := 1
	if item.OriginIdentity == ids.Primary {
		simIndex = 0
	}
	return DialRequest{
		WorkID:   workID,
		Number:   item.TargetSequence,
		URI:      DialURI(item.TargetSequence),
		SimIndex: simIndex,
	}
}

// DialURI builds a tel: URI. '#' must be escaped or the dialer drops
// everything after it.
func DialURI(sequence string) string {
	return "tel:" + strings.ReplaceAll(sequence, "#", "%23")
}
