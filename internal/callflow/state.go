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
	"fmt"
	"strings"
)

// State is both the telephony state reported by the device and the
// controller's view of the current call phase.
type State int

const (
	StateIdle State = iota
	StateRinging
	StateOffhook
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRinging:
		return "ringing"
	case StateOffhook:
		return "offhook"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState accepts the device's state names in any case. "connected"
// and "off_hook" are read as offhook.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return StateIdle, nil
	case "ringing":
		return StateRinging, nil
	case "offhook", "off_hook", "connected":
		return StateOffhook, nil
	default:
		return StateIdle, fmt.Errorf("unknown telephony state %q", s)
	}
}
