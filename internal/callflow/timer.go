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

import "time"

// timerHandle owns at most one pending callback. It is only touched with
// the controller mutex held.
type timerHandle struct {
	t *time.Timer
}

func (h *timerHandle) arm(d time.Duration, fn func()) {
	h.cancel()
	h.t = time.AfterFunc(d, fn)
}

// cancel stops the pending callback, reporting whether it had not fired.
func (h *timerHandle) cancel() bool {
	if h.t == nil {
		return false
	}
	stopped := h.t.Stop()
	h.t = nil
	return stopped
}
