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

// Package idgen hands out the identifiers the worker stamps on its logs
// and leases.
package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/sonyflake"
)

var flakeEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var instance = sync.OnceValue(func() string {
	id, err := newInstanceID()
	if err != nil {
		return "u" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return id
})

// InstanceID names this worker process. It is stable for the life of the
// process and roughly time ordered across restarts.
func InstanceID() string {
	return instance()
}

func newInstanceID() (string, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: flakeEpoch})
	if err != nil {
		return "", err
	}
	if sf == nil {
		return "", errors.New("failed to create Sonyflake instance")
	}
	v, err := sf.NextID()
	if err != nil {
		return "", err
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return strings.ToLower(encoding.EncodeToString(b[:])), nil
}

// NewWorkID correlates one claimed work item across the lease, the dial
// request and the call logs.
func NewWorkID() string {
	return uuid.NewString()
}
