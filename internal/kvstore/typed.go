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

package kvstore

import (
	"strconv"
)

// Bool reads key as a boolean. Absent or unparsable values yield def.
func Bool(r Reader, key string, def bool) bool {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int64 reads key as a base-10 integer. Absent or unparsable values yield def.
func Int64(r Reader, key string, def int64) int64 {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// String reads key, yielding def when absent.
func String(r Reader, key string, def string) string {
	v, ok := r.Get(key)
	if !ok {
		return def
	}
	return v
}

func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}

func FormatInt64(n int64) string {
	return strconv.FormatInt(n, 10)
}

// MapReader adapts a plain map, such as a Snapshot result, to Reader.
type MapReader map[string]string

func (m MapReader) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
