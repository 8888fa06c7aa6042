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

package helpers

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient returns a client whose dials give up after connectTimeout
// and whose requests, including reading the body, give up after
// requestTimeout. Non-positive values disable the respective limit.
func NewHTTPClient(connectTimeout, requestTimeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   max(connectTimeout, 0),
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	if connectTimeout > 0 {
		transport.TLSHandshakeTimeout = connectTimeout
	}
	return &http.Client{
		Transport: transport,
		Timeout:   max(requestTimeout, 0),
	}
}
