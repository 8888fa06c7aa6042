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

package poller

import (
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	polls        metric.Int64Counter
	dispatched   metric.Int64Counter
	dialFailures metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/poller")

	var err error
	polls, err = meter.Int64Counter(
		"callrunner.poller.polls",
		metric.WithDescription("Number of poll cycles"),
	)
	if err != nil {
		log.Fatalf("failed to create poller.polls counter: %v", err)
	}

	dispatched, err = meter.Int64Counter(
		"callrunner.poller.dispatched",
		metric.WithDescription("Number of work items handed to the dialer"),
	)
	if err != nil {
		log.Fatalf("failed to create poller.dispatched counter: %v", err)
	}

	dialFailures, err = meter.Int64Counter(
		"callrunner.poller.dial_failures",
		metric.WithDescription("Number of work items whose call could not be placed"),
	)
	if err != nil {
		log.Fatalf("failed to create poller.dial_failures counter: %v", err)
	}
}
