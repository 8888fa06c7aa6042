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

package devicebridge

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	connections   metric.Int64Counter
	stateEvents   metric.Int64Counter
	droppedEvents metric.Int64Counter
	rpcFailures   metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/devicebridge")

	var err error
	connections, err = meter.Int64Counter(
		"callrunner.devicebridge.connections",
		metric.WithDescription("Number of accepted device connections"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create devicebridge.connections counter: %w", err))
	}

	stateEvents, err = meter.Int64Counter(
		"callrunner.devicebridge.state_events",
		metric.WithDescription("Number of telephony state notifications delivered"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create devicebridge.state_events counter: %w", err))
	}

	droppedEvents, err = meter.Int64Counter(
		"callrunner.devicebridge.dropped_events",
		metric.WithDescription("Number of telephony state notifications dropped because the buffer was full"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create devicebridge.dropped_events counter: %w", err))
	}

	rpcFailures, err = meter.Int64Counter(
		"callrunner.devicebridge.rpc_failures",
		metric.WithDescription("Number of requests to the device that failed or timed out"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create devicebridge.rpc_failures counter: %w", err))
	}
}
