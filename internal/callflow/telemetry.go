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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	callsConnected metric.Int64Counter
	callsCompleted metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/callflow")

	var err error
	callsConnected, err = meter.Int64Counter(
		"callrunner.callflow.calls_connected",
		metric.WithDescription("Number of calls that reached the connected state"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create callflow.calls_connected counter: %w", err))
	}

	callsCompleted, err = meter.Int64Counter(
		"callrunner.callflow.calls_completed",
		metric.WithDescription("Number of connected calls whose post-call pipeline finished"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create callflow.calls_completed counter: %w", err))
	}
}
