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

package lease

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	acquiredCounter metric.Int64Counter
	staleCounter    metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/lease")

	var err error
	acquiredCounter, err = meter.Int64Counter(
		"callrunner.lease.acquired",
		metric.WithDescription("Number of leases acquired for new work items"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lease.acquired counter: %w", err))
	}

	staleCounter, err = meter.Int64Counter(
		"callrunner.lease.stale_released",
		metric.WithDescription("Number of leases force-released because they outlived the staleness threshold"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lease.stale_released counter: %w", err))
	}
}
