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

package uiagent

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	activations metric.Int64Counter
	misses      metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/uiagent")

	var err error
	activations, err = meter.Int64Counter(
		"callrunner.uiagent.activations",
		metric.WithDescription("Number of controls successfully clicked"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create uiagent.activations counter: %w", err))
	}

	misses, err = meter.Int64Counter(
		"callrunner.uiagent.misses",
		metric.WithDescription("Number of searches that found nothing to click"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create uiagent.misses counter: %w", err))
	}
}
