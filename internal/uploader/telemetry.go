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

package uploader

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	uploadAttempts metric.Int64Counter
	uploadFailures metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/callrunner/internal/uploader")

	var err error
	uploadAttempts, err = meter.Int64Counter(
		"callrunner.upload.attempts",
		metric.WithDescription("Number of recording upload attempts"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.attempts counter: %w", err))
	}

	uploadFailures, err = meter.Int64Counter(
		"callrunner.upload.failures",
		metric.WithDescription("Number of recordings that failed to upload after all attempts"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create upload.failures counter: %w", err))
	}
}
