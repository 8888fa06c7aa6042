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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/callrunner/internal/helpers"
	"github.com/cardinalhq/callrunner/internal/idgen"
)

var (
	meter = otel.Meter("github.com/cardinalhq/callrunner")

	instanceAttrs attribute.Set
)

func debugEnabled() bool {
	return helpers.AnyBoolEnv("DEBUG", "CALLRUNNER_DEBUG")
}

// otlpEnabled needs both a service name and the explicit opt-in; a worker
// on a bench phone usually has neither.
func otlpEnabled() bool {
	return os.Getenv("OTEL_SERVICE_NAME") != "" && helpers.GetBoolEnv("ENABLE_OTLP_TELEMETRY", false)
}

func newLogHandler(servicename string, otlp bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if debugEnabled() {
		opts.Level = slog.LevelDebug
	}
	console := slog.NewTextHandler(os.Stdout, opts)
	if !otlp {
		return console
	}
	return slogmulti.Fanout(console, otelslog.NewHandler(servicename))
}

// setupTelemetry installs the default logger and, when OTLP is enabled,
// the metrics and log exporters. The returned context ends on SIGINT or
// SIGTERM; the returned func flushes exporters and must run before exit.
func setupTelemetry(servicename string) (context.Context, func() error, error) {
	instanceID := idgen.InstanceID()
	instanceAttrs = attribute.NewSet(
		attribute.String("instanceID", instanceID),
		attribute.String("service", servicename),
	)

	doneCtx, doneCancel := handleSignals(context.Background())
	shutdown := func() error {
		doneCancel()
		return nil
	}

	otlp := otlpEnabled()
	slog.SetDefault(slog.New(newLogHandler(servicename, otlp)).With(
		slog.String("service", servicename),
		slog.String("instanceID", instanceID),
	))

	if otlp {
		slog.Info("OpenTelemetry exporting enabled")
		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(10 * time.Second)); err != nil {
			slog.Warn("failed to start runtime metrics", slog.Any("error", err))
		}
		if err := host.Start(); err != nil {
			slog.Warn("failed to start host metrics", slog.Any("error", err))
		}

		shutdown = func() error {
			defer doneCancel()
			slog.Info("Shutting down OpenTelemetry SDK")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	}

	return doneCtx, shutdown, nil
}

// leaseHolder is the part of the lease store the lease gauge reads.
type leaseHolder interface {
	IsHeld() (bool, error)
}

// registerWorkerGauges reports that this worker is up and whether it
// currently holds the call lease. Both are observed at collection time so
// they stay correct after a crash-restart reconciles the lease.
func registerWorkerGauges(leases leaseHolder) error {
	up, err := meter.Int64ObservableGauge(
		"callrunner.worker.up",
		metric.WithDescription("1 while the worker process is running"),
	)
	if err != nil {
		return fmt.Errorf("create worker.up gauge: %w", err)
	}
	held, err := meter.Int64ObservableGauge(
		"callrunner.lease.held",
		metric.WithDescription("1 while a call lease is in progress"),
	)
	if err != nil {
		return fmt.Errorf("create lease.held gauge: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		attrs := metric.WithAttributeSet(instanceAttrs)
		o.ObserveInt64(up, 1, attrs)
		var v int64
		if ok, err := leases.IsHeld(); err == nil && ok {
			v = 1
		}
		o.ObserveInt64(held, v, attrs)
		return nil
	}, up, held)
	if err != nil {
		return fmt.Errorf("register worker gauges: %w", err)
	}
	return nil
}
