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

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/callrunner/config"
	"github.com/cardinalhq/callrunner/internal/artifact"
	"github.com/cardinalhq/callrunner/internal/callflow"
	"github.com/cardinalhq/callrunner/internal/completion"
	"github.com/cardinalhq/callrunner/internal/devicebridge"
	"github.com/cardinalhq/callrunner/internal/healthcheck"
	"github.com/cardinalhq/callrunner/internal/heartbeat"
	"github.com/cardinalhq/callrunner/internal/kvstore"
	"github.com/cardinalhq/callrunner/internal/lease"
	"github.com/cardinalhq/callrunner/internal/poller"
	"github.com/cardinalhq/callrunner/internal/uiagent"
	"github.com/cardinalhq/callrunner/internal/uploader"
	"github.com/cardinalhq/callrunner/internal/workqueue"
)

const (
	condBridgeConnected  = "bridge_connected"
	condDeviceResponsive = "device_responsive"
)

func init() {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Poll for work, place calls and upload their recordings",
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "callrunner-worker"
			doneCtx, doneFx, err := setupTelemetry(servicename)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}

			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return runWorker(doneCtx, cfg)
		},
	}

	rootCmd.AddCommand(cmd)
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	ll := slog.Default()

	kv, err := kvstore.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	if cfg.Identities.IsSet() {
		if err := workqueue.SaveIdentities(kv, cfg.Identities.Identities()); err != nil {
			return fmt.Errorf("seed identities: %w", err)
		}
	}

	leases := lease.NewStore(kv, lease.WithStaleAfter(cfg.Lease.StaleAfter), lease.WithLogger(ll))
	if err := registerWorkerGauges(leases); err != nil {
		ll.Warn("Worker gauges unavailable", slog.Any("error", err))
	}

	health := healthcheck.NewServer(cfg.Health, ll)
	health.SetReadyCondition(condBridgeConnected, false)

	bridge := devicebridge.New(cfg.Bridge,
		devicebridge.WithLogger(ll),
		devicebridge.OnConnectionChange(func(connected bool) {
			health.SetReadyCondition(condBridgeConnected, connected)
		}))

	locator, err := artifact.NewLocator(cfg.Upload.StorageRoot, cfg.Upload.Artifacts, ll)
	if err != nil {
		return err
	}
	pipeline := uploader.NewPipeline(
		locator,
		uploader.New(cfg.Upload, uploader.WithLogger(ll)),
		uploader.DirAccess(cfg.Upload.StorageRoot),
		ll)

	done := completion.New()
	history := callflow.NewHistory(cfg.History.TTL, cfg.History.Capacity)
	agent := uiagent.NewAgent(bridge, cfg.Call.DumpTree, ll)
	controller := callflow.NewController(cfg.Call, leases, agent, pipeline, done, history, ll)

	identities := func() (workqueue.Identities, error) {
		return workqueue.LoadIdentities(kv)
	}
	p := poller.New(cfg.Poller, workqueue.NewClient(cfg.Queue, ll), leases, bridge, identities, done.C(),
		poller.WithLogger(ll),
		poller.WithReadiness(bridge.Connected))

	keepalive := heartbeat.New(func(ctx context.Context) error {
		if !bridge.Connected() {
			return nil
		}
		return bridge.Ping(ctx)
	}, cfg.Bridge.PingInterval, ll,
		heartbeat.WithFailureThreshold(3),
		heartbeat.OnHealthChange(func(healthy bool) {
			health.SetReadyCondition(condDeviceResponsive, healthy)
		}))

	health.SetStatusFunc(statusSources{
		leases:      leases,
		poller:      p,
		calls:       controller,
		history:     history,
		storageRoot: cfg.Upload.StorageRoot,
		bridge:      bridge,
	}.collect)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error { return bridge.Run(gctx) })
	g.Go(func() error { return keepalive.Run(gctx) })
	g.Go(func() error { return history.Run(gctx) })
	g.Go(func() error { return controller.Run(gctx, bridge.Events()) })
	g.Go(func() error { return p.Run(gctx) })

	health.SetStatus(healthcheck.StatusHealthy)
	health.SetReady(true)
	ll.Info("Worker started",
		slog.String("store", cfg.StorePath),
		slog.String("queue", cfg.Queue.BaseURL),
		slog.String("bridge", cfg.Bridge.ListenAddr))

	err = g.Wait()
	controller.Wait()
	ll.Info("Worker stopped")
	return err
}
