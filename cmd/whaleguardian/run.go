// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/thediveo/whaleguardian/alert"
	"github.com/thediveo/whaleguardian/config"
	"github.com/thediveo/whaleguardian/diag"
	"github.com/thediveo/whaleguardian/dispatch"
	"github.com/thediveo/whaleguardian/engineclient"
	"github.com/thediveo/whaleguardian/engineclient/moby"
	"github.com/thediveo/whaleguardian/guardian"
	"github.com/thediveo/whaleguardian/ledger"
	"github.com/thediveo/whaleguardian/ledger/badgerstore"
	"github.com/thediveo/whaleguardian/metrics"
	"github.com/thediveo/whaleguardian/probe"
	"github.com/thediveo/whaleguardian/rules"
	"github.com/thediveo/whaleguardian/source"
	"go.uber.org/zap"
)

type runOptions struct {
	configPath   string
	host         string
	mode         string
	diagnostics  string
	interval     time.Duration
	startupDelay time.Duration
	failFast     bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Guard the containers of a Docker host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.configPath, root.log)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "configuration file (YAML)")
	flags.StringVar(&opts.host, "host", "", "Docker daemon API endpoint")
	flags.StringVar(&opts.mode, "mode", "", "state source mode (polling, streaming)")
	flags.StringVar(&opts.diagnostics, "diagnostics", "", "diagnostics listen address; \"off\" disables")
	flags.DurationVar(&opts.interval, "interval", 0, "interval between guardian cycles")
	flags.DurationVar(&opts.startupDelay, "startup-delay", config.DefaultStartupDelay, "delay before the first guardian cycle")
	flags.BoolVar(&opts.failFast, "fail-fast", false, "fail when the Docker daemon is unreachable at start")
	return cmd
}

// load the configuration, if any, and apply command line flags on top.
func (o *runOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Engine.Host = o.host
	}
	if flags.Changed("mode") {
		cfg.Engine.Mode = o.mode
	}
	if flags.Changed("diagnostics") {
		cfg.Diagnostics.Listen = o.diagnostics
		if o.diagnostics == "off" {
			cfg.Diagnostics.Listen = ""
		}
	}
	if flags.Changed("interval") {
		cfg.Interval = o.interval
	}
	if flags.Changed("startup-delay") {
		cfg.StartupDelay = o.startupDelay
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = o.failFast
	}
	return cfg, nil
}

// sinks returns the configured alert sinks.
func sinks(cfg config.Alerts, log *zap.Logger) (alert.Multi, error) {
	sinks := alert.Multi{}
	if cfg.Log {
		sinks = append(sinks, alert.NewLog(log))
	}
	if cfg.Kafka != nil {
		k, err := alert.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, alert.WithKafkaLogger(log))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, k)
	}
	return sinks, nil
}

// serve guards the containers until the context gets cancelled. Errors while
// setting up are returned immediately, as are fatal guardian errors.
func serve(ctx context.Context, cfg *config.Config, configPath string, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := rules.NewRegistry()
	policies, err := cfg.Compile(registry)
	if err != nil {
		return err
	}

	engine, err := moby.New(cfg.Engine.Host)
	if err != nil {
		return err
	}
	timed := engineclient.WithTimeout(engine, cfg.Engine.CallTimeout)
	srcopts := []source.Option{
		source.WithMode(source.Mode(cfg.Engine.Mode)),
		source.WithReconcileEvery(cfg.Engine.ReconcileEvery),
		source.WithInboxSize(cfg.Engine.InboxSize),
		source.WithUsageSampling(cfg.Engine.SampleUsage),
		source.WithDropsGauge(m.InboxDrops),
		source.WithLogger(log),
	}
	if len(cfg.Probes) > 0 {
		srcopts = append(srcopts, source.WithProber(probe.New(cfg.Probes,
			probe.WithLogger(log),
			probe.WithCounters(m.ProbeChecks, m.ProbeFailures),
			probe.WithHealthGauge(m.ProbeHealthy))))
	}
	src := source.New(timed, srcopts...)
	defer src.Close()

	ledgeropts := []ledger.Option{ledger.WithLogger(log)}
	if cfg.Ledger.Path != "" {
		store, err := badgerstore.Open(badgerstore.Options{
			Path:       cfg.Ledger.Path,
			SyncWrites: true,
			Logger:     log,
		})
		if err != nil {
			return err
		}
		ledgeropts = append(ledgeropts, ledger.WithStore(store))
	}
	l := ledger.New(cfg.Ledger.Capacity, ledgeropts...)
	defer func() {
		if err := l.Close(); err != nil {
			log.Warn("cannot close ledger", zap.Error(err))
		}
	}()
	if err := l.Restore(); err != nil {
		return err
	}

	sink, err := sinks(cfg.Alerts, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	d := dispatch.New(timed, l, sink, policies,
		dispatch.WithTimeout(cfg.Engine.CallTimeout),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(m))
	g := guardian.New(src, d, policies,
		guardian.WithInterval(cfg.Interval),
		guardian.WithHistoryLength(cfg.HistoryLength),
		guardian.WithStartupDelay(cfg.StartupDelay),
		guardian.WithFailFast(cfg.FailFast),
		guardian.WithDegradedAfter(cfg.BackOff.DegradedAfter),
		guardian.WithBackOff(guardian.ExponentialBackOff(
			cfg.BackOff.Initial, cfg.BackOff.Max, cfg.BackOff.Multiplier, cfg.BackOff.Jitter)),
		guardian.WithLogger(log),
		guardian.WithMetrics(m))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if cfg.Diagnostics.Listen != "" {
		listener, err := net.Listen("tcp", cfg.Diagnostics.Listen)
		if err != nil {
			return err
		}
		srv := diag.New(g, reg, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx, listener); err != nil {
				log.Error("diagnostics server failed", zap.Error(err))
			}
		}()
	}

	if configPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := config.Watch(ctx, configPath, config.DefaultDebounce, log, func(changed *config.Config, err error) {
				if err == nil {
					var set *rules.Set
					if set, err = changed.Compile(registry); err == nil {
						g.Reload(set)
						return
					}
				}
				rejected := alert.Info("rejected policy change: "+err.Error(), time.Now())
				if serr := sink.Send(ctx, rejected); serr != nil {
					log.Warn("cannot deliver alert", zap.Error(serr))
				}
			})
			if err != nil {
				log.Warn("not watching configuration", zap.Error(err))
			}
		}()
	}

	log.Info("whaleguardian starting",
		zap.String("engine", timed.API()),
		zap.String("mode", cfg.Engine.Mode),
		zap.Int("policies", policies.Len()))
	err = g.Run(ctx)
	log.Info("whaleguardian stopped", zap.Error(err))
	return err
}
