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

package source

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/engineclient"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// Mode of gathering container state.
type Mode string

// The supported modes of gathering container state.
const (
	ModePolling   Mode = "polling"   // list all containers in every cycle.
	ModeStreaming Mode = "streaming" // listen to events, reconcile periodically.
)

// Defaults for sources.
const (
	DefaultReconcileEvery = 10
	DefaultInboxSize      = 1024
)

// Prober actively checks the health of a container, returning whether the
// container is healthy and whether it has been probed at all.
type Prober interface {
	Probe(ctx context.Context, c whaleguardian.Container) (healthy bool, probed bool)
}

// Source gathers container state from a container engine. Except for the
// background event listener in streaming mode, a Source must only be used
// from a single goroutine.
type Source struct {
	engine         engineclient.EngineClient
	mode           Mode
	reconcileEvery int
	sampleUsage    bool
	prober         Prober
	log            *zap.Logger
	buggeroff      func() backoff.BackOff
	inbox          *Inbox
	drops          prometheus.Gauge

	// The following state is owned by the goroutine calling Collect.
	reconciled     bool                                 // at least one reconciliation succeeded.
	sinceReconcile int                                  // cycles since the last reconciliation.
	known          map[string]whaleguardian.Observation // latest observation per living container.
	samples        map[string]engineclient.UsageSample  // previous usage samples.
}

// Option configures a Source.
type Option func(*Source)

// WithMode sets polling or streaming mode; polling is the default.
func WithMode(mode Mode) Option {
	return func(s *Source) { s.mode = mode }
}

// WithReconcileEvery sets the number of cycles after which a streaming source
// reconciles with a full listing.
func WithReconcileEvery(cycles int) Option {
	return func(s *Source) {
		if cycles > 0 {
			s.reconcileEvery = cycles
		}
	}
}

// WithInboxSize sets the capacity of the event inbox of a streaming source.
func WithInboxSize(size int) Option {
	return func(s *Source) { s.inbox = NewInbox(size) }
}

// WithDropsGauge sets the gauge to set to the total number of observations
// the inbox dropped so far.
func WithDropsGauge(drops prometheus.Gauge) Option {
	return func(s *Source) { s.drops = drops }
}

// WithUsageSampling enables sampling the resource usage of running containers
// in every cycle.
func WithUsageSampling(enable bool) Option {
	return func(s *Source) { s.sampleUsage = enable }
}

// WithProber sets the prober for actively checking container health.
func WithProber(p Prober) Option {
	return func(s *Source) { s.prober = p }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Source) { s.log = logging.Component(log, "source") }
}

// WithBackOff sets the factory for the backoff governing event stream
// reconnects; the default is an exponential backoff that never gives up.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *Source) { s.buggeroff = newBackOff }
}

// New returns a new Source for the specified container engine.
func New(engine engineclient.EngineClient, opts ...Option) *Source {
	s := &Source{
		engine:         engine,
		mode:           ModePolling,
		reconcileEvery: DefaultReconcileEvery,
		log:            zap.NewNop(),
		buggeroff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		},
		inbox:   NewInbox(DefaultInboxSize),
		known:   map[string]whaleguardian.Observation{},
		samples: map[string]engineclient.UsageSample{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the mode of gathering container state.
func (s *Source) Mode() Mode { return s.mode }

// Inbox returns the event inbox.
func (s *Source) Inbox() *Inbox { return s.inbox }

// Engine returns the container engine this source gathers state from.
func (s *Source) Engine() engineclient.EngineClient { return s.engine }

// Close cleans up and releases the underlying engine client.
func (s *Source) Close() { s.engine.Close() }

// Fetch lists all containers, regardless of their status. It fails with an
// error of class ErrSourceUnavailable when the container engine can't be
// reached or doesn't answer in time.
func (s *Source) Fetch(ctx context.Context) ([]whaleguardian.Container, error) {
	cntrs, err := s.engine.List(ctx)
	if err != nil {
		return nil, whaleguardian.Classify(whaleguardian.ErrSourceUnavailable, err,
			"cannot list containers of %s engine at %s", s.engine.Type(), s.engine.API())
	}
	return cntrs, nil
}

// Collect gathers the raw container state for the next cycle. In polling
// mode, or when a streaming source needs to reconcile, Collect lists all
// containers and returns a complete batch. Otherwise, it returns what the
// event listener has queued since the previous cycle.
//
// When Collect fails the inbox is left untouched, so that no queued
// observations get lost.
func (s *Source) Collect(ctx context.Context) (whaleguardian.Batch, error) {
	var batch whaleguardian.Batch
	if s.mode != ModeStreaming || s.reconcileDue() {
		started := time.Now()
		cntrs, err := s.Fetch(ctx)
		if err != nil {
			return whaleguardian.Batch{}, err
		}
		batch.Complete = true
		batch.Observations = make([]whaleguardian.Observation, 0, len(cntrs))
		s.known = make(map[string]whaleguardian.Observation, len(cntrs))
		for _, cntr := range cntrs {
			obs := whaleguardian.Observation{Container: cntr, At: started}
			batch.Observations = append(batch.Observations, obs)
			s.known[cntr.ID] = obs
		}
		if s.mode == ModeStreaming {
			// Events that happened while we were listing might be newer than
			// what we've listed; the snapshot builder sorts this out.
			queued := s.inbox.Drain(started)
			s.learn(queued)
			batch.Observations = append(batch.Observations, queued...)
			s.log.Debug("reconciled", zap.Int("containers", len(cntrs)), zap.Int("events", len(queued)))
		}
		s.reconciled = true
		s.sinceReconcile = 0
	} else {
		batch.Observations = s.inbox.Drain(time.Time{})
		s.learn(batch.Observations)
		s.sinceReconcile++
	}
	if s.mode == ModeStreaming && s.drops != nil {
		s.drops.Set(float64(s.inbox.Drops()))
	}
	batch.Observations = append(batch.Observations, s.enrich(ctx)...)
	return batch, nil
}

// reconcileDue returns true if a streaming source needs to list all
// containers in this cycle.
func (s *Source) reconcileDue() bool {
	return !s.reconciled ||
		s.sinceReconcile+1 >= s.reconcileEvery ||
		s.inbox.Dirty()
}

// learn updates our knowledge about the living containers from the specified
// observations, ignoring stale observations.
func (s *Source) learn(observations []whaleguardian.Observation) {
	for _, obs := range observations {
		id := obs.Container.ID
		if known, ok := s.known[id]; ok && obs.At.Before(known.At) {
			continue
		}
		if obs.Gone {
			delete(s.known, id)
			continue
		}
		s.known[id] = obs
	}
}

// enrich returns fresh observations for all running containers, with sampled
// resource usage and probed health, if enabled.
func (s *Source) enrich(ctx context.Context) []whaleguardian.Observation {
	if !s.sampleUsage && s.prober == nil {
		return nil
	}
	now := time.Now()
	var enriched []whaleguardian.Observation
	samples := make(map[string]engineclient.UsageSample, len(s.samples))
	for id, known := range s.known {
		cntr := known.Container
		if cntr.Status != whaleguardian.StatusRunning {
			continue
		}
		if s.sampleUsage {
			sample, err := s.engine.Sample(ctx, id)
			if err == nil {
				cntr.Usage = whaleguardian.Usage{
					CPUPercent:  sample.CPUPercent(s.samples[id]),
					MemoryBytes: sample.MemoryBytes,
					Valid:       true,
				}
				samples[id] = sample
			} else if !engineclient.IsNotFound(err) {
				s.log.Debug("cannot sample usage",
					zap.String("container", cntr.Name), zap.Error(err))
			}
		}
		if s.prober != nil {
			if healthy, probed := s.prober.Probe(ctx, cntr); probed {
				switch {
				case !healthy:
					cntr.Health = whaleguardian.HealthUnhealthy
				case cntr.Health == whaleguardian.HealthNone:
					cntr.Health = whaleguardian.HealthHealthy
				}
			}
		}
		cntr.Observed = time.Time{}
		enriched = append(enriched, whaleguardian.Observation{Container: cntr, At: now})
	}
	s.samples = samples
	return enriched
}
