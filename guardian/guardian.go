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

package guardian

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/alert"
	"github.com/thediveo/whaleguardian/dispatch"
	"github.com/thediveo/whaleguardian/internal/logging"
	"github.com/thediveo/whaleguardian/ledger"
	"github.com/thediveo/whaleguardian/metrics"
	"github.com/thediveo/whaleguardian/rules"
	"go.uber.org/zap"
)

// State of the guardian loop.
type State string

// The states of the guardian loop.
const (
	StateStarting   State = "starting"
	StatePolling    State = "polling"
	StateEvaluating State = "evaluating"
	StateActing     State = "acting"
	StateDegraded   State = "degraded"
	StateStopped    State = "stopped"
)

// Defaults of the guardian loop.
const (
	DefaultInterval      = 20 * time.Second
	DefaultDegradedAfter = 2
)

// Collector collects the raw container state for a cycle; a source.Source is
// a Collector.
type Collector interface {
	Collect(ctx context.Context) (whaleguardian.Batch, error)
}

// Listener is optionally implemented by Collectors that need to run a
// concurrent event listener, such as streaming sources.
type Listener interface {
	Listen(ctx context.Context) error
}

// Status is a read-only copy of the guardian's state, as published after each
// phase of a cycle.
type Status struct {
	State      State                        `json:"state"`
	Cycles     uint64                       `json:"cycles"`
	At         time.Time                    `json:"at"` // of the snapshot.
	Snapshot   *whaleguardian.Snapshot      `json:"-"`
	Containers []whaleguardian.Container    `json:"containers"`
	Tombstones []whaleguardian.Container    `json:"tombstones"`
	Entries    []ledger.Entry               `json:"ledger"`
	Recent     []whaleguardian.ActionRecord `json:"recent"`
	Failures   int                          `json:"failures"` // consecutive source failures.
	LastError  string                       `json:"last_error,omitempty"`
}

// Guardian runs the guardian loop.
type Guardian struct {
	src        Collector
	dispatcher *dispatch.Dispatcher
	policies   *rules.Set
	history    *rules.History

	interval      time.Duration
	historyLength int // 0 derives the length from the policies.
	startupDelay  time.Duration
	failFast      bool
	degradedAfter int
	newBackOff    func() backoff.BackOff
	now           func() time.Time
	log           *zap.Logger
	metrics       *metrics.Metrics

	// owned by the loop goroutine.
	state    State
	snapshot *whaleguardian.Snapshot
	cycles   uint64
	failures int
	lastErr  error

	status atomic.Pointer[Status]

	reloadmu sync.Mutex
	pending  *rules.Set
	reload   chan struct{}
}

// Option configures a Guardian.
type Option func(*Guardian)

// WithInterval sets the interval between cycles.
func WithInterval(interval time.Duration) Option {
	return func(g *Guardian) {
		if interval > 0 {
			g.interval = interval
		}
	}
}

// WithHistoryLength sets the minimum number of prior container records kept
// for rule evaluation; the policies and the interval might ask for more.
func WithHistoryLength(n int) Option {
	return func(g *Guardian) { g.historyLength = n }
}

// WithStartupDelay delays the first cycle.
func WithStartupDelay(delay time.Duration) Option {
	return func(g *Guardian) { g.startupDelay = delay }
}

// WithFailFast makes an unreachable container engine in the first cycle fatal.
func WithFailFast(failFast bool) Option {
	return func(g *Guardian) { g.failFast = failFast }
}

// WithDegradedAfter sets the number of consecutive source failures after which
// the guardian becomes degraded.
func WithDegradedAfter(n int) Option {
	return func(g *Guardian) {
		if n > 0 {
			g.degradedAfter = n
		}
	}
}

// WithBackOff sets the backoff policy for retrying after source failures.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(g *Guardian) { g.newBackOff = newBackOff }
}

// WithClock sets the source of snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Guardian) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Guardian) { g.log = logging.Component(log, "guardian") }
}

// WithMetrics sets the metrics to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guardian) { g.metrics = m }
}

// ExponentialBackOff returns a factory for capped and jittered exponential
// backoffs that never give up.
func ExponentialBackOff(initial, max time.Duration, multiplier, jitter float64) func() backoff.BackOff {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		if initial > 0 {
			bo.InitialInterval = initial
		}
		if max > 0 {
			bo.MaxInterval = max
		}
		if multiplier >= 1 {
			bo.Multiplier = multiplier
		}
		if jitter >= 0 && jitter <= 1 {
			bo.RandomizationFactor = jitter
		}
		bo.MaxElapsedTime = 0
		bo.Reset()
		return bo
	}
}

// New returns a new Guardian collecting from the specified source and
// dispatching the violations of the specified policies.
func New(src Collector, dispatcher *dispatch.Dispatcher, policies *rules.Set, opts ...Option) *Guardian {
	g := &Guardian{
		src:           src,
		dispatcher:    dispatcher,
		policies:      policies,
		interval:      DefaultInterval,
		degradedAfter: DefaultDegradedAfter,
		newBackOff:    ExponentialBackOff(time.Second, time.Minute, 2, 0.2),
		now:           time.Now,
		log:           zap.NewNop(),
		state:         StateStarting,
		reload:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.dispatcher.Use(policies)
	g.metrics.SetPolicies(policies.Policies())
	g.history = rules.NewHistory(g.lookback(policies))
	g.publish()
	return g
}

// lookback returns the history length to use with the specified policies,
// which is never shorter than what the policies need to look back.
func (g *Guardian) lookback(policies *rules.Set) int {
	return max(g.historyLength, rules.DefaultHistoryLength(policies, g.interval))
}

// Status returns the most recently published status.
func (g *Guardian) Status() Status {
	return *g.status.Load()
}

// Reload replaces the policies at the next opportunity, that is, between two
// cycles. Reload is safe to call from any goroutine.
func (g *Guardian) Reload(policies *rules.Set) {
	g.reloadmu.Lock()
	g.pending = policies
	g.reloadmu.Unlock()
	select {
	case g.reload <- struct{}{}:
	default:
	}
}

// applyReload swaps in any pending policies.
func (g *Guardian) applyReload() {
	g.reloadmu.Lock()
	policies := g.pending
	g.pending = nil
	g.reloadmu.Unlock()
	if policies == nil {
		return
	}
	g.policies = policies
	g.dispatcher.Use(policies)
	g.metrics.SetPolicies(policies.Policies())
	g.history.Resize(g.lookback(policies))
	g.log.Info("reloaded policies",
		zap.Int("policies", policies.Len()), zap.Int("history", g.history.Length()))
}

// Run the guardian loop until the passed context gets cancelled, returning
// nil. Run returns an error only when the guardian cannot continue: when
// failing fast on an unreachable container engine, or on corrupted internal
// state.
func (g *Guardian) Run(ctx context.Context) error {
	defer g.setState(StateStopped)
	if g.startupDelay > 0 {
		g.log.Info("delaying start", zap.Duration("delay", g.startupDelay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(g.startupDelay):
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if l, ok := g.src.(Listener); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Listen(ctx); err != nil && ctx.Err() == nil {
				g.log.Error("event listener stopped", zap.Error(err))
			}
		}()
	}

	g.log.Info("guarding", zap.Duration("interval", g.interval), zap.Int("policies", g.policies.Len()))
	bo := g.newBackOff()
	first := true
	for {
		err := g.cycle(ctx)
		if err != nil {
			if errors.Is(err, whaleguardian.ErrInternalInvariant) {
				g.log.Error("stopping on corrupted state", zap.Error(err))
				return err
			}
			if first && g.failFast {
				return err
			}
		}
		first = false
		if ctx.Err() != nil {
			return nil
		}
		delay := g.interval
		if err != nil {
			if delay = bo.NextBackOff(); delay == backoff.Stop {
				delay = g.interval
			}
		} else {
			bo.Reset()
		}
		timer := time.NewTimer(delay)
	wait:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-g.reload:
				g.applyReload()
			case <-timer.C:
				break wait
			}
		}
	}
}

// cycle runs a single guardian cycle. If the context gets cancelled, the
// cycle ends at the next phase boundary.
func (g *Guardian) cycle(ctx context.Context) error {
	started := time.Now()
	if g.state != StateDegraded {
		g.setState(StatePolling)
	}
	batch, err := g.src.Collect(context.WithoutCancel(ctx))
	if err != nil {
		g.sourceFailed(ctx, err)
		return err
	}
	if g.state == StateDegraded {
		g.log.Info("recovered", zap.Int("failures", g.failures))
		g.dispatcher.Notify(ctx, alert.Info("container engine reachable again", g.now()))
		g.metrics.SetDegraded(false)
	}
	g.failures = 0
	g.lastErr = nil
	snap := whaleguardian.Build(g.snapshot, g.now(), batch.Complete, batch.Observations)
	if ctx.Err() != nil {
		return nil
	}

	g.setState(StateEvaluating)
	violations := g.policies.Evaluate(snap, g.snapshot, g.history)
	g.history.Record(snap)
	g.snapshot = snap
	if ctx.Err() != nil {
		g.publish()
		return nil
	}

	g.setState(StateActing)
	for _, v := range violations {
		if g.metrics != nil {
			g.metrics.Violations.WithLabelValues(v.PolicyID).Inc()
		}
		g.log.Debug("violation", zap.String("violation", v.String()))
		g.dispatcher.Dispatch(ctx, v)
	}
	g.cycles++
	if g.metrics != nil {
		g.metrics.Cycles.Inc()
		g.metrics.Containers.Set(float64(snap.Len()))
		g.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}
	if err := g.dispatcher.Ledger().Verify(); err != nil {
		g.lastErr = err
		return err
	}
	g.setState(StatePolling)
	return nil
}

// sourceFailed accounts for a failure to collect container state, becoming
// degraded when failing too often in a row.
func (g *Guardian) sourceFailed(ctx context.Context, err error) {
	g.failures++
	g.lastErr = err
	if g.metrics != nil {
		g.metrics.SourceFailures.Inc()
	}
	g.log.Warn("cannot collect container state", zap.Int("failures", g.failures), zap.Error(err))
	if g.state != StateDegraded && g.failures >= g.degradedAfter {
		g.log.Error("degraded", zap.Int("failures", g.failures))
		g.setState(StateDegraded)
		g.metrics.SetDegraded(true)
		g.dispatcher.Notify(ctx, alert.Info("container engine unreachable: "+err.Error(), g.now()))
		return
	}
	g.publish()
}

// setState transitions into the specified state and publishes the new status.
func (g *Guardian) setState(state State) {
	g.state = state
	g.publish()
}

// publish a new status copy for concurrent readers.
func (g *Guardian) publish() {
	st := &Status{
		State:      g.state,
		Cycles:     g.cycles,
		Snapshot:   g.snapshot,
		Containers: g.snapshot.Containers(),
		Tombstones: g.snapshot.Tombstones(),
		Failures:   g.failures,
	}
	if g.snapshot != nil {
		st.At = g.snapshot.At
	}
	if l := g.dispatcher.Ledger(); l != nil {
		st.Entries = l.Entries()
		st.Recent = l.Records()
	}
	if g.lastErr != nil {
		st.LastError = g.lastErr.Error()
	}
	g.status.Store(st)
}
