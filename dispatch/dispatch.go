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

package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/alert"
	"github.com/thediveo/whaleguardian/internal/logging"
	"github.com/thediveo/whaleguardian/ledger"
	"github.com/thediveo/whaleguardian/metrics"
	"github.com/thediveo/whaleguardian/rules"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single corrective action on top of the policy's stop
// timeout, as well as delivering a single alert.
const DefaultTimeout = 10 * time.Second

// Mutator carries out corrective actions on containers; the container
// engine's EngineClient is a Mutator.
type Mutator interface {
	Restart(ctx context.Context, nameorid string, grace time.Duration) error
	Stop(ctx context.Context, nameorid string, grace time.Duration) error
	Kill(ctx context.Context, nameorid string, signal string) error
}

// Dispatcher dispatches violations.
type Dispatcher struct {
	engine   Mutator
	ledger   *ledger.Ledger
	sink     alert.Sink
	policies *rules.Set
	timeout  time.Duration
	now      func() time.Time
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the timeout for corrective actions (on top of the policy's
// stop timeout) and alert delivery.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithClock sets the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Dispatcher) { d.log = logging.Component(log, "dispatch") }
}

// WithMetrics sets the metrics to update.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New returns a new Dispatcher acting through the specified engine, recording
// into the specified ledger, and alerting to the specified sink, for the
// violations of the specified policy set.
func New(engine Mutator, l *ledger.Ledger, sink alert.Sink, policies *rules.Set, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		ledger:   l,
		sink:     sink,
		policies: policies,
		timeout:  DefaultTimeout,
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Use the specified policy set for subsequent violations.
func (d *Dispatcher) Use(policies *rules.Set) { d.policies = policies }

// Ledger returns the action ledger.
func (d *Dispatcher) Ledger() *ledger.Ledger { return d.ledger }

// Dispatch the specified violation, returning the record of what has been
// done about it. A corrective action in flight doesn't get cancelled when the
// passed context gets cancelled; it's only bounded by the dispatcher's timeout
// plus the policy's stop timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, v whaleguardian.Violation) whaleguardian.ActionRecord {
	now := d.now()
	rec := whaleguardian.ActionRecord{
		ID:        uuid.NewString(),
		Violation: v,
		Action:    v.Action,
		At:        now,
	}
	policy, ok := d.policies.Policy(v.PolicyID)
	if !ok {
		rec.Outcome = whaleguardian.OutcomeFailure
		rec.Error = whaleguardian.Invariant("violation of unknown policy '%s'", v.PolicyID).Error()
		d.log.Error("dropping violation", zap.String("policy", v.PolicyID), zap.String("error", rec.Error))
		d.metrics.Observe(rec)
		return rec
	}
	rec.Action = policy.Action
	key := ledger.KeyOf(v)
	switch {
	case !policy.Action.Corrective():
		rec.Outcome = whaleguardian.OutcomeSuccess
		d.Notify(ctx, alert.ForRecord(rec))
	case d.ledger.InCooldown(key, policy.Cooldown, now):
		rec.Outcome = whaleguardian.OutcomeSkippedCooldown
		d.log.Debug("cooling down", zap.String("policy", policy.ID),
			zap.String("container", v.ContainerName))
	case policy.MaxActions > 0 && d.ledger.Recent(key, policy.ActionWindow, now) >= policy.MaxActions:
		rec.Outcome = whaleguardian.OutcomeSkippedLimit
		if !d.ledger.Saturated(key) {
			d.Notify(ctx, alert.ForRecord(rec))
		}
	default:
		if err := d.act(ctx, policy, v.ContainerID); err != nil {
			err = whaleguardian.Classify(whaleguardian.ErrActionFailed, err,
				"cannot %s container '%s'", policy.Action, v.ContainerName)
			rec.Outcome = whaleguardian.OutcomeFailure
			rec.Error = err.Error()
			d.log.Warn("corrective action failed",
				zap.String("policy", policy.ID),
				zap.String("container", v.ContainerName),
				zap.Error(err))
		} else {
			rec.Outcome = whaleguardian.OutcomeSuccess
			d.log.Info("corrective action",
				zap.String("policy", policy.ID),
				zap.String("container", v.ContainerName),
				zap.String("action", string(policy.Action)),
				zap.String("observed", v.Observed))
		}
		d.Notify(ctx, alert.ForRecord(rec))
	}
	if err := d.ledger.Record(rec, policy.Cooldown, policy.ActionWindow); err != nil {
		d.log.Warn("cannot persist ledger entry", zap.Error(err))
	}
	d.metrics.Observe(rec)
	if d.metrics != nil && policy.Action.Corrective() {
		d.metrics.RecentActions.WithLabelValues(policy.ID).Set(
			float64(d.ledger.RecentFor(policy.ID, policy.ActionWindow, now)))
	}
	return rec
}

// act carries out the corrective action of the specified policy on the
// specified container.
func (d *Dispatcher) act(ctx context.Context, policy whaleguardian.Policy, id string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout+policy.StopTimeout)
	defer cancel()
	switch policy.Action {
	case whaleguardian.ActionRestart:
		return d.engine.Restart(ctx, id, policy.StopTimeout)
	case whaleguardian.ActionStop:
		return d.engine.Stop(ctx, id, policy.StopTimeout)
	case whaleguardian.ActionKill:
		return d.engine.Kill(ctx, id, policy.KillSignal)
	}
	return whaleguardian.Invariant("unknown action '%s'", policy.Action)
}

// Notify sends the specified alert to the alert sink; failures get logged,
// but are otherwise ignored.
func (d *Dispatcher) Notify(ctx context.Context, a alert.Alert) {
	if d.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err := d.sink.Send(ctx, a); err != nil {
		d.log.Warn("cannot deliver alert", zap.String("message", a.Message), zap.Error(err))
		if d.metrics != nil {
			d.metrics.AlertFailures.Inc()
		}
	}
}
