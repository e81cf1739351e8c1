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
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/alert"
	"github.com/thediveo/whaleguardian/engineclient/moby"
	"github.com/thediveo/whaleguardian/ledger"
	"github.com/thediveo/whaleguardian/metrics"
	"github.com/thediveo/whaleguardian/rules"
	"github.com/thediveo/whaleguardian/test/mockingmoby"
	. "github.com/thediveo/whaleguardian/test/matcher"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

// recorder is an alert sink remembering all alerts sent to it.
type recorder struct {
	mu     sync.Mutex
	alerts []alert.Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recorder) Close() error { return nil }

func (r *recorder) Alerts() []alert.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]alert.Alert(nil), r.alerts...)
}

// clock is a manually advanced clock.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

var furiousFuruncle = mockingmoby.MockedContainer{
	ID:     "6666666666",
	Name:   "furious_furuncle",
	Image:  "furuncle:666",
	Status: mockingmoby.MockedRunning,
	PID:    666,
}

var (
	restartUnhealthy = whaleguardian.Policy{
		ID:        "restart-unhealthy",
		Condition: whaleguardian.ConditionSpec{Kind: rules.KindDuration, State: "unhealthy", Polls: 3},
		Action:    whaleguardian.ActionRestart,
		Cooldown:  60 * time.Second,
	}
	stopFlapping = whaleguardian.Policy{
		ID:           "stop-flapping",
		Condition:    whaleguardian.ConditionSpec{Kind: rules.KindCount, Event: rules.EventRestart, Above: 3, Window: time.Hour},
		Action:       whaleguardian.ActionStop,
		MaxActions:   2,
		ActionWindow: time.Hour,
	}
	killHog = whaleguardian.Policy{
		ID:         "kill-hog",
		Condition:  whaleguardian.ConditionSpec{Kind: rules.KindThreshold, Metric: rules.MetricMemoryBytes, Above: 1 << 30},
		Action:     whaleguardian.ActionKill,
		KillSignal: "SIGTERM",
		Cooldown:   time.Minute,
	}
	alertUnhealthy = whaleguardian.Policy{
		ID:        "alert-unhealthy",
		Condition: whaleguardian.ConditionSpec{Kind: rules.KindDuration, State: "unhealthy", Polls: 1},
		Action:    whaleguardian.ActionAlert,
		Cooldown:  time.Hour,
	}
)

func violation(policy whaleguardian.Policy, at time.Time) whaleguardian.Violation {
	return whaleguardian.Violation{
		ContainerID:   furiousFuruncle.ID,
		ContainerName: furiousFuruncle.Name,
		PolicyID:      policy.ID,
		Action:        policy.Action,
		DetectedAt:    at,
		Observed:      "something",
	}
}

var _ = Describe("dispatching violations", func() {

	var (
		mm   *mockingmoby.MockingMoby
		sink *recorder
		clk  *clock
		m    *metrics.Metrics
		d    *Dispatcher
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mm = mockingmoby.NewMockingMoby()
		mm.AddContainer(furiousFuruncle)
		sink = &recorder{}
		clk = &clock{now: t0}
		m = metrics.New(nil)
		set := Successful(rules.NewRegistry().Compile([]whaleguardian.Policy{
			restartUnhealthy, stopFlapping, killHog, alertUnhealthy,
		}))
		d = New(moby.NewMobyEngine(mm), ledger.New(0), sink, set,
			WithClock(clk.Now), WithMetrics(m), WithTimeout(time.Second))
	})

	It("restarts and then cools down", func() {
		rec := d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))
		Expect(rec).To(BeAnActionRecord(
			ForContainer(furiousFuruncle.ID),
			ForPolicy(restartUnhealthy.ID),
			HaveOutcome(whaleguardian.OutcomeSuccess),
			HaveAction(whaleguardian.ActionRestart)))
		Expect(rec.ID).NotTo(BeEmpty())
		Expect(mm.Calls()).To(HaveExactElements(mockingmoby.MockedCall{Op: "restart", ID: furiousFuruncle.ID}))
		Expect(sink.Alerts()).To(HaveExactElements(HaveField("Outcome", whaleguardian.OutcomeSuccess)))

		for _, secs := range []time.Duration{20, 20, 19} {
			clk.Advance(secs * time.Second)
			Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(
				HaveOutcome(whaleguardian.OutcomeSkippedCooldown))
		}
		Expect(mm.Calls()).To(HaveLen(1))
		Expect(sink.Alerts()).To(HaveLen(1))

		clk.Advance(time.Second)
		Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(
			HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(mm.Calls()).To(HaveLen(2))

		Expect(testutil.ToFloat64(m.Actions.WithLabelValues(restartUnhealthy.ID, "restart", "success"))).To(Equal(2.0))
		Expect(testutil.ToFloat64(m.Actions.WithLabelValues(restartUnhealthy.ID, "restart", "skipped-due-to-cooldown"))).To(Equal(3.0))
		Expect(d.Ledger().Verify()).To(Succeed())
	})

	It("never suppresses alert-only policies", func() {
		for i := 0; i < 3; i++ {
			Expect(d.Dispatch(ctx, violation(alertUnhealthy, clk.Now()))).To(And(
				HaveOutcome(whaleguardian.OutcomeSuccess), HaveAction(whaleguardian.ActionAlert)))
			clk.Advance(time.Second)
		}
		Expect(sink.Alerts()).To(HaveLen(3))
		Expect(mm.Calls()).To(BeEmpty())
	})

	It("reports failed actions and retries them on the next detection", func() {
		mm.RemoveContainer(furiousFuruncle.ID)
		rec := d.Dispatch(ctx, violation(killHog, clk.Now()))
		Expect(rec).To(HaveOutcome(whaleguardian.OutcomeFailure))
		Expect(rec.Error).To(ContainSubstring("corrective action failed"))
		Expect(sink.Alerts()).To(HaveExactElements(And(
			HaveField("Severity", alert.SeverityCritical),
			HaveField("Outcome", whaleguardian.OutcomeFailure))))

		mm.AddContainer(furiousFuruncle)
		clk.Advance(time.Second)
		Expect(d.Dispatch(ctx, violation(killHog, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(mm.Calls()).To(HaveExactElements(mockingmoby.MockedCall{Op: "kill", ID: furiousFuruncle.ID}))
	})

	It("doesn't cancel actions in flight", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		Expect(d.Dispatch(cctx, violation(restartUnhealthy, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(mm.Calls()).To(HaveLen(1))
	})

	It("enforces action limits with a single alert per saturation", func() {
		for i := 0; i < 2; i++ {
			Expect(d.Dispatch(ctx, violation(stopFlapping, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
			mm.AddContainer(furiousFuruncle)
			clk.Advance(10 * time.Minute)
		}
		Expect(testutil.ToFloat64(m.RecentActions.WithLabelValues(stopFlapping.ID))).To(Equal(2.0))
		for i := 0; i < 3; i++ {
			Expect(d.Dispatch(ctx, violation(stopFlapping, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSkippedLimit))
			clk.Advance(10 * time.Minute)
		}
		Expect(mm.Calls()).To(HaveLen(2))
		Expect(sink.Alerts()).To(HaveExactElements(
			HaveField("Outcome", whaleguardian.OutcomeSuccess),
			HaveField("Outcome", whaleguardian.OutcomeSuccess),
			HaveField("Outcome", whaleguardian.OutcomeSkippedLimit)))

		// the first stop leaves the action window.
		clk.Advance(10 * time.Minute)
		Expect(d.Dispatch(ctx, violation(stopFlapping, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(mm.Calls()).To(HaveLen(3))
	})

	It("keeps independent cooldowns per policy", func() {
		Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(d.Dispatch(ctx, violation(killHog, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSkippedCooldown))
		Expect(d.Ledger().Entries()).To(HaveLen(2))
	})

	It("keeps cooldowns in a full ledger", func() {
		d = New(moby.NewMobyEngine(mm), ledger.New(2), sink, d.policies, WithClock(clk.Now))
		Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		for _, id := range []string{"a", "b"} {
			v := violation(alertUnhealthy, clk.Now())
			v.ContainerID = id
			Expect(d.Dispatch(ctx, v)).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		}
		Expect(d.Dispatch(ctx, violation(stopFlapping, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		mm.AddContainer(furiousFuruncle)
		Expect(d.Dispatch(ctx, violation(killHog, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		mm.AddContainer(furiousFuruncle)

		clk.Advance(10 * time.Second)
		Expect(d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))).To(
			HaveOutcome(whaleguardian.OutcomeSkippedCooldown))
		Expect(mm.Calls()).To(HaveExactElements(
			mockingmoby.MockedCall{Op: "restart", ID: furiousFuruncle.ID},
			mockingmoby.MockedCall{Op: "stop", ID: furiousFuruncle.ID},
			mockingmoby.MockedCall{Op: "kill", ID: furiousFuruncle.ID}))
		Expect(d.Ledger().Len()).To(Equal(3))
		Expect(d.Ledger().Verify()).To(Succeed())
	})

	It("survives failing alert sinks", func() {
		sink.err = errors.New("sink on fire")
		Expect(d.Dispatch(ctx, violation(alertUnhealthy, clk.Now()))).To(HaveOutcome(whaleguardian.OutcomeSuccess))
		Expect(testutil.ToFloat64(m.AlertFailures)).To(Equal(1.0))
	})

	It("rejects violations of unknown policies", func() {
		d.Use(Successful(rules.NewRegistry().Compile(nil)))
		rec := d.Dispatch(ctx, violation(restartUnhealthy, clk.Now()))
		Expect(rec).To(HaveOutcome(whaleguardian.OutcomeFailure))
		Expect(rec.Error).To(ContainSubstring("unknown policy"))
		Expect(mm.Calls()).To(BeEmpty())
	})

})
