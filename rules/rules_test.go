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

package rules

import (
	"time"

	"github.com/thediveo/whaleguardian"
	. "github.com/thediveo/whaleguardian/test/matcher"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

const interval = 10 * time.Second

func at(cycle int) time.Time { return t0.Add(time.Duration(cycle) * interval) }

func running(id, name string) whaleguardian.Container {
	return whaleguardian.Container{
		ID:     id,
		Name:   name,
		Image:  "busybox:latest",
		Status: whaleguardian.StatusRunning,
		Health: whaleguardian.HealthHealthy,
		Labels: map[string]string{"tier": "backend"},
	}
}

// cycles feeds the specified per-cycle container sets through snapshot
// building, evaluation, and history recording, returning the violations per
// cycle.
func cycles(set *Set, states ...[]whaleguardian.Container) [][]whaleguardian.Violation {
	history := NewHistory(DefaultHistoryLength(set, interval))
	var prev *whaleguardian.Snapshot
	results := [][]whaleguardian.Violation{}
	for cycle, cntrs := range states {
		obs := make([]whaleguardian.Observation, 0, len(cntrs))
		for _, c := range cntrs {
			obs = append(obs, whaleguardian.Observation{Container: c, At: at(cycle)})
		}
		snap := whaleguardian.Build(prev, at(cycle), true, obs)
		results = append(results, set.Evaluate(snap, prev, history))
		history.Record(snap)
		prev = snap
	}
	return results
}

var unhealthyRestart = whaleguardian.Policy{
	ID:        "unhealthy-restart",
	Condition: whaleguardian.ConditionSpec{Kind: KindDuration, State: "unhealthy", Polls: 2},
	Action:    whaleguardian.ActionRestart,
	Cooldown:  time.Minute,
}

var highCPUAlert = whaleguardian.Policy{
	ID:        "high-cpu",
	Selector:  whaleguardian.Selector{Labels: map[string]string{"tier": "*"}},
	Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: MetricCPUPercent, Above: 90},
	Action:    whaleguardian.ActionAlert,
}

var _ = Describe("compiling policies", func() {

	It("knows the built-in condition kinds and registers more", func() {
		r := NewRegistry()
		Expect(r.Kinds()).To(Equal([]string{KindCount, KindDuration, KindRemoved, KindThreshold}))
		r.Register("always", func(whaleguardian.ConditionSpec) (Condition, error) {
			return ConditionFunc(func(Input) (bool, string) { return true, "always" }), nil
		})
		set := Successful(r.Compile([]whaleguardian.Policy{{
			ID:        "always",
			Condition: whaleguardian.ConditionSpec{Kind: "always"},
			Action:    whaleguardian.ActionAlert,
		}}))
		snap := whaleguardian.NewSnapshot(t0, running("1", "one"))
		Expect(set.Evaluate(snap, nil, nil)).To(ConsistOf(
			And(ForPolicy("always"), ForContainer("1"), HaveField("Observed", "always"))))
	})

	It("keeps the declaration order", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{unhealthyRestart, highCPUAlert}))
		Expect(set.Len()).To(Equal(2))
		Expect(set.Policies()).To(HaveExactElements(HaveID("unhealthy-restart"), HaveID("high-cpu")))
		policy, ok := set.Policy("high-cpu")
		Expect(ok).To(BeTrue())
		Expect(policy).To(HaveID("high-cpu"))
		_, ok = set.Policy("nada")
		Expect(ok).To(BeFalse())
		polls, window := set.Lookback()
		Expect(polls).To(Equal(2))
		Expect(window).To(BeZero())
	})

	DescribeTable("rejects invalid policies",
		func(policy whaleguardian.Policy, reason string) {
			_, err := NewRegistry().Compile([]whaleguardian.Policy{highCPUAlert, policy})
			Expect(err).To(MatchError(whaleguardian.ErrPolicyInvalid))
			Expect(err).To(MatchError(ContainSubstring(reason)))
		},
		Entry("missing ID", whaleguardian.Policy{Action: whaleguardian.ActionAlert}, "lacks an ID"),
		Entry("duplicate ID", highCPUAlert, "duplicate ID"),
		Entry("unknown action", whaleguardian.Policy{ID: "p", Action: "reboot",
			Condition: whaleguardian.ConditionSpec{Kind: KindRemoved}}, "unknown action"),
		Entry("unknown kind", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Condition: whaleguardian.ConditionSpec{Kind: "vibes"}}, "unknown condition kind"),
		Entry("malformed glob", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Selector:  whaleguardian.Selector{Name: "[a-"},
			Condition: whaleguardian.ConditionSpec{Kind: KindRemoved}}, "malformed pattern"),
		Entry("unknown metric", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: "karma"}}, "unknown threshold metric"),
		Entry("polls and for", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Condition: whaleguardian.ConditionSpec{Kind: KindDuration, State: "exited", Polls: 1, For: time.Second}}, "either polls or for"),
		Entry("unknown state", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Condition: whaleguardian.ConditionSpec{Kind: KindDuration, State: "grumpy", Polls: 1}}, "unknown state"),
		Entry("count without window", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionAlert,
			Condition: whaleguardian.ConditionSpec{Kind: KindCount, Event: EventExit}}, "positive window"),
		Entry("corrective removed", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionRestart,
			Condition: whaleguardian.ConditionSpec{Kind: KindRemoved}}, "only alert action"),
		Entry("limit without window", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionRestart,
			MaxActions: 3, Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: MetricRestartCount}},
			"without action window"),
		Entry("signal for restart", whaleguardian.Policy{ID: "p", Action: whaleguardian.ActionRestart,
			KillSignal: "SIGTERM", Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: MetricRestartCount}},
			"kill signal"),
	)

})

var _ = Describe("evaluating policies", func() {

	It("flags an unhealthy container only after more than two polls", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{unhealthyRestart}))
		c1 := running("c1", "c1")
		c1.Health = whaleguardian.HealthUnhealthy
		results := cycles(set,
			[]whaleguardian.Container{c1},
			[]whaleguardian.Container{c1},
			[]whaleguardian.Container{c1},
			[]whaleguardian.Container{c1})
		Expect(results[0]).To(BeEmpty())
		Expect(results[1]).To(BeEmpty())
		Expect(results[2]).To(ConsistOf(And(
			ForContainer("c1"), ForPolicy("unhealthy-restart"),
			HaveAction(whaleguardian.ActionRestart),
			HaveField("DetectedAt", at(2)),
			HaveField("Observed", "unhealthy for 3 polls"))))
		Expect(results[3]).To(HaveLen(1), "no coalescing over cycles")
	})

	It("flags a container held in a state for too long", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{{
			ID:        "exited-too-long",
			Condition: whaleguardian.ConditionSpec{Kind: KindDuration, State: "exited", For: 25 * time.Second},
			Action:    whaleguardian.ActionAlert,
		}}))
		c := running("c", "c")
		c.Status = whaleguardian.StatusExited
		results := cycles(set,
			[]whaleguardian.Container{running("c", "c")},
			[]whaleguardian.Container{c},
			[]whaleguardian.Container{c},
			[]whaleguardian.Container{c},
			[]whaleguardian.Container{c},
			[]whaleguardian.Container{c})
		Expect(results[0]).To(BeEmpty())
		Expect(results[1]).To(BeEmpty())
		Expect(results[2]).To(BeEmpty())
		Expect(results[3]).To(BeEmpty())
		Expect(results[4]).To(ConsistOf(HaveField("Observed", "exited for 30s")))
		Expect(results[5]).To(ConsistOf(HaveField("Observed", "exited for 40s")),
			"history doesn't reach back to the transition anymore")
	})

	It("counts restarts within a window", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{{
			ID:        "flapping",
			Condition: whaleguardian.ConditionSpec{Kind: KindCount, Event: EventRestart, Above: 1, Window: 30 * time.Second},
			Action:    whaleguardian.ActionStop,
		}}))
		restarts := func(n int) whaleguardian.Container {
			c := running("c", "c")
			c.RestartCount = n
			return c
		}
		results := cycles(set,
			[]whaleguardian.Container{restarts(0)},
			[]whaleguardian.Container{restarts(1)},
			[]whaleguardian.Container{restarts(1)},
			[]whaleguardian.Container{restarts(2)},
			[]whaleguardian.Container{restarts(2)},
			[]whaleguardian.Container{restarts(2)},
			[]whaleguardian.Container{restarts(2)})
		Expect(results[1]).To(BeEmpty())
		Expect(results[2]).To(BeEmpty())
		Expect(results[3]).To(ConsistOf(HaveField("Observed", "2 restart transitions within 30s")))
		Expect(results[4]).To(HaveLen(1))
		Expect(results[5]).To(BeEmpty(), "first restart left the window")
		Expect(results[6]).To(BeEmpty())
	})

	It("counts exits and unhealthy transitions", func() {
		exited := running("c", "c")
		exited.Status = whaleguardian.StatusExited
		sick := running("c", "c")
		sick.Health = whaleguardian.HealthUnhealthy

		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{
			{ID: "exits", Action: whaleguardian.ActionAlert,
				Condition: whaleguardian.ConditionSpec{Kind: KindCount, Event: EventExit, Window: time.Hour}},
			{ID: "sickly", Action: whaleguardian.ActionAlert,
				Condition: whaleguardian.ConditionSpec{Kind: KindCount, Event: EventUnhealthy, Window: time.Hour}},
		}))
		results := cycles(set,
			[]whaleguardian.Container{running("c", "c")},
			[]whaleguardian.Container{sick},
			[]whaleguardian.Container{exited})
		Expect(results[1]).To(ConsistOf(ForPolicy("sickly")))
		Expect(results[2]).To(ConsistOf(ForPolicy("exits"), ForPolicy("sickly")))
	})

	It("thresholds only valid usage samples", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{highCPUAlert, {
			ID:        "memory-hog",
			Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: MetricMemoryBytes, Above: 1 << 20},
			Action:    whaleguardian.ActionKill,
		}}))
		hot := running("hot", "hot")
		hot.Usage = whaleguardian.Usage{CPUPercent: 95.5, MemoryBytes: 2 << 20, Valid: true}
		unsampled := running("unsampled", "unsampled")
		unsampled.Usage = whaleguardian.Usage{CPUPercent: 99}
		snap := whaleguardian.NewSnapshot(t0, hot, unsampled)
		Expect(set.Evaluate(snap, nil, nil)).To(HaveExactElements(
			And(ForPolicy("high-cpu"), ForContainer("hot"), HaveField("Observed", "cpu_percent=95.5")),
			And(ForPolicy("memory-hog"), ForContainer("hot"), HaveField("Observed", "memory_bytes=2097152")),
		))
	})

	It("alerts about removed containers exactly once", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{unhealthyRestart, {
			ID:        "vanished",
			Condition: whaleguardian.ConditionSpec{Kind: KindRemoved},
			Action:    whaleguardian.ActionAlert,
		}}))
		sick := running("sick", "sick")
		sick.Health = whaleguardian.HealthUnhealthy
		results := cycles(set,
			[]whaleguardian.Container{sick, running("other", "other")},
			[]whaleguardian.Container{sick, running("other", "other")},
			[]whaleguardian.Container{sick},
			[]whaleguardian.Container{sick},
			[]whaleguardian.Container{})
		Expect(results[1]).To(BeEmpty())
		Expect(results[2]).To(ConsistOf(
			And(ForPolicy("unhealthy-restart"), ForContainer("sick")),
			And(ForPolicy("vanished"), ForContainer("other"))))
		Expect(results[3]).To(ConsistOf(And(ForPolicy("unhealthy-restart"), ForContainer("sick"))))
		Expect(results[4]).To(ConsistOf(And(ForPolicy("vanished"), ForContainer("sick"))),
			"tombstones don't violate other conditions")
	})

	It("yields one violation per matching policy, deterministically", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{highCPUAlert, unhealthyRestart}))
		history := NewHistory(3)
		var prev *whaleguardian.Snapshot
		mk := func(id string) whaleguardian.Container {
			c := running(id, id)
			c.Health = whaleguardian.HealthUnhealthy
			c.Usage = whaleguardian.Usage{CPUPercent: 100, Valid: true}
			return c
		}
		for cycle := 0; cycle < 3; cycle++ {
			snap := whaleguardian.Build(prev, at(cycle), true, []whaleguardian.Observation{
				{Container: mk("b"), At: at(cycle)},
				{Container: mk("a"), At: at(cycle)},
			})
			if cycle == 2 {
				first := set.Evaluate(snap, prev, history)
				Expect(first).To(HaveExactElements(
					And(ForPolicy("high-cpu"), ForContainer("a")),
					And(ForPolicy("high-cpu"), ForContainer("b")),
					And(ForPolicy("unhealthy-restart"), ForContainer("a")),
					And(ForPolicy("unhealthy-restart"), ForContainer("b")),
				))
				for i := 0; i < 5; i++ {
					Expect(set.Evaluate(snap, prev, history)).To(Equal(first))
				}
			}
			history.Record(snap)
			prev = snap
		}
	})

	It("selects containers", func() {
		set := Successful(NewRegistry().Compile([]whaleguardian.Policy{{
			ID: "select",
			Selector: whaleguardian.Selector{
				Name: "web-*", Image: "nginx:*", Project: "shop",
				Labels: map[string]string{"tier": "frontend"},
			},
			Condition: whaleguardian.ConditionSpec{Kind: KindThreshold, Metric: MetricRestartCount},
			Action:    whaleguardian.ActionAlert,
		}}))
		c := func(id, name, image, project, tier string) whaleguardian.Container {
			cntr := running(id, name)
			cntr.Image = image
			cntr.Project = project
			cntr.Labels = map[string]string{"tier": tier}
			cntr.RestartCount = 1
			return cntr
		}
		snap := whaleguardian.NewSnapshot(t0,
			c("1", "web-1", "nginx:1.27", "shop", "frontend"),
			c("2", "db-1", "nginx:1.27", "shop", "frontend"),
			c("3", "web-2", "httpd:2", "shop", "frontend"),
			c("4", "web-3", "nginx:1.27", "blog", "frontend"),
			c("5", "web-4", "nginx:1.27", "shop", "backend"))
		Expect(set.Evaluate(snap, nil, nil)).To(ConsistOf(ForContainer("1")))
	})

	It("handles empty sets and snapshots", func() {
		var set *Set
		Expect(set.Evaluate(whaleguardian.NewSnapshot(t0, running("1", "1")), nil, nil)).To(BeEmpty())
		set = Successful(NewRegistry().Compile(nil))
		Expect(set.Evaluate(nil, nil, nil)).To(BeEmpty())
	})

})
