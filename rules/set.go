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
	"path"
	"time"

	"github.com/thediveo/whaleguardian"
)

// rule is a compiled policy.
type rule struct {
	policy    whaleguardian.Policy
	condition Condition
	polls     int
	window    time.Duration
	tombs     bool // condition wants to see tombstones.
}

// Set is an immutable, compiled set of policies, in declaration order.
type Set struct {
	rules []rule
	byID  map[string]int
}

// Compile the specified policies into a Set, using the condition variants
// of this registry. Compile fails with ErrPolicyInvalid for the first
// malformed policy; it never returns a partially compiled set.
func (r *Registry) Compile(policies []whaleguardian.Policy) (*Set, error) {
	set := &Set{
		rules: make([]rule, 0, len(policies)),
		byID:  make(map[string]int, len(policies)),
	}
	for _, policy := range policies {
		if policy.ID == "" {
			return nil, whaleguardian.Invalid(policy.ID, "lacks an ID")
		}
		if _, ok := set.byID[policy.ID]; ok {
			return nil, whaleguardian.Invalid(policy.ID, "duplicate ID")
		}
		if err := validate(policy); err != nil {
			return nil, err
		}
		factory, ok := r.factory(policy.Condition.Kind)
		if !ok {
			return nil, whaleguardian.Invalid(policy.ID, "unknown condition kind '%s'", policy.Condition.Kind)
		}
		cond, err := factory(policy.Condition)
		if err != nil {
			return nil, whaleguardian.Invalid(policy.ID, "%s condition: %s", policy.Condition.Kind, err.Error())
		}
		rl := rule{policy: policy, condition: cond}
		if w, ok := cond.(Windowed); ok {
			rl.polls, rl.window = w.Window()
		}
		if t, ok := cond.(TombstoneCondition); ok {
			rl.tombs = t.Tombstones()
		}
		if rl.tombs && policy.Action.Corrective() {
			return nil, whaleguardian.Invalid(policy.ID,
				"%s condition allows only alert action", policy.Condition.Kind)
		}
		set.byID[policy.ID] = len(set.rules)
		set.rules = append(set.rules, rl)
	}
	return set, nil
}

// validate the parts of a policy common to all conditions.
func validate(policy whaleguardian.Policy) error {
	switch policy.Action {
	case whaleguardian.ActionRestart, whaleguardian.ActionStop, whaleguardian.ActionKill, whaleguardian.ActionAlert:
	default:
		return whaleguardian.Invalid(policy.ID, "unknown action '%s'", policy.Action)
	}
	for _, pattern := range []string{policy.Selector.Name, policy.Selector.Image} {
		if _, err := path.Match(pattern, ""); err != nil {
			return whaleguardian.Invalid(policy.ID, "malformed pattern '%s'", pattern)
		}
	}
	if policy.Cooldown < 0 || policy.StopTimeout < 0 {
		return whaleguardian.Invalid(policy.ID, "negative cooldown or stop timeout")
	}
	if policy.MaxActions < 0 {
		return whaleguardian.Invalid(policy.ID, "negative action limit")
	}
	if policy.MaxActions > 0 && policy.ActionWindow <= 0 {
		return whaleguardian.Invalid(policy.ID, "action limit without action window")
	}
	if policy.KillSignal != "" && policy.Action != whaleguardian.ActionKill {
		return whaleguardian.Invalid(policy.ID, "kill signal for %s action", policy.Action)
	}
	return nil
}

// Len returns the number of policies in this set. A nil set is empty.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Policies returns the policies of this set in declaration order.
func (s *Set) Policies() []whaleguardian.Policy {
	if s == nil {
		return nil
	}
	policies := make([]whaleguardian.Policy, 0, len(s.rules))
	for _, rl := range s.rules {
		policies = append(policies, rl.policy)
	}
	return policies
}

// Policy returns the policy with the specified ID, if present.
func (s *Set) Policy(id string) (whaleguardian.Policy, bool) {
	if s == nil {
		return whaleguardian.Policy{}, false
	}
	idx, ok := s.byID[id]
	if !ok {
		return whaleguardian.Policy{}, false
	}
	return s.rules[idx].policy, true
}

// Lookback returns the largest number of polls and the longest time window
// any condition in this set looks back into container history.
func (s *Set) Lookback() (polls int, window time.Duration) {
	if s == nil {
		return 0, 0
	}
	for _, rl := range s.rules {
		if rl.polls > polls {
			polls = rl.polls
		}
		if rl.window > window {
			window = rl.window
		}
	}
	return polls, window
}

// Evaluate the current snapshot, together with the previous snapshot and the
// history of prior container records, against the policies of this set. It
// returns one violation per policy and container violating it, ordered by
// policy declaration and container ID. Tombstones are only checked by
// conditions explicitly asking for them.
//
// Evaluate doesn't change any of its inputs; in particular, it doesn't record
// the current snapshot in the history.
func (s *Set) Evaluate(current, previous *whaleguardian.Snapshot, history *History) []whaleguardian.Violation {
	if s.Len() == 0 {
		return nil
	}
	var now time.Time
	if current != nil {
		now = current.At
	}
	cntrs := current.All()
	violations := []whaleguardian.Violation{}
	for _, rl := range s.rules {
		for _, cntr := range cntrs {
			if cntr.Tombstone() && !rl.tombs {
				continue
			}
			if !rl.policy.Selector.Matches(cntr) {
				continue
			}
			in := Input{
				Current: cntr,
				History: history.Of(cntr.ID),
				Now:     now,
			}
			if prev, ok := previous.Container(cntr.ID); ok {
				in.Previous = &prev
			}
			violated, observed := rl.condition.Check(in)
			if !violated {
				continue
			}
			violations = append(violations, whaleguardian.Violation{
				ContainerID:   cntr.ID,
				ContainerName: cntr.Name,
				PolicyID:      rl.policy.ID,
				Action:        rl.policy.Action,
				DetectedAt:    now,
				Observed:      observed,
			})
		}
	}
	return violations
}
