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

package whaleguardian

import (
	"path"
	"time"
)

// Action is the kind of enforcement a policy triggers when violated.
type Action string

// The enforcement actions known to the guardian.
const (
	ActionRestart Action = "restart"
	ActionStop    Action = "stop"
	ActionKill    Action = "kill"
	ActionAlert   Action = "alert" // alert-only, never touches the container.
)

// Corrective returns true if the action mutates the container through the
// container engine, as opposed to alert-only actions.
func (a Action) Corrective() bool {
	switch a {
	case ActionRestart, ActionStop, ActionKill:
		return true
	}
	return false
}

// Selector matches containers by name, image, composer project, and labels.
// Name and image are glob patterns in path.Match syntax. All specified
// criteria must match; the zero Selector matches all containers.
type Selector struct {
	Name    string            `yaml:"name,omitempty" json:"name,omitempty"`
	Image   string            `yaml:"image,omitempty" json:"image,omitempty"`
	Project string            `yaml:"project,omitempty" json:"project,omitempty"`
	Labels  map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"` // "*" matches any value.
}

// Matches returns true if the specified container matches all criteria of
// this selector. Malformed glob patterns never match; they are caught when
// policies get validated.
func (s Selector) Matches(c Container) bool {
	if s.Name != "" {
		if ok, err := path.Match(s.Name, c.Name); err != nil || !ok {
			return false
		}
	}
	if s.Image != "" {
		if ok, err := path.Match(s.Image, c.Image); err != nil || !ok {
			return false
		}
	}
	if s.Project != "" && s.Project != c.Project {
		return false
	}
	for key, value := range s.Labels {
		actual, ok := c.Labels[key]
		if !ok || (value != "*" && value != actual) {
			return false
		}
	}
	return true
}

// ConditionSpec is the declarative description of a policy condition. Kind
// selects the condition variant from the condition registry, the remaining
// fields parameterize it; which fields apply depends on the variant.
type ConditionSpec struct {
	Kind   string        `yaml:"kind" json:"kind"`
	Metric string        `yaml:"metric,omitempty" json:"metric,omitempty"` // threshold
	Above  float64       `yaml:"above,omitempty" json:"above,omitempty"`   // threshold, count
	State  string        `yaml:"state,omitempty" json:"state,omitempty"`   // duration
	Polls  int           `yaml:"polls,omitempty" json:"polls,omitempty"`   // duration
	For    time.Duration `yaml:"for,omitempty" json:"for,omitempty"`       // duration
	Event  string        `yaml:"event,omitempty" json:"event,omitempty"`   // count
	Window time.Duration `yaml:"window,omitempty" json:"window,omitempty"` // count
}

// Policy declares a condition containers must not meet, and what to do about
// containers meeting it anyway.
type Policy struct {
	ID           string        `json:"id"`
	Selector     Selector      `json:"selector"`
	Condition    ConditionSpec `json:"condition"`
	Action       Action        `json:"action"`
	Cooldown     time.Duration `json:"cooldown"`      // minimum spacing of corrective actions.
	MaxActions   int           `json:"max_actions"`   // optional cap of actions per window; 0 is unlimited.
	ActionWindow time.Duration `json:"action_window"` // window for MaxActions.
	StopTimeout  time.Duration `json:"stop_timeout"`  // grace period for restart/stop; 0 is engine default.
	KillSignal   string        `json:"kill_signal"`   // signal for kill; empty is engine default.
}
