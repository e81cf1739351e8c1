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
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian"
)

// The built-in condition kinds.
const (
	KindThreshold = "threshold"
	KindDuration  = "duration"
	KindCount     = "count"
	KindRemoved   = "removed"
)

// The metrics known to threshold conditions.
const (
	MetricCPUPercent   = "cpu_percent"
	MetricMemoryBytes  = "memory_bytes"
	MetricRestartCount = "restart_count"
)

// The transitions known to count conditions.
const (
	EventRestart   = "restart"
	EventExit      = "exit"
	EventUnhealthy = "unhealthy"
)

// threshold is violated when a metric of a live container is above a limit.
type threshold struct {
	metric string
	above  float64
}

func newThreshold(spec whaleguardian.ConditionSpec) (Condition, error) {
	switch spec.Metric {
	case MetricCPUPercent, MetricMemoryBytes, MetricRestartCount:
	default:
		return nil, errors.Errorf("unknown threshold metric '%s'", spec.Metric)
	}
	if spec.Above < 0 {
		return nil, errors.New("threshold must not be negative")
	}
	return &threshold{metric: spec.Metric, above: spec.Above}, nil
}

func (t *threshold) Check(in Input) (bool, string) {
	var value float64
	switch t.metric {
	case MetricCPUPercent:
		if !in.Current.Usage.Valid {
			return false, ""
		}
		value = in.Current.Usage.CPUPercent
	case MetricMemoryBytes:
		if !in.Current.Usage.Valid {
			return false, ""
		}
		value = float64(in.Current.Usage.MemoryBytes)
	case MetricRestartCount:
		value = float64(in.Current.RestartCount)
	}
	if value <= t.above {
		return false, ""
	}
	return true, t.metric + "=" + strconv.FormatFloat(value, 'f', -1, 64)
}

// duration is violated when a container stays in a particular status or
// health for more than a number of consecutive polls, or for longer than a
// period of time.
type duration struct {
	state string
	polls int
	dur   time.Duration
}

func newDuration(spec whaleguardian.ConditionSpec) (Condition, error) {
	if !whaleguardian.Status(spec.State).Valid() && !whaleguardian.Health(spec.State).Valid() ||
		spec.State == string(whaleguardian.StatusRemoved) {
		return nil, errors.Errorf("unknown state '%s'", spec.State)
	}
	if (spec.Polls > 0) == (spec.For > 0) {
		return nil, errors.New("duration needs either polls or for, but not both")
	}
	if spec.Polls < 0 || spec.For < 0 {
		return nil, errors.New("duration must not be negative")
	}
	return &duration{state: spec.State, polls: spec.Polls, dur: spec.For}, nil
}

// in returns true if the container is in the state of interest.
func (d *duration) in(c whaleguardian.Container) bool {
	return string(c.Status) == d.state || string(c.Health) == d.state
}

func (d *duration) Check(in Input) (bool, string) {
	if !d.in(in.Current) {
		return false, ""
	}
	// Walk back through the history to find the beginning of the current
	// run of records in the state of interest.
	run := 1
	since := in.Current.Observed
	idx := len(in.History) - 1
	for ; idx >= 0 && d.in(in.History[idx]); idx-- {
		run++
		since = in.History[idx].Observed
	}
	if d.polls > 0 {
		if run <= d.polls {
			return false, ""
		}
		return true, fmt.Sprintf("%s for %d polls", d.state, run)
	}
	// When the run reaches back beyond the history, the latest transition
	// might be even older.
	if idx < 0 && !in.Current.Transitioned.IsZero() && in.Current.Transitioned.Before(since) {
		since = in.Current.Transitioned
	}
	held := in.Now.Sub(since)
	if held <= d.dur {
		return false, ""
	}
	return true, fmt.Sprintf("%s for %s", d.state, held.Round(time.Second))
}

func (d *duration) Window() (int, time.Duration) { return d.polls, d.dur }

// count is violated when the number of transitions of a particular kind
// within a time window is above a limit.
type count struct {
	event  string
	above  int
	window time.Duration
}

func newCount(spec whaleguardian.ConditionSpec) (Condition, error) {
	switch spec.Event {
	case EventRestart, EventExit, EventUnhealthy:
	default:
		return nil, errors.Errorf("unknown event '%s'", spec.Event)
	}
	if spec.Window <= 0 {
		return nil, errors.New("count needs a positive window")
	}
	if spec.Above < 0 || spec.Above != float64(int(spec.Above)) {
		return nil, errors.New("count limit must be a non-negative integer")
	}
	return &count{event: spec.Event, above: int(spec.Above), window: spec.Window}, nil
}

// transitions returns how many transitions happened from a to b.
func (c *count) transitions(a, b whaleguardian.Container) int {
	switch c.event {
	case EventRestart:
		if b.RestartCount > a.RestartCount {
			return b.RestartCount - a.RestartCount
		}
		if !a.StartedAt.IsZero() && b.StartedAt.After(a.StartedAt) {
			return 1
		}
	case EventExit:
		if a.Status != b.Status &&
			(b.Status == whaleguardian.StatusExited || b.Status == whaleguardian.StatusDead) {
			return 1
		}
	case EventUnhealthy:
		if a.Health != whaleguardian.HealthUnhealthy && b.Health == whaleguardian.HealthUnhealthy {
			return 1
		}
	}
	return 0
}

func (c *count) Check(in Input) (bool, string) {
	records := append(append([]whaleguardian.Container(nil), in.History...), in.Current)
	horizon := in.Now.Add(-c.window)
	n := 0
	for idx := 1; idx < len(records); idx++ {
		if records[idx].Observed.Before(horizon) {
			continue
		}
		n += c.transitions(records[idx-1], records[idx])
	}
	if n <= c.above {
		return false, ""
	}
	return true, fmt.Sprintf("%d %s transitions within %s", n, c.event, c.window)
}

func (c *count) Window() (int, time.Duration) { return 0, c.window }

// removed is violated by tombstones, that is, when a container has vanished.
type removed struct{}

func newRemoved(spec whaleguardian.ConditionSpec) (Condition, error) {
	return removed{}, nil
}

func (removed) Check(in Input) (bool, string) {
	if !in.Current.Tombstone() {
		return false, ""
	}
	return true, "removed"
}

func (removed) Tombstones() bool { return true }
