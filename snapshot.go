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
	"sort"
	"time"
)

// Observation is a single piece of raw container state as gathered by a state
// source, either from a full container listing or from an individual
// container lifecycle event. When Gone is set, the container is known to have
// been destroyed and only its ID is of relevance.
type Observation struct {
	Container Container // observed container state; ID is always set.
	Gone      bool      // container is known to have vanished.
	At        time.Time // when the observation was made.
}

// Batch is the raw outcome of collecting container state for a single cycle.
// Complete batches result from a full container listing, so any previously
// known container missing from a complete batch has vanished.
type Batch struct {
	Observations []Observation
	Complete     bool
}

// Snapshot is an immutable point-in-time view on all tracked containers,
// together with the tombstones of containers that vanished since the previous
// snapshot.
//
// A nil *Snapshot is a valid, empty snapshot.
type Snapshot struct {
	At         time.Time
	containers map[string]Container // live (that is, existing) containers by ID.
	tombstones map[string]Container // containers gone since the previous snapshot.
}

// NewSnapshot returns a snapshot consisting of the specified containers,
// without any tombstones. This is mainly useful for seeding state and for
// tests.
func NewSnapshot(at time.Time, containers ...Container) *Snapshot {
	s := &Snapshot{
		At:         at,
		containers: make(map[string]Container, len(containers)),
		tombstones: map[string]Container{},
	}
	for _, c := range containers {
		s.containers[c.ID] = c
	}
	return s
}

// Len returns the number of live containers in this snapshot, not counting
// tombstones.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.containers)
}

// Container returns the live container with the specified ID, if present.
func (s *Snapshot) Container(id string) (Container, bool) {
	if s == nil {
		return Container{}, false
	}
	c, ok := s.containers[id]
	return c, ok
}

// Tombstone returns the tombstone for the container with the specified ID, if
// the container vanished with this snapshot.
func (s *Snapshot) Tombstone(id string) (Container, bool) {
	if s == nil {
		return Container{}, false
	}
	c, ok := s.tombstones[id]
	return c, ok
}

// Containers returns the live containers, sorted by ID.
func (s *Snapshot) Containers() []Container {
	if s == nil {
		return nil
	}
	return sorted(s.containers)
}

// Tombstones returns the tombstones of the containers that vanished with this
// snapshot, sorted by ID.
func (s *Snapshot) Tombstones() []Container {
	if s == nil {
		return nil
	}
	return sorted(s.tombstones)
}

// Portfolio returns the live containers grouped by their composer projects.
func (s *Snapshot) Portfolio() *Portfolio {
	return NewPortfolio(s.Containers()...)
}

// All returns both the live containers and the tombstones, sorted by ID.
func (s *Snapshot) All() []Container {
	if s == nil {
		return nil
	}
	all := make([]Container, 0, len(s.containers)+len(s.tombstones))
	for _, c := range s.containers {
		all = append(all, c)
	}
	for _, c := range s.tombstones {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

func sorted(m map[string]Container) []Container {
	cntrs := make([]Container, 0, len(m))
	for _, c := range m {
		cntrs = append(cntrs, c)
	}
	sort.Slice(cntrs, func(i, j int) bool { return cntrs[i].ID < cntrs[j].ID })
	return cntrs
}

// Build returns a new snapshot at the specified instant, derived from the
// previous snapshot and the observations gathered since.
//
// Observations are deduplicated per container ID, with the most recent
// observation winning; for observations with identical timestamps the later
// one in the list wins. If the observations stem from a complete container
// listing, then the new snapshot starts from scratch, otherwise from the live
// containers of the previous snapshot.
//
// Build synthesizes a tombstone for every container that is live in the
// previous snapshot but not in the new one. As tombstones are never carried
// over into the next snapshot, a vanished container yields exactly one
// tombstone.
func Build(prev *Snapshot, at time.Time, complete bool, observations []Observation) *Snapshot {
	latest := map[string]Observation{}
	order := []string{}
	for _, obs := range observations {
		id := obs.Container.ID
		if id == "" {
			continue
		}
		if seen, ok := latest[id]; ok {
			if obs.At.Before(seen.At) {
				continue // stale news.
			}
		} else {
			order = append(order, id)
		}
		latest[id] = obs
	}

	next := &Snapshot{
		At:         at,
		containers: map[string]Container{},
		tombstones: map[string]Container{},
	}
	if !complete && prev != nil {
		for id, c := range prev.containers {
			next.containers[id] = c
		}
	}
	for _, id := range order {
		obs := latest[id]
		if obs.Gone {
			delete(next.containers, id)
			continue
		}
		cntr := obs.Container
		if cntr.Observed.IsZero() {
			cntr.Observed = obs.At
		}
		if before, ok := prev.Container(id); ok {
			if before.Status == cntr.Status && before.Health == cntr.Health {
				cntr.Transitioned = before.Transitioned
			} else {
				cntr.Transitioned = cntr.Observed
			}
		} else if cntr.Transitioned.IsZero() {
			cntr.Transitioned = cntr.Observed
		}
		next.containers[id] = cntr
	}
	// Lay to rest all those containers that have gone since the previous
	// snapshot.
	if prev != nil {
		for id, c := range prev.containers {
			if _, ok := next.containers[id]; ok {
				continue
			}
			c.Status = StatusRemoved
			c.Transitioned = at
			c.Observed = at
			next.tombstones[id] = c
		}
	}
	return next
}
