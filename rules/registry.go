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
	"sort"
	"sync"
	"time"

	"github.com/thediveo/whaleguardian"
)

// Input is what a condition gets to see when checking a single container.
type Input struct {
	Current  whaleguardian.Container   // current record, possibly a tombstone.
	Previous *whaleguardian.Container  // record in the previous snapshot, if any.
	History  []whaleguardian.Container // prior records, oldest first.
	Now      time.Time                 // instant of the current snapshot.
}

// Condition checks a container against a policy condition. Conditions must
// be pure: the same Input always gives the same result. When violated, the
// observed value that triggered the condition is returned in textual form.
type Condition interface {
	Check(in Input) (violated bool, observed string)
}

// ConditionFunc adapts a plain function to the Condition interface.
type ConditionFunc func(in Input) (bool, string)

// Check calls the function.
func (f ConditionFunc) Check(in Input) (bool, string) { return f(in) }

// TombstoneCondition is implemented by conditions that want to see
// tombstones; all other conditions only get to check live containers.
type TombstoneCondition interface {
	Condition
	Tombstones() bool
}

// Windowed is implemented by conditions that look back into the history of a
// container, either by number of polls or by time.
type Windowed interface {
	Window() (polls int, window time.Duration)
}

// Factory compiles a condition spec into a Condition. Factories return
// errors for malformed specs; the compiler turns them into ErrPolicyInvalid
// errors for the policy concerned.
type Factory func(spec whaleguardian.ConditionSpec) (Condition, error)

// Registry maps condition kinds to their factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in condition variants
// registered.
func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	r.Register(KindThreshold, newThreshold)
	r.Register(KindDuration, newDuration)
	r.Register(KindCount, newCount)
	r.Register(KindRemoved, newRemoved)
	return r
}

// Register the factory for the specified condition kind, replacing any
// factory already registered for this kind.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Kinds returns the registered condition kinds in lexicographic order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) factory(kind string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[kind]
	return f, ok
}
