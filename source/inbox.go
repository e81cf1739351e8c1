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
	"sync"
	"time"

	"github.com/thediveo/whaleguardian"
)

// Inbox is a bounded queue of observations between the event listener and the
// guardian loop. Observations that don't fit anymore are dropped, marking the
// inbox as dirty: only a full container listing that started after the loss
// can then make up for the dropped observations.
type Inbox struct {
	mu     sync.Mutex
	obs    []whaleguardian.Observation
	size   int
	lostAt time.Time // most recent loss of observations or events, zero if none.
	drops  uint64
}

// NewInbox returns a new inbox holding at most the specified number of
// observations; sizes below 1 are taken as 1.
func NewInbox(size int) *Inbox {
	if size < 1 {
		size = 1
	}
	return &Inbox{size: size}
}

// Push appends an observation, returning false if the inbox was full and the
// observation thus has been dropped.
func (in *Inbox) Push(obs whaleguardian.Observation) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.obs) >= in.size {
		in.drops++
		in.lostAt = time.Now()
		return false
	}
	in.obs = append(in.obs, obs)
	return true
}

// MarkLost marks the inbox as dirty, as events might have been lost, such as
// when the event stream broke down.
func (in *Inbox) MarkLost() {
	in.mu.Lock()
	in.lostAt = time.Now()
	in.mu.Unlock()
}

// Dirty returns true if observations might have been lost.
func (in *Inbox) Dirty() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return !in.lostAt.IsZero()
}

// Drain atomically takes all queued observations. If reconciled is non-zero
// and the most recent loss happened before the reconciling listing started
// at this instant, then the inbox additionally becomes clean again.
func (in *Inbox) Drain(reconciled time.Time) []whaleguardian.Observation {
	in.mu.Lock()
	defer in.mu.Unlock()
	obs := in.obs
	in.obs = nil
	if !reconciled.IsZero() && !in.lostAt.IsZero() && in.lostAt.Before(reconciled) {
		in.lostAt = time.Time{}
	}
	return obs
}

// Len returns the number of queued observations.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.obs)
}

// Drops returns the total number of dropped observations so far.
func (in *Inbox) Drops() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.drops
}
