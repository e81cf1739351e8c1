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
	"golang.org/x/exp/slices"
)

// MinHistoryLength is the shortest history kept per container.
const MinHistoryLength = 2

// History keeps a bounded window of prior records per container. A History
// must only be used from a single goroutine, except for Clone-d copies.
type History struct {
	length  int
	records map[string][]whaleguardian.Container // oldest first.
}

// NewHistory returns an empty history keeping the specified number of prior
// records per container, but at least MinHistoryLength.
func NewHistory(length int) *History {
	if length < MinHistoryLength {
		length = MinHistoryLength
	}
	return &History{
		length:  length,
		records: map[string][]whaleguardian.Container{},
	}
}

// DefaultHistoryLength returns a history length covering the longest look
// back of any condition in the specified policy set, given the cycle
// interval.
func DefaultHistoryLength(set *Set, interval time.Duration) int {
	polls, window := set.Lookback()
	length := polls + 1
	if window > 0 && interval > 0 {
		if n := int((window+interval-1)/interval) + 1; n > length {
			length = n
		}
	}
	if length < MinHistoryLength {
		length = MinHistoryLength
	}
	return length
}

// Length returns the number of prior records kept per container.
func (h *History) Length() int { return h.length }

// Of returns the prior records of the specified container, oldest first.
// A nil history is empty.
func (h *History) Of(id string) []whaleguardian.Container {
	if h == nil {
		return nil
	}
	return slices.Clone(h.records[id])
}

// Containers returns the number of containers with prior records.
func (h *History) Containers() int {
	if h == nil {
		return 0
	}
	return len(h.records)
}

// Record the live containers of the specified snapshot, dropping the oldest
// records beyond the history length. The history of containers not present
// in the snapshot anymore, such as tombstoned containers, gets dropped.
func (h *History) Record(snap *whaleguardian.Snapshot) {
	seen := make(map[string]struct{}, snap.Len())
	for _, cntr := range snap.Containers() {
		seen[cntr.ID] = struct{}{}
		records := append(h.records[cntr.ID], cntr)
		if len(records) > h.length {
			records = slices.Delete(records, 0, len(records)-h.length)
		}
		h.records[cntr.ID] = records
	}
	for id := range h.records {
		if _, ok := seen[id]; !ok {
			delete(h.records, id)
		}
	}
}

// Resize changes the history length, trimming the oldest records as
// necessary.
func (h *History) Resize(length int) {
	if length < MinHistoryLength {
		length = MinHistoryLength
	}
	h.length = length
	for id, records := range h.records {
		if len(records) > length {
			h.records[id] = slices.Delete(records, 0, len(records)-length)
		}
	}
}
