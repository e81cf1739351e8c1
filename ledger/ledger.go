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

package ledger

import (
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// Defaults for ledgers.
const (
	DefaultCapacity = 4096
	DefaultRecent   = 100
)

// Key identifies a ledger entry.
type Key struct {
	ContainerID string `json:"container_id"`
	PolicyID    string `json:"policy_id"`
}

// KeyOf returns the ledger key for the specified violation.
func KeyOf(v whaleguardian.Violation) Key {
	return Key{ContainerID: v.ContainerID, PolicyID: v.PolicyID}
}

// Entry is the ledger's memory about a particular container and policy.
type Entry struct {
	Key        Key                        `json:"key"`
	LastAction time.Time                  `json:"last_action"` // last successful corrective action; zero if none.
	Actions    []time.Time                `json:"actions"`     // successful corrective actions within the action window, oldest first.
	Saturated  bool                       `json:"saturated"`   // action limit reached and alerted.
	Cooldown   time.Duration              `json:"cooldown"`    // of the policy at the time of the last record.
	Window     time.Duration              `json:"window"`      // action window of the policy at the time of the last record.
	Last       whaleguardian.ActionRecord `json:"last"`        // most recent action record.
}

// clone returns a deep copy of this entry.
func (e Entry) clone() Entry {
	e.Actions = append([]time.Time(nil), e.Actions...)
	return e
}

// Expired returns true if neither the cooldown nor the action window of this
// entry is running anymore at the specified time, so forgetting the entry
// cannot change any future decision.
func (e Entry) Expired(now time.Time) bool {
	if !e.LastAction.IsZero() && now.Before(e.LastAction.Add(e.Cooldown)) {
		return false
	}
	if n := len(e.Actions); n > 0 && e.Actions[n-1].After(now.Add(-e.Window)) {
		return false
	}
	return true
}

// Store persists ledger entries.
type Store interface {
	Load() ([]Entry, error)
	Save(entry Entry) error
	Delete(key Key) error
	Close() error
}

// Ledger is the bounded record of corrective actions, keyed by container and
// policy. Only expired entries ever get evicted: when all entries are still
// live, the ledger grows beyond its capacity instead.
//
// This is not thread-safe: a Ledger must only be used from a single
// goroutine, and other goroutines get copies using Entries and Records.
type Ledger struct {
	capacity int
	size     int // current size limit of the LRU, at least capacity.
	lru      *simplelru.LRU[Key, *Entry]
	recent   []whaleguardian.ActionRecord
	next     int // next ring slot to write.
	filled   bool
	store    Store
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore sets a Store for persisting ledger entries.
func WithStore(store Store) Option {
	return func(l *Ledger) { l.store = store }
}

// WithRecent sets how many recent action records are retained.
func WithRecent(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.recent = make([]whaleguardian.ActionRecord, n)
		}
	}
}

// WithClock sets the source of the current time, as used when restoring
// entries.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = logging.Component(log, "ledger") }
}

// New returns a new, empty Ledger for the specified number of entries;
// non-positive capacities get the DefaultCapacity.
func New(capacity int, opts ...Option) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Ledger{
		capacity: capacity,
		size:     capacity,
		recent:   make([]whaleguardian.ActionRecord, DefaultRecent),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	// only fails for non-positive sizes.
	l.lru, _ = simplelru.NewLRU(capacity, l.evicted)
	return l
}

// evicted gets called by the LRU whenever an entry has been removed from it.
func (l *Ledger) evicted(key Key, _ *Entry) {
	l.log.Debug("evicted ledger entry",
		zap.String("container", key.ContainerID), zap.String("policy", key.PolicyID))
	if l.store == nil {
		return
	}
	if err := l.store.Delete(key); err != nil {
		l.log.Warn("cannot delete evicted ledger entry", zap.Error(err))
	}
}

// Restore the ledger entries from the store, if any; restored entries don't
// get saved again.
func (l *Ledger) Restore() error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.Load()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Last.At.Before(entries[j].Last.At)
	})
	now := l.now()
	for _, entry := range entries {
		if !entry.Last.Action.Corrective() {
			continue
		}
		entry := entry.clone()
		l.put(&entry, now)
	}
	l.log.Info("restored ledger", zap.Int("entries", l.lru.Len()))
	return nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int { return l.lru.Len() }

// Entry returns a copy of the entry for the specified key, if present.
func (l *Ledger) Entry(key Key) (Entry, bool) {
	entry, ok := l.lru.Peek(key)
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// InCooldown returns true if the most recent corrective action for the
// specified key happened less than the cooldown ago.
func (l *Ledger) InCooldown(key Key, cooldown time.Duration, now time.Time) bool {
	entry, ok := l.lru.Peek(key)
	if !ok {
		return false
	}
	return !entry.LastAction.IsZero() && now.Sub(entry.LastAction) < cooldown
}

// Recent returns the number of corrective actions for the specified key
// within the window up to now.
func (l *Ledger) Recent(key Key, window time.Duration, now time.Time) int {
	entry, ok := l.lru.Peek(key)
	if !ok {
		return 0
	}
	horizon := now.Add(-window)
	n := 0
	for _, at := range entry.Actions {
		if at.After(horizon) {
			n++
		}
	}
	return n
}

// RecentFor returns the number of corrective actions for the specified policy
// within the window up to now, summed over all containers.
func (l *Ledger) RecentFor(policyID string, window time.Duration, now time.Time) int {
	n := 0
	for _, key := range l.lru.Keys() {
		if key.PolicyID == policyID {
			n += l.Recent(key, window, now)
		}
	}
	return n
}

// Saturated returns true if the action limit of the specified key has been
// reached and alerted.
func (l *Ledger) Saturated(key Key) bool {
	entry, ok := l.lru.Peek(key)
	return ok && entry.Saturated
}

// Record an action record, keeping only the corrective actions within the
// specified action window. A successful corrective action starts a new
// cooldown and clears any saturation. If the record is a limit skip, then
// the key becomes saturated. Records of alert-only actions only go into the
// ring of recent records, as they never take part in cooldowns or limits.
//
// Errors persisting the updated entry are returned, but the in-memory ledger
// is updated anyway.
func (l *Ledger) Record(rec whaleguardian.ActionRecord, cooldown, window time.Duration) error {
	l.recent[l.next] = rec
	l.next = (l.next + 1) % len(l.recent)
	if l.next == 0 {
		l.filled = true
	}
	if !rec.Action.Corrective() {
		return nil
	}
	key := KeyOf(rec.Violation)
	entry, ok := l.lru.Get(key)
	if !ok {
		entry = &Entry{Key: key}
	}
	entry.Last = rec
	entry.Cooldown = cooldown
	entry.Window = window
	switch {
	case rec.Corrected():
		entry.LastAction = rec.At
		entry.Actions = append(entry.Actions, rec.At)
		entry.Saturated = false
	case rec.Outcome == whaleguardian.OutcomeSkippedLimit:
		entry.Saturated = true
	}
	if len(entry.Actions) > 0 {
		horizon := rec.At.Add(-window)
		keep := 0
		for keep < len(entry.Actions) && !entry.Actions[keep].After(horizon) {
			keep++
		}
		entry.Actions = append([]time.Time(nil), entry.Actions[keep:]...)
	}
	if !ok {
		l.put(entry, rec.At)
	}
	if l.store != nil {
		return l.store.Save(entry.clone())
	}
	return nil
}

// put adds a new entry. When at capacity, it first evicts the least recently
// used expired entries; if there are none, the ledger grows beyond its
// capacity.
func (l *Ledger) put(entry *Entry, now time.Time) {
	if l.lru.Contains(entry.Key) {
		l.lru.Add(entry.Key, entry)
		return
	}
	if l.lru.Len() >= l.capacity {
		for _, key := range l.lru.Keys() { // oldest first.
			if l.lru.Len() < l.capacity {
				break
			}
			if old, ok := l.lru.Peek(key); ok && old.Expired(now) {
				l.lru.Remove(key)
			}
		}
	}
	if l.lru.Len() >= l.size {
		l.size = l.lru.Len() + 1
		l.lru.Resize(l.size)
		l.log.Warn("ledger exceeds its capacity with live cooldowns",
			zap.Int("capacity", l.capacity), zap.Int("entries", l.size))
	}
	l.lru.Add(entry.Key, entry)
}

// Entries returns copies of all entries, sorted by container ID and then
// policy ID.
func (l *Ledger) Entries() []Entry {
	entries := make([]Entry, 0, l.lru.Len())
	for _, entry := range l.lru.Values() {
		entries = append(entries, entry.clone())
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.ContainerID != entries[j].Key.ContainerID {
			return entries[i].Key.ContainerID < entries[j].Key.ContainerID
		}
		return entries[i].Key.PolicyID < entries[j].Key.PolicyID
	})
	return entries
}

// Records returns copies of the most recent action records, oldest first.
func (l *Ledger) Records() []whaleguardian.ActionRecord {
	if !l.filled {
		return append([]whaleguardian.ActionRecord(nil), l.recent[:l.next]...)
	}
	records := make([]whaleguardian.ActionRecord, 0, len(l.recent))
	records = append(records, l.recent[l.next:]...)
	return append(records, l.recent[:l.next]...)
}

// Verify the internal consistency of the ledger, returning an
// ErrInternalInvariant error when the ledger has been corrupted.
func (l *Ledger) Verify() error {
	if l.lru.Len() > l.size {
		return whaleguardian.Invariant("ledger exceeds its size %d with %d entries",
			l.size, l.lru.Len())
	}
	for _, key := range l.lru.Keys() {
		entry, ok := l.lru.Peek(key)
		if !ok || entry == nil {
			return whaleguardian.Invariant("ledger key %s/%s lacks its entry",
				key.ContainerID, key.PolicyID)
		}
		if entry.Key != key {
			return whaleguardian.Invariant("ledger entry %s/%s indexed as %s/%s",
				entry.Key.ContainerID, entry.Key.PolicyID, key.ContainerID, key.PolicyID)
		}
		if !entry.Last.Action.Corrective() {
			return whaleguardian.Invariant("ledger entry %s/%s holds a non-corrective record",
				entry.Key.ContainerID, entry.Key.PolicyID)
		}
		if KeyOf(entry.Last.Violation) != entry.Key {
			return whaleguardian.Invariant("ledger entry %s/%s holds record for %s/%s",
				entry.Key.ContainerID, entry.Key.PolicyID,
				entry.Last.Violation.ContainerID, entry.Last.Violation.PolicyID)
		}
		for idx := 1; idx < len(entry.Actions); idx++ {
			if entry.Actions[idx].Before(entry.Actions[idx-1]) {
				return whaleguardian.Invariant("ledger entry %s/%s has unordered actions",
					entry.Key.ContainerID, entry.Key.PolicyID)
			}
		}
		if n := len(entry.Actions); n > 0 && entry.Actions[n-1].After(entry.LastAction) {
			return whaleguardian.Invariant("ledger entry %s/%s has actions after its last action",
				entry.Key.ContainerID, entry.Key.PolicyID)
		}
	}
	return nil
}

// Close the ledger's store, if any.
func (l *Ledger) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}
