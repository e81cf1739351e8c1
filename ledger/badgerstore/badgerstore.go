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
/*
Package badgerstore persists ledger entries in a badger key-value database,
so that cooldowns and action windows survive guardian restarts.
*/
package badgerstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian/internal/logging"
	"github.com/thediveo/whaleguardian/ledger"
	"go.uber.org/zap"
)

// prefix of all ledger entry keys.
const prefix = "ledger/"

// Options configure opening a Store.
type Options struct {
	Path       string      // database directory; required unless InMemory.
	InMemory   bool        // keep everything in memory only (for testing).
	SyncWrites bool        // sync each write to disk before returning.
	Logger     *zap.Logger // optional logger for badger's own messages.
}

// Store is a ledger.Store backed by a badger database.
type Store struct {
	db *badger.DB
}

var _ ledger.Store = (*Store)(nil)

// badgerLogger adapts zap to badger's logger interface.
type badgerLogger struct {
	log *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.log.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }

// Open the badger database with the specified options.
func Open(opts Options) (*Store, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, errors.New("ledger database path required")
		}
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "cannot create ledger database directory '%s'", opts.Path)
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithSyncWrites(opts.SyncWrites).WithNumVersionsToKeep(1)
	if opts.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{
			log: logging.Component(opts.Logger, "badger").Sugar(),
		})
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open ledger database")
	}
	return &Store{db: db}, nil
}

func keyOf(key ledger.Key) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefix, key.ContainerID, key.PolicyID))
}

// Load all ledger entries.
func (s *Store) Load() ([]ledger.Entry, error) {
	entries := []ledger.Entry{}
	err := s.db.View(func(txn *badger.Txn) error {
		iopts := badger.DefaultIteratorOptions
		iopts.Prefix = []byte(prefix)
		it := txn.NewIterator(iopts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var entry ledger.Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return errors.Wrapf(err, "malformed ledger entry '%s'", item.Key())
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Save (create or update) a ledger entry.
func (s *Store) Save(entry ledger.Entry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "cannot marshal ledger entry")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyOf(entry.Key), val)
	})
}

// Delete a ledger entry; deleting a non-existing entry is not an error.
func (s *Store) Delete(key ledger.Key) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(keyOf(key))
	})
}

// Close the database.
func (s *Store) Close() error {
	return s.db.Close()
}
