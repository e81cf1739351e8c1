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

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last change to the
// configuration file before reloading it.
const DefaultDebounce = 250 * time.Millisecond

// Watch the configuration file at the specified path until the context gets
// cancelled, calling onChange with the reloaded configuration (or the reason
// for failing to load it) whenever the file changes. Bursts of changes within
// the debounce period result in only a single reload.
//
// Watch watches the directory containing the configuration file, so that
// editors replacing the file instead of writing to it get picked up too.
func Watch(ctx context.Context, path string, debounce time.Duration, log *zap.Logger, onChange func(*Config, error)) error {
	log = logging.Component(log, "config")
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot watch configuration")
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "cannot watch configuration file '%s'", path)
	}
	log.Info("watching configuration", zap.String("path", path))

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path ||
				!ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("configuration watcher error", zap.Error(err))
		case <-timer.C:
			cfg, err := Load(path)
			if err != nil {
				log.Warn("rejecting changed configuration", zap.Error(err))
			} else {
				log.Info("configuration changed", zap.Int("policies", len(cfg.Policies)))
			}
			onChange(cfg, err)
		}
	}
}
