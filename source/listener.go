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
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/engineclient"
	"go.uber.org/zap"
)

// errStreamClosed signals an event stream that ended without telling why.
var errStreamClosed = errors.New("container event stream closed")

// Listen receives container lifecycle events and queues observations of the
// affected containers into the inbox, until the specified context gets
// cancelled. It automatically reconnects in case of loss of the event stream,
// subject to the source's backoff. Each loss marks the inbox as dirty, so that
// the next cycle reconciles.
//
// Listen must be called at most once and only for streaming sources; for
// polling sources it immediately returns nil.
func (s *Source) Listen(ctx context.Context) error {
	if s.mode != ModeStreaming {
		return nil
	}
	err := backoff.Retry(func() error {
		// The child context allows us to cancel listening to events in case
		// the event stream breaks, without cancelling the parent context and
		// thus the whole listener.
		evctx, cancelevents := context.WithCancel(ctx)
		defer cancelevents()
		evs, errs := s.engine.LifecycleEvents(evctx)
		// Events might have been missed until now.
		s.inbox.MarkLost()
		for {
			select {
			case err := <-errs:
				// The reason of a cancelled context has been flattened into the
				// client's event stream error, grrr. We thus first check on a
				// cancelled (parent) context in case of any event stream error
				// and let that take priority.
				if ctxerr := ctx.Err(); ctxerr != nil {
					return backoff.Permanent(ctxerr)
				}
				if err == nil {
					err = errStreamClosed
				}
				s.inbox.MarkLost()
				s.log.Warn("lost container event stream", zap.Error(err))
				return err
			case ev, ok := <-evs:
				if !ok {
					evs = nil // wait for the error to arrive.
					continue
				}
				s.observe(ctx, ev)
			}
		}
	}, backoff.WithContext(s.buggeroff(), ctx))
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return whaleguardian.Classify(whaleguardian.ErrSourceUnavailable, err, "event listener gave up")
}

// observe inspects the container concerned by the specified lifecycle event
// and queues the resulting observation.
func (s *Source) observe(ctx context.Context, ev engineclient.ContainerEvent) {
	if ev.Type == engineclient.ContainerDestroyed {
		s.push(whaleguardian.Observation{
			Container: whaleguardian.Container{ID: ev.ID},
			Gone:      true,
			At:        time.Now(),
		})
		return
	}
	cntr, err := s.engine.Inspect(ctx, ev.ID)
	if err != nil {
		if engineclient.IsNotFound(err) {
			// The container has already gone since the event; the destroy
			// event will follow, but we're happy to take note now.
			s.push(whaleguardian.Observation{
				Container: whaleguardian.Container{ID: ev.ID},
				Gone:      true,
				At:        time.Now(),
			})
			return
		}
		// We don't know what happened to this container, so let the next
		// reconciliation find out.
		s.inbox.MarkLost()
		s.log.Debug("cannot inspect container", zap.String("id", ev.ID), zap.Error(err))
		return
	}
	s.push(whaleguardian.Observation{Container: cntr, At: time.Now()})
}

func (s *Source) push(obs whaleguardian.Observation) {
	if !s.inbox.Push(obs) {
		s.log.Warn("inbox overflow, dropping container observation",
			zap.String("id", obs.Container.ID))
	}
}
