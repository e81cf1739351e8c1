// Copyright 2021 Harald Albrecht.
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

package mockingmoby

import (
	"context"
	"errors"
	"time"

	"github.com/docker/docker/api/types/events"
)

// ErrEventStreamStopped is signalled on the event error channel after a test
// stopped the event stream.
var ErrEventStreamStopped = errors.New("event stream stopped")

// Events returns a stream of fake events. It ignores all options, but checks
// ctx for being Done (with or without any error) and then mirrors the context
// error to the (events) error channel returned by Events. After an error the
// event channel will be closed automatically.
//
// Please note that only a single call to the Events API method is supported per
// mock client instance.
func (mm *MockingMoby) Events(ctx context.Context, options events.ListOptions) (<-chan events.Message, <-chan error) {
	evs := make(chan events.Message, 100)
	errs := make(chan error, 1)
	if err := mm.precheck(ctx); err != nil {
		errs <- err
		close(errs)
		return evs, errs
	}
	abort := make(chan error, 1)
	mm.emux.Lock()
	mm.events = evs
	mm.errs = errs
	mm.abort = abort
	mm.emux.Unlock()
	// Wait in the background for the context to become (well?) done, then
	// propagate any context error to our event error channel and finally be
	// done with it all.
	go func() {
		defer close(errs)
		var err error
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case err = <-abort:
		}
		mm.emux.Lock()
		mm.events = nil
		mm.errs = nil
		mm.abort = nil
		mm.emux.Unlock()
		errs <- err
	}()
	return evs, errs
}

// StopEvents closes down streaming events with an error on the error channel;
// it is used in unit tests to simulate event stream errors other than a
// cancelled context.
func (mm *MockingMoby) StopEvents() {
	mm.emux.Lock()
	defer mm.emux.Unlock()
	if mm.abort == nil { // ...safeguard against own stupidity
		panic("MockingMoby.StopEvents() without Events()")
	}
	select {
	case mm.abort <- ErrEventStreamStopped:
	default:
	}
}

// Streaming returns true while there is an active event stream.
func (mm *MockingMoby) Streaming() bool {
	mm.emux.Lock()
	defer mm.emux.Unlock()
	return mm.events != nil
}

// containerEvent generates a fake container event for the specified action and
// container. Events get dropped when nobody is streaming events or the
// consumer falls behind too much.
func (mm *MockingMoby) containerEvent(action events.Action, c MockedContainer) {
	mm.emux.Lock()
	defer mm.emux.Unlock()
	if mm.events == nil {
		return
	}
	now := time.Now()
	select {
	case mm.events <- events.Message{
		Type:   events.ContainerEventType,
		Action: action,
		Actor: events.Actor{
			ID:         c.ID,
			Attributes: MockAttributes(c),
		},
		Scope:    "local",
		Time:     now.Unix(),
		TimeNano: now.UnixNano(),
	}:
	default:
	}
}
