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
	"sync"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/client"
)

// MockingMoby is a mock Docker client implementing only listing all containers,
// inspecting them (limited information only), sampling their stats,
// restarting, stopping and killing them, and receiving container-related
// events. All other service API methods will panic when tried, as they are
// only embedded nil interfaces.
//
// Please note that only a single active call to the Events API method is
// supported per mock client instance.
type MockingMoby struct {
	client.ContainerAPIClient
	client.SystemAPIClient

	mux         sync.RWMutex
	containers  map[string]MockedContainer // mocked containers by ID
	names       map[string]string          // maps names to IDs
	unreachable error                      // simulated API failure, if non-nil
	calls       []MockedCall               // log of mutating API calls

	emux   sync.Mutex
	events chan events.Message // stream events
	errs   chan error          // signal error
	abort  chan error          // test-controlled abort of event stream
}

// MockedCall documents a call to a mutating container API method.
type MockedCall struct {
	Op string // "restart", "stop", or "kill"
	ID string // ID of the container
}

// NewMockingMoby returns a new instance of a mock Docker client.
func NewMockingMoby() *MockingMoby {
	return &MockingMoby{
		containers: map[string]MockedContainer{},
		names:      map[string]string{},
	}
}

// NegotiateAPIVersion is a mock no-op.
func (mm *MockingMoby) NegotiateAPIVersion(ctx context.Context) {}

// DaemonHost returns the host address used by the client
func (mm *MockingMoby) DaemonHost() string { return "mock://mocked" }

// Close closes the mock client, releasing its internal resources.
func (mm *MockingMoby) Close() error {
	return nil
}

// SetUnreachable makes all subsequent API calls fail with the specified error,
// simulating a container engine that cannot be reached anymore. Pass nil to
// make the mock engine reachable again. An active event stream gets aborted
// with the specified error.
func (mm *MockingMoby) SetUnreachable(err error) {
	mm.mux.Lock()
	mm.unreachable = err
	mm.mux.Unlock()
	if err == nil {
		return
	}
	mm.emux.Lock()
	defer mm.emux.Unlock()
	if mm.abort != nil {
		select {
		case mm.abort <- err:
		default:
		}
	}
}

// Calls returns the log of mutating API calls so far.
func (mm *MockingMoby) Calls() []MockedCall {
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	return append([]MockedCall(nil), mm.calls...)
}

// isCtxCancelled returns an error if the specified Context is done, either
// having been cancelled our reached its deadline. Otherwise, returns nil.
func isCtxCancelled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// precheck returns an error if either the context is done or the mocked
// engine has been made unreachable.
func (mm *MockingMoby) precheck(ctx context.Context) error {
	if err := isCtxCancelled(ctx); err != nil {
		return err
	}
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	return mm.unreachable
}

// AddContainer adds a mocked container and optionally emits a container event
// if the container is in running or paused states.
func (mm *MockingMoby) AddContainer(c MockedContainer) {
	mm.mux.Lock()
	if c.StartedAt.IsZero() && (c.Status == MockedRunning || c.Status == MockedPaused) {
		c.StartedAt = time.Now()
	}
	mm.containers[c.ID] = c
	mm.names[c.Name] = c.ID
	mm.mux.Unlock()
	switch c.Status {
	case MockedRunning, MockedPaused:
		mm.containerEvent(events.ActionStart, c)
	}
}

// StopContainer stops a mocked container, but does not remove it yet. It emits
// a container event if the container was in running or paused state.
func (mm *MockingMoby) StopContainer(nameorid string) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		// make sure to emit event only after changing the fake container's
		// state to exited.
		status := c.Status
		c.Status = MockedExited
		c.PID = 0
		mm.containers[c.ID] = c
		mm.mux.Unlock()
		switch status {
		case MockedRunning, MockedPaused:
			mm.containerEvent(events.ActionDie, c)
		}
	}
}

// RemoveContainer removes a mocked container and emits a container event if the
// container was in running or paused states, as well as a destroy event.
func (mm *MockingMoby) RemoveContainer(nameorid string) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		delete(mm.containers, c.ID)
		delete(mm.names, c.Name)
		mm.mux.Unlock()
		switch c.Status {
		case MockedRunning, MockedPaused:
			mm.containerEvent(events.ActionDie, c)
		}
		mm.containerEvent(events.ActionDestroy, c)
	}
}

// PauseContainer pauses a container, if currently running, and emits a
// container pause event.
func (mm *MockingMoby) PauseContainer(nameorid string) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		if c.Status != MockedRunning {
			mm.mux.Unlock()
			return
		}
		c.Status = MockedPaused
		mm.containers[c.ID] = c
		mm.mux.Unlock()
		mm.containerEvent(events.ActionPause, c)
	}
}

// UnpauseContainer unpauses a container, if currently paused, and emits a
// container unpause event.
func (mm *MockingMoby) UnpauseContainer(nameorid string) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		if c.Status != MockedPaused {
			mm.mux.Unlock()
			return
		}
		c.Status = MockedRunning
		mm.containers[c.ID] = c
		mm.mux.Unlock()
		mm.containerEvent(events.ActionUnPause, c)
	}
}

// SetHealth sets the health status of a container ("starting", "healthy", or
// "unhealthy") and emits a health status event.
func (mm *MockingMoby) SetHealth(nameorid string, health string) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		c.Health = health
		mm.containers[c.ID] = c
		mm.mux.Unlock()
		mm.containerEvent(events.Action(string(events.ActionHealthStatus)+": "+health), c)
	}
}

// SetUsage sets the resource usage counters of a container.
func (mm *MockingMoby) SetUsage(nameorid string, usage MockedUsage) {
	if c, ok := mm.lookup(nameorid); ok {
		mm.mux.Lock()
		c.Usage = usage
		mm.containers[c.ID] = c
		mm.mux.Unlock()
	}
}

// lookup returns a mocked container identified either by ID or name. If not
// found, returns false.
func (mm *MockingMoby) lookup(nameorid string) (MockedContainer, bool) {
	mm.mux.RLock()
	defer mm.mux.RUnlock()
	c, ok := mm.containers[nameorid]
	if !ok {
		if nameorid, ok = mm.names[nameorid]; ok {
			c, ok = mm.containers[nameorid]
		}
	}
	return c, ok
}

// MockAttributes returns a mocked attributes map for the specified mock
// container, based on the container's labels and additional attributes (namely,
// the container name as opposed to its ID). The attributes map is suitable for
// direct emission in the Actor fields of Docker events.
func MockAttributes(c MockedContainer) map[string]string {
	attrs := map[string]string{}
	for ln, lv := range c.Labels {
		attrs[ln] = lv
	}
	attrs["name"] = c.Name
	if c.Image != "" {
		attrs["image"] = c.Image
	}
	return attrs
}
