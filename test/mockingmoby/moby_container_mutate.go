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

package mockingmoby

import (
	"context"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
)

// record logs a mutating API call.
func (mm *MockingMoby) record(op string, id string) {
	mm.mux.Lock()
	mm.calls = append(mm.calls, MockedCall{Op: op, ID: id})
	mm.mux.Unlock()
}

// mutate runs the common prologue of the mutating container API calls and
// returns the mocked container they target.
func (mm *MockingMoby) mutate(ctx context.Context, op string, hook HookKey, nameorid string) (MockedContainer, error) {
	if err := mm.precheck(ctx); err != nil {
		return MockedContainer{}, err
	}
	c, ok := mm.lookup(nameorid)
	if !ok {
		return MockedContainer{}, notFound(nameorid)
	}
	mm.record(op, c.ID)
	if err := callHook(ctx, hook); err != nil {
		return MockedContainer{}, err
	}
	return c, nil
}

// ContainerRestart restarts a mocked container, regardless of its current
// state. The container's health check, if any, starts over.
func (mm *MockingMoby) ContainerRestart(ctx context.Context, nameorid string, options container.StopOptions) error {
	c, err := mm.mutate(ctx, "restart", ContainerRestartPre, nameorid)
	if err != nil {
		return err
	}
	wasAlive := c.Status == MockedRunning || c.Status == MockedPaused
	mm.mux.Lock()
	c.Status = MockedRunning
	c.StartedAt = time.Now()
	if c.Health != "" {
		c.Health = "starting"
	}
	mm.containers[c.ID] = c
	mm.mux.Unlock()
	if wasAlive {
		mm.containerEvent(events.ActionDie, c)
	}
	mm.containerEvent(events.ActionStart, c)
	mm.containerEvent(events.ActionRestart, c)
	return nil
}

// ContainerStop stops a mocked container.
func (mm *MockingMoby) ContainerStop(ctx context.Context, nameorid string, options container.StopOptions) error {
	if _, err := mm.mutate(ctx, "stop", ContainerStopPre, nameorid); err != nil {
		return err
	}
	mm.StopContainer(nameorid)
	return nil
}

// ContainerKill kills a mocked container, ignoring the particular signal.
func (mm *MockingMoby) ContainerKill(ctx context.Context, nameorid string, signal string) error {
	c, err := mm.mutate(ctx, "kill", ContainerKillPre, nameorid)
	if err != nil {
		return err
	}
	if c.Status != MockedRunning && c.Status != MockedPaused {
		return errContainerNotRunning(c.ID)
	}
	mm.mux.Lock()
	c.Status = MockedExited
	c.PID = 0
	mm.containers[c.ID] = c
	mm.mux.Unlock()
	mm.containerEvent(events.ActionKill, c)
	mm.containerEvent(events.ActionDie, c)
	return nil
}
