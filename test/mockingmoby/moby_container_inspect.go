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
	"fmt"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
)

// dockerZeroTime is how Docker renders timestamps that never happened.
const dockerZeroTime = "0001-01-01T00:00:00Z"

// setState sets the Docker container state string corresponding with the
// specified mocked container status. Docker's state type has changed over its
// API versions, so we stick with untyped string constants that fit them all.
func setState[S ~string](state *S, status MockedContainerStatus) {
	switch status {
	case MockedCreated:
		*state = "created"
	case MockedRunning:
		*state = "running"
	case MockedPaused:
		*state = "paused"
	case MockedDead:
		*state = "dead"
	case MockedExited:
		*state = "exited"
	case MockedRestarting:
		*state = "restarting"
	}
}

// notFound returns a not-found error for the specified container name or ID.
func notFound(nameorid string) error {
	return fmt.Errorf("no such container %q: %w", nameorid, errdefs.ErrNotFound)
}

// ContainerInspect returns details about a particular mocked container.
func (mm *MockingMoby) ContainerInspect(ctx context.Context, nameorid string) (container.InspectResponse, error) {
	if err := mm.precheck(ctx); err != nil {
		return container.InspectResponse{}, err
	}
	if err := callHook(ctx, ContainerInspectPre); err != nil {
		return container.InspectResponse{}, err
	}
	c, ok := mm.lookup(nameorid)
	if err := callHook(ctx, ContainerInspectPost); err != nil {
		return container.InspectResponse{}, err
	}
	if !ok {
		return container.InspectResponse{}, notFound(nameorid)
	}
	state := &container.State{
		Running:    c.Status == MockedRunning || c.Status == MockedPaused,
		Paused:     c.Status == MockedPaused,
		Restarting: c.Status == MockedRestarting,
		Dead:       c.Status == MockedDead,
		Pid:        c.PID,
		StartedAt:  dockerZeroTime,
		FinishedAt: dockerZeroTime,
	}
	setState(&state.Status, c.Status)
	if !c.StartedAt.IsZero() {
		state.StartedAt = c.StartedAt.UTC().Format(time.RFC3339Nano)
	}
	if c.Health != "" {
		state.Health = &container.Health{}
		switch c.Health {
		case "starting":
			state.Health.Status = "starting"
		case "healthy":
			state.Health.Status = "healthy"
		case "unhealthy":
			state.Health.Status = "unhealthy"
			state.Health.FailingStreak = 1
		}
	}
	return container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:           c.ID,
			Name:         "/" + c.Name,
			Image:        "sha256:" + c.ID,
			RestartCount: c.RestartCount,
			State:        state,
		},
		Config: &container.Config{
			Image:  c.Image,
			Labels: c.Labels,
		},
	}, nil
}

// errContainerNotRunning returns the conflict error Docker returns when trying
// to kill a container that isn't running.
func errContainerNotRunning(id string) error {
	return fmt.Errorf("container %s is not running: %w", id, errdefs.ErrConflict)
}
