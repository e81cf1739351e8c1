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

import "time"

// MockedContainerStatus is a compressed, only-essentials, no-bulls version of
// Docker's container status.
type MockedContainerStatus int

// The available states of a mocked container.
const (
	MockedCreated MockedContainerStatus = iota
	MockedRunning
	MockedPaused
	MockedDead
	MockedExited
	MockedRestarting
)

// MockedStates maps the states of a mocked container to Docker's textual
// descriptive (and slightly chatty) container states, suitable for display to
// hoomans.
var MockedStates = map[MockedContainerStatus]string{
	MockedCreated:    "",
	MockedRunning:    "up for ages",
	MockedPaused:     "pausing a moment",
	MockedDead:       "just sleeping",
	MockedExited:     "exit 42",
	MockedRestarting: "getting up again",
}

// MockedStatus maps the states of a mocked container to Docker's container
// status strings that is better suited for code checks (no chatty additions and
// content variations).
var MockedStatus = map[MockedContainerStatus]string{
	MockedCreated:    "created",
	MockedRunning:    "running",
	MockedPaused:     "paused",
	MockedDead:       "dead",
	MockedExited:     "exited",
	MockedRestarting: "restarting",
}

// MockedUsage are the raw resource usage counters of a mocked container, as
// returned in stats.
type MockedUsage struct {
	CPUTotal     uint64 // total container CPU time in ns.
	SystemTotal  uint64 // total host CPU time in ns.
	OnlineCPUs   uint32
	Memory       uint64 // memory usage, including InactiveFile.
	InactiveFile uint64
}

// MockedContainer is our very, very limited knowledge about a mocked container;
// it just stores the minimum of information we need in mocking our own unit
// tests.
type MockedContainer struct {
	ID           string                // unique identifier of container
	Name         string                // name of container without any prefixing "/"
	Image        string                // image reference
	Status       MockedContainerStatus // container status (without any thrills)
	Health       string                // health status, or "" if without health check.
	PID          int                   // PID of initial container process if container is "alive"
	RestartCount int                   // restarts by the restart policy
	StartedAt    time.Time             // zero means "now" when added.
	Labels       map[string]string     // container labels
	Usage        MockedUsage           // resource usage counters
}
