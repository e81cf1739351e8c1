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

package whaleguardian

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a container, as reported by the container
// engine. The guardian additionally synthesizes the StatusRemoved status for
// tombstones of containers that have vanished between two snapshots.
type Status string

// The container statuses known to the guardian.
const (
	StatusCreated    Status = "created"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusRestarting Status = "restarting"
	StatusExited     Status = "exited"
	StatusDead       Status = "dead"
	StatusRemoved    Status = "removed" // synthetic tombstone status.
)

// Valid returns true if the status is one of the known container statuses,
// including the synthetic removed status.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusPaused, StatusRestarting,
		StatusExited, StatusDead, StatusRemoved:
		return true
	}
	return false
}

// Health is the health check result of a container. Containers without any
// health check configured have HealthNone.
type Health string

// The container health states known to the guardian.
const (
	HealthNone      Health = "none"
	HealthStarting  Health = "starting"
	HealthHealthy   Health = "healthy"
	HealthUnhealthy Health = "unhealthy"
)

// Valid returns true if the health is one of the known health states.
func (h Health) Valid() bool {
	switch h {
	case HealthNone, HealthStarting, HealthHealthy, HealthUnhealthy:
		return true
	}
	return false
}

// Usage is a resource usage sample of a container. CPU usage is only known
// after two consecutive samples, so Valid only signals that the sample was
// actually taken.
type Usage struct {
	CPUPercent  float64 `json:"cpu_percent"`  // CPU usage in percent of a single CPU.
	MemoryBytes uint64  `json:"memory_bytes"` // memory usage in bytes, sans file cache.
	Valid       bool    `json:"valid"`        // true if the sample has been taken.
}

// Container is the guardian's deliberately limited view on a container: just
// those details policies can be evaluated against. Container values are
// immutable once they have become part of a Snapshot; they get passed by value
// downstream.
type Container struct {
	ID           string            `json:"id"`      // unique identifier of this container.
	Name         string            `json:"name"`    // user-friendly name without leading slash.
	Image        string            `json:"image"`   // image reference the container was created from.
	Labels       map[string]string `json:"labels"`  // labels assigned to this container.
	Project      string            `json:"project"` // optional composer project name, or zero.
	Status       Status            `json:"status"`
	Health       Health            `json:"health"`
	Usage        Usage             `json:"usage"`
	RestartCount int               `json:"restart_count"` // restarts by the engine's restart policy.
	StartedAt    time.Time         `json:"started_at"`    // most recent start of the container process.
	Transitioned time.Time         `json:"transitioned"`  // last change of status or health.
	Observed     time.Time         `json:"observed"`      // when this state was observed.
}

// Tombstone returns true if the container is a synthetic tombstone marking the
// disappearance of a container.
func (c Container) Tombstone() bool {
	return c.Status == StatusRemoved
}

// Alive returns true if the container has processes, that is, it's either
// running or paused.
func (c Container) Alive() bool {
	return c.Status == StatusRunning || c.Status == StatusPaused
}

// String renders a textual representation of the information kept about a
// specific container, such as its name, ID, and status.
func (c Container) String() string {
	var pinfo string
	if c.Project != "" {
		pinfo = fmt.Sprintf("from project '%s' ", c.Project)
	}
	return fmt.Sprintf("container '%s'/%s %sis %s (health %s)",
		c.Name, c.ID, pinfo, c.Status, c.Health)
}
