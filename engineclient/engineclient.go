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

package engineclient

import (
	"context"
	"time"

	"github.com/containerd/errdefs"
	"github.com/thediveo/whaleguardian"
)

// EngineClient defines the generic methods needed in order to guard the
// containers of a container engine, regardless of the specific type of engine.
type EngineClient interface {
	// List all containers, regardless of their status, with their details.
	List(ctx context.Context) ([]whaleguardian.Container, error)
	// Inspect (only) those container details of interest to us, given the
	// name or ID of a container.
	Inspect(ctx context.Context, nameorid string) (whaleguardian.Container, error)
	// Sample the raw resource usage counters of a container.
	Sample(ctx context.Context, nameorid string) (UsageSample, error)
	// Stream container lifecycle events relevant to the guardian.
	LifecycleEvents(ctx context.Context) (<-chan ContainerEvent, <-chan error)

	// Restart a container, giving it the specified grace period to stop
	// before it gets killed; a zero grace period means the engine's default.
	Restart(ctx context.Context, nameorid string, grace time.Duration) error
	// Stop a container, with the same grace period semantics as Restart.
	Stop(ctx context.Context, nameorid string, grace time.Duration) error
	// Kill a container using the specified signal; empty means the engine's
	// default signal.
	Kill(ctx context.Context, nameorid string, signal string) error

	// (More or less) unique engine identifier; the exact format is
	// engine-specific.
	ID(ctx context.Context) string
	// Identifier of the type of container engine, such as "docker.com".
	Type() string
	// Container engine API path.
	API() string
	// Clean up and release any engine client resources, if necessary.
	Close()
}

// UsageSample is a raw sample of a container's resource usage counters. CPU
// usage in percent can only be derived from the deltas between two
// consecutive samples.
type UsageSample struct {
	CPUTotal    uint64    // total CPU time consumed by the container, in ns.
	SystemTotal uint64    // total CPU time of the host, in ns.
	OnlineCPUs  uint32    // number of CPUs available to the container.
	MemoryBytes uint64    // memory usage without file cache.
	At          time.Time // when the sample was taken.
}

// CPUPercent returns the CPU usage in percent between the previous sample and
// this sample. It returns zero if there is no usable previous sample.
func (s UsageSample) CPUPercent(prev UsageSample) float64 {
	if prev.At.IsZero() || s.CPUTotal < prev.CPUTotal || s.SystemTotal <= prev.SystemTotal {
		return 0
	}
	cpus := float64(s.OnlineCPUs)
	if cpus == 0 {
		cpus = 1
	}
	cpudelta := float64(s.CPUTotal - prev.CPUTotal)
	sysdelta := float64(s.SystemTotal - prev.SystemTotal)
	return cpudelta / sysdelta * cpus * 100
}

// ContainerEventType identifies and enumerates the few container lifecycle
// events we're interested in, regardless of a particular container engine.
type ContainerEventType byte

// Container lifecycle events.
const (
	ContainerStarted ContainerEventType = iota
	ContainerExited
	ContainerDestroyed
	ContainerPaused
	ContainerUnpaused
	ContainerRestarted
	ContainerOOMKilled
	ContainerHealthChanged
)

// ContainerEvent is a container lifecycle event that hints at a container's
// state having changed.
type ContainerEvent struct {
	Type    ContainerEventType // type of lifecycle event.
	ID      string             // ID (or name) of container.
	Project string             // optional composer project name, or zero.
	At      time.Time          // when the engine emitted the event.
}

// IsNotFound returns true if the specified error signals a container that
// doesn't exist (anymore).
func IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}
