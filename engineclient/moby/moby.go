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

package moby

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/engineclient"
)

// Type specifies this container engine's type identifier.
const Type = "docker.com"

// ComposerProjectLabel is the name of an optional container label identifying
// the composer project a container is part of.
const ComposerProjectLabel = "com.docker.compose.project"

// MobyAPIClient is a Docker client offering the container and system APIs. For
// production, Docker's client.Client is a compatible implementation, for unit
// testing our very own mockingmoby.MockingMoby.
type MobyAPIClient interface {
	client.ContainerAPIClient
	client.SystemAPIClient
	DaemonHost() string
	Close() error
}

// MobyEngine is a Docker-engine EngineClient for interfacing the generic
// guardian with Docker daemons.
type MobyEngine struct {
	moby MobyAPIClient // (minimal) moby engine API client.
	typ  string        // engine type identifier.
}

// Make sure that the EngineClient interface is fully implemented
var _ (engineclient.EngineClient) = (*MobyEngine)(nil)

// New returns a Docker EngineClient for the specified Docker API endpoint.
//
// When the dockersock parameter is left empty then Docker's usual client
// defaults apply, such as trying to pick up the docker host from the
// environment or falling back to the local host's
// "unix:///var/run/docker.sock".
func New(dockersock string, opts ...NewOption) (*MobyEngine, error) {
	clientopts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if dockersock != "" {
		clientopts = append(clientopts, client.WithHost(dockersock))
	}
	moby, err := client.NewClientWithOpts(clientopts...)
	if err != nil {
		return nil, err
	}
	return NewMobyEngine(moby, opts...), nil
}

// NewMobyEngine returns a new MobyEngine using the specified Docker engine
// client; typically, you would want to use this lower-level constructor only
// in unit tests and instead use New in most use cases.
func NewMobyEngine(moby MobyAPIClient, opts ...NewOption) *MobyEngine {
	me := &MobyEngine{
		moby: moby,
		typ:  Type,
	}
	for _, opt := range opts {
		opt(me)
	}
	return me
}

// NewOption represents options to NewMobyEngine when creating new engine
// clients.
type NewOption func(*MobyEngine)

// WithDemonType sets the engine type identifier, overriding the default
// "docker.com".
func WithDemonType(typeid string) NewOption {
	return func(me *MobyEngine) {
		me.typ = typeid
	}
}

// ID returns the (more or less) unique engine identifier; the exact format is
// engine-specific.
func (me *MobyEngine) ID(ctx context.Context) string {
	info, err := me.moby.Info(ctx)
	if err == nil {
		return info.ID
	}
	return ""
}

// Type returns the type identifier for this container engine.
func (me *MobyEngine) Type() string { return me.typ }

// API returns the container engine API path.
func (me *MobyEngine) API() string { return me.moby.DaemonHost() }

// Close cleans up and release any engine client resources, if necessary.
func (me *MobyEngine) Close() {
	_ = me.moby.Close()
}

// List all containers, regardless of whether they are alive or not.
func (me *MobyEngine) List(ctx context.Context) ([]whaleguardian.Container, error) {
	// Scan the currently available containers. This is a potentially lengthy
	// operation, as we need to inspect each container individually due to the
	// way the Docker daemon's API is designed: the list lacks health and
	// restart details.
	containers, err := me.moby.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, err // list? what list??
	}
	cntrs := make([]whaleguardian.Container, 0, len(containers))
	for _, cntr := range containers {
		details, err := me.Inspect(ctx, cntr.ID)
		if err != nil {
			// silently ignore missing containers that have gone since the list
			// was prepared, but abort on severe problems in order to not keep
			// this running for too long unnecessarily.
			if engineclient.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		cntrs = append(cntrs, details)
	}
	return cntrs, nil
}

// Inspect (only) those container details of interest to us, given the name or
// ID of a container.
func (me *MobyEngine) Inspect(ctx context.Context, nameorid string) (whaleguardian.Container, error) {
	details, err := me.moby.ContainerInspect(ctx, nameorid)
	if err != nil {
		return whaleguardian.Container{}, err
	}
	if details.ContainerJSONBase == nil || details.State == nil {
		return whaleguardian.Container{}, errors.Errorf(
			"Docker container '%s' lacks state details", nameorid)
	}
	cntr := whaleguardian.Container{
		ID:           details.ID,
		Name:         strings.TrimPrefix(details.Name, "/"), // get rid off the leading slash
		Status:       whaleguardian.Status(details.State.Status),
		Health:       whaleguardian.HealthNone,
		RestartCount: details.RestartCount,
		StartedAt:    parseTime(details.State.StartedAt),
	}
	if !cntr.Status.Valid() || cntr.Status == whaleguardian.StatusRemoved {
		// "removing" and any future statuses we don't know about yet.
		cntr.Status = whaleguardian.StatusDead
	}
	if details.Config != nil {
		cntr.Image = details.Config.Image
		cntr.Labels = details.Config.Labels
		cntr.Project = details.Config.Labels[ComposerProjectLabel]
	}
	if health := details.State.Health; health != nil {
		if h := whaleguardian.Health(health.Status); h.Valid() {
			cntr.Health = h
		}
	}
	// Seed the last transition with what the engine tells us; the snapshot
	// builder takes over as soon as it has seen the container before.
	switch cntr.Status {
	case whaleguardian.StatusExited, whaleguardian.StatusDead:
		cntr.Transitioned = parseTime(details.State.FinishedAt)
	default:
		cntr.Transitioned = cntr.StartedAt
	}
	return cntr, nil
}

// parseTime parses Docker's RFC 3339 timestamps, returning the zero time for
// Docker's zero time representation as well as for malformed timestamps.
func parseTime(ts string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil || t.Year() <= 1 {
		return time.Time{}
	}
	return t
}

// Sample the raw resource usage counters of a container.
func (me *MobyEngine) Sample(ctx context.Context, nameorid string) (engineclient.UsageSample, error) {
	stats, err := me.moby.ContainerStatsOneShot(ctx, nameorid)
	if err != nil {
		return engineclient.UsageSample{}, err
	}
	defer stats.Body.Close()
	var resp container.StatsResponse
	if err := json.NewDecoder(stats.Body).Decode(&resp); err != nil {
		return engineclient.UsageSample{}, errors.Wrapf(err,
			"cannot decode stats of Docker container '%s'", nameorid)
	}
	// Docker reports memory including the page cache, which would make any
	// memory threshold trip on busy file I/O; "inactive_file" is cgroup v2,
	// "total_inactive_file" cgroup v1.
	mem := resp.MemoryStats.Usage
	for _, cache := range []string{"inactive_file", "total_inactive_file"} {
		if v, ok := resp.MemoryStats.Stats[cache]; ok && v < mem {
			mem -= v
			break
		}
	}
	at := resp.Read
	if at.IsZero() {
		at = time.Now()
	}
	return engineclient.UsageSample{
		CPUTotal:    resp.CPUStats.CPUUsage.TotalUsage,
		SystemTotal: resp.CPUStats.SystemUsage,
		OnlineCPUs:  resp.CPUStats.OnlineCPUs,
		MemoryBytes: mem,
		At:          at,
	}, nil
}

// stopOptions returns the stop options for the specified grace period, where
// zero means Docker's (or the container's) default.
func stopOptions(grace time.Duration) container.StopOptions {
	if grace <= 0 {
		return container.StopOptions{}
	}
	secs := int((grace + time.Second - 1) / time.Second)
	return container.StopOptions{Timeout: &secs}
}

// Restart the container.
func (me *MobyEngine) Restart(ctx context.Context, nameorid string, grace time.Duration) error {
	return me.moby.ContainerRestart(ctx, nameorid, stopOptions(grace))
}

// Stop the container.
func (me *MobyEngine) Stop(ctx context.Context, nameorid string, grace time.Duration) error {
	return me.moby.ContainerStop(ctx, nameorid, stopOptions(grace))
}

// Kill the container.
func (me *MobyEngine) Kill(ctx context.Context, nameorid string, signal string) error {
	if signal == "" {
		signal = "SIGKILL"
	}
	return me.moby.ContainerKill(ctx, nameorid, signal)
}

// eventTypes maps Docker container event actions to our engine-neutral
// container event types.
var eventTypes = map[events.Action]engineclient.ContainerEventType{
	events.ActionStart:                 engineclient.ContainerStarted,
	events.ActionDie:                   engineclient.ContainerExited,
	events.ActionDestroy:               engineclient.ContainerDestroyed,
	events.ActionPause:                 engineclient.ContainerPaused,
	events.ActionUnPause:               engineclient.ContainerUnpaused,
	events.ActionRestart:               engineclient.ContainerRestarted,
	events.ActionOOM:                   engineclient.ContainerOOMKilled,
	events.ActionHealthStatusRunning:   engineclient.ContainerHealthChanged,
	events.ActionHealthStatusHealthy:   engineclient.ContainerHealthChanged,
	events.ActionHealthStatusUnhealthy: engineclient.ContainerHealthChanged,
}

// LifecycleEvents streams container engine events, limited just to those
// events in the lifecycle of containers that might change their status or
// health.
func (me *MobyEngine) LifecycleEvents(ctx context.Context) (<-chan engineclient.ContainerEvent, <-chan error) {
	cntreventstream := make(chan engineclient.ContainerEvent)
	cntrerrstream := make(chan error, 1)

	go func() {
		defer close(cntrerrstream)
		evfilters := filters.NewArgs(
			filters.KeyValuePair{Key: "type", Value: string(events.ContainerEventType)},
		)
		for action := range eventTypes {
			evfilters.Add("event", string(action))
		}
		evs, errs := me.moby.Events(ctx, events.ListOptions{Filters: evfilters})
		for {
			select {
			case err := <-errs:
				// The reason of a cancelled context has been flattened into the
				// client's event stream error, grrr. We thus first check on a
				// cancelled context in case of any event stream error and let
				// that take priority.
				if ctx.Err() == context.Canceled {
					err = ctx.Err()
				}
				cntrerrstream <- err
				return
			case ev, ok := <-evs:
				if !ok {
					evs = nil // wait for the error to arrive.
					continue
				}
				evtype, ok := eventTypes[ev.Action]
				if !ok {
					continue
				}
				at := time.Unix(0, ev.TimeNano)
				if ev.TimeNano == 0 {
					at = time.Unix(ev.Time, 0)
				}
				select {
				case cntreventstream <- engineclient.ContainerEvent{
					Type:    evtype,
					ID:      ev.Actor.ID,
					Project: ev.Actor.Attributes[ComposerProjectLabel],
					At:      at,
				}:
				case <-ctx.Done():
					cntrerrstream <- ctx.Err()
					return
				}
			}
		}
	}()

	return cntreventstream, cntrerrstream
}
