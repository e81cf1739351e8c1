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

package engineclient

import (
	"context"
	"time"

	"github.com/thediveo/whaleguardian"
)

// timed bounds each individual call to the wrapped EngineClient by a timeout.
// The event stream is the only exception, as it is meant to run until
// cancelled.
type timed struct {
	EngineClient
	timeout time.Duration
}

// WithTimeout returns an EngineClient that bounds each call to the specified
// engine client by the specified timeout, so that a stuck call fails on its
// own without stalling the guardian. A zero or negative timeout returns the
// engine client unchanged.
//
// Please note that List counts as a single call, even if it needs to inspect
// containers individually under the hood.
func WithTimeout(engine EngineClient, timeout time.Duration) EngineClient {
	if timeout <= 0 {
		return engine
	}
	return &timed{EngineClient: engine, timeout: timeout}
}

func (t *timed) List(ctx context.Context) ([]whaleguardian.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.EngineClient.List(ctx)
}

func (t *timed) Inspect(ctx context.Context, nameorid string) (whaleguardian.Container, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.EngineClient.Inspect(ctx, nameorid)
}

func (t *timed) Sample(ctx context.Context, nameorid string) (UsageSample, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.EngineClient.Sample(ctx, nameorid)
}

// Restart is bounded by the timeout on top of the grace period, as the engine
// only returns after the container has been stopped and started again.
func (t *timed) Restart(ctx context.Context, nameorid string, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout+grace)
	defer cancel()
	return t.EngineClient.Restart(ctx, nameorid, grace)
}

func (t *timed) Stop(ctx context.Context, nameorid string, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout+grace)
	defer cancel()
	return t.EngineClient.Stop(ctx, nameorid, grace)
}

func (t *timed) Kill(ctx context.Context, nameorid string, signal string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.EngineClient.Kill(ctx, nameorid, signal)
}

func (t *timed) ID(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.EngineClient.ID(ctx)
}
