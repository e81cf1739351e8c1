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

package probe

import (
	"context"
	"io"
	"net"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a probe that doesn't specify its own timeout.
const DefaultTimeout = 5 * time.Second

// Probe describes an active TCP check of the service a particular container
// offers.
type Probe struct {
	Container string        `yaml:"container" json:"container" validate:"required"`          // container name.
	Address   string        `yaml:"address" json:"address" validate:"required,hostname_port"` // host:port to dial.
	Send      []string      `yaml:"send,omitempty" json:"send,omitempty"`                     // request lines, CRLF-terminated on the wire.
	Expect    []string      `yaml:"expect,omitempty" json:"expect,omitempty"`                 // substrings the response must contain.
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Dialer dials network connections; net.Dialer is the production dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober runs the probes configured for containers.
type Prober struct {
	probes   map[string]Probe // by container name.
	dialer   Dialer
	log      *zap.Logger
	checks   *prometheus.CounterVec
	failures *prometheus.CounterVec
	healthy  *prometheus.GaugeVec
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer sets the dialer to use instead of a net.Dialer.
func WithDialer(d Dialer) Option {
	return func(p *Prober) { p.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Prober) { p.log = logging.Component(log, "probe") }
}

// WithCounters sets the counter vectors (labelled by container name) to count
// probe runs and failed probes with.
func WithCounters(checks, failures *prometheus.CounterVec) Option {
	return func(p *Prober) {
		p.checks = checks
		p.failures = failures
	}
}

// WithHealthGauge sets the gauge vector (labelled by container name) to set to
// 1 after a passed probe and to 0 after a failed probe.
func WithHealthGauge(healthy *prometheus.GaugeVec) Option {
	return func(p *Prober) { p.healthy = healthy }
}

// New returns a new Prober for the specified probes. When there are multiple
// probes for the same container, the last one wins.
func New(probes []Probe, opts ...Option) *Prober {
	p := &Prober{
		probes: make(map[string]Probe, len(probes)),
		dialer: &net.Dialer{},
		log:    zap.NewNop(),
	}
	for _, probe := range probes {
		p.probes[probe.Container] = probe
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Len returns the number of containers with probes.
func (p *Prober) Len() int { return len(p.probes) }

// Probe runs the probe configured for the specified container, if any, and
// only if the container is running. It returns whether the container is
// healthy, and whether it has been probed at all.
func (p *Prober) Probe(ctx context.Context, c whaleguardian.Container) (healthy bool, probed bool) {
	probe, ok := p.probes[c.Name]
	if !ok || c.Status != whaleguardian.StatusRunning {
		return false, false
	}
	if p.checks != nil {
		p.checks.WithLabelValues(c.Name).Inc()
	}
	err := probe.Run(ctx, p.dialer)
	if err != nil {
		p.log.Info("probe failed",
			zap.String("container", c.Name), zap.String("address", probe.Address), zap.Error(err))
		if p.failures != nil {
			p.failures.WithLabelValues(c.Name).Inc()
		}
		if p.healthy != nil {
			p.healthy.WithLabelValues(c.Name).Set(0)
		}
		return false, true
	}
	p.log.Debug("probe passed", zap.String("container", c.Name))
	if p.healthy != nil {
		p.healthy.WithLabelValues(c.Name).Set(1)
	}
	return true, true
}

// Run the probe once using the specified dialer, returning nil if the probe
// passed.
func (probe Probe) Run(ctx context.Context, dialer Dialer) error {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialer.DialContext(ctx, "tcp", probe.Address)
	if err != nil {
		return err
	}
	defer conn.Close()
	deadline, _ := ctx.Deadline()
	_ = conn.SetDeadline(deadline)
	for _, line := range probe.Send {
		if _, err := io.WriteString(conn, line+"\r\n"); err != nil {
			return err
		}
	}
	if len(probe.Expect) == 0 {
		return nil
	}
	// Read until the peer hangs up or we run into the deadline, whatever
	// comes first; only then check the response.
	var resp strings.Builder
	buff := make([]byte, 4096)
	for {
		n, err := conn.Read(buff)
		resp.Write(buff[:n])
		if err != nil {
			break
		}
	}
	text := resp.String()
	for _, expected := range probe.Expect {
		if !strings.Contains(text, expected) {
			return &MismatchError{Expected: expected}
		}
	}
	return nil
}

// MismatchError signals that a probe response lacked an expected substring.
type MismatchError struct {
	Expected string
}

func (e *MismatchError) Error() string {
	return "probe response lacks '" + e.Expected + "'"
}
