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

package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/probe"
	"github.com/thediveo/whaleguardian/rules"
	"gopkg.in/yaml.v3"
)

// Defaults for values not set in the configuration.
const (
	DefaultInterval       = 20 * time.Second
	DefaultStartupDelay   = 30 * time.Second
	DefaultCooldown       = 30 * time.Second
	DefaultCallTimeout    = 10 * time.Second
	DefaultReconcileEvery = 10
	DefaultInboxSize      = 1024
	DefaultDegradedAfter  = 2
	DefaultDiagnostics    = ":8008"
	DefaultLedgerCapacity = 4096
)

// Config is the guardian configuration.
type Config struct {
	Interval      time.Duration `yaml:"interval" validate:"gt=0"`
	StartupDelay  time.Duration `yaml:"startupDelay" validate:"gte=0"`
	FailFast      bool          `yaml:"failFast"`
	HistoryLength int           `yaml:"historyLength" validate:"gte=0"` // minimum; the policies might need more.
	Engine        Engine        `yaml:"engine"`
	BackOff       BackOff       `yaml:"backoff"`
	Ledger        Ledger        `yaml:"ledger"`
	Alerts        Alerts        `yaml:"alerts"`
	Diagnostics   Diagnostics   `yaml:"diagnostics"`
	Probes        []probe.Probe `yaml:"probes" validate:"dive"`
	Policies      []Policy      `yaml:"policies" validate:"dive"`
}

// Engine configures access to the container engine.
type Engine struct {
	Host           string        `yaml:"host"` // empty uses Docker's defaults.
	CallTimeout    time.Duration `yaml:"callTimeout" validate:"gt=0"`
	Mode           string        `yaml:"mode" validate:"oneof=polling streaming"`
	ReconcileEvery int           `yaml:"reconcileEvery" validate:"gte=1"`
	SampleUsage    bool          `yaml:"sampleUsage"`
	InboxSize      int           `yaml:"inboxSize" validate:"gte=1"`
	StopTimeout    time.Duration `yaml:"stopTimeout" validate:"gte=0"` // default for policies.
}

// BackOff configures retrying an unreachable container engine.
type BackOff struct {
	Initial       time.Duration `yaml:"initial" validate:"gt=0"`
	Max           time.Duration `yaml:"max" validate:"gtefield=Initial"`
	Multiplier    float64       `yaml:"multiplier" validate:"gte=1"`
	Jitter        float64       `yaml:"jitter" validate:"gte=0,lte=1"`
	DegradedAfter int           `yaml:"degradedAfter" validate:"gte=1"`
}

// Ledger configures the action ledger.
type Ledger struct {
	Capacity int    `yaml:"capacity" validate:"gte=1"`
	Path     string `yaml:"path"` // empty keeps the ledger in memory only.
}

// Alerts configures the alert sinks.
type Alerts struct {
	Log   bool   `yaml:"log"`
	Kafka *Kafka `yaml:"kafka"`
}

// Kafka configures publishing alerts to Kafka.
type Kafka struct {
	Brokers []string `yaml:"brokers" validate:"required,min=1,dive,hostname_port"`
	Topic   string   `yaml:"topic" validate:"required"`
}

// Diagnostics configures the diagnostics HTTP server.
type Diagnostics struct {
	Listen string `yaml:"listen"` // empty disables the server.
}

// Policy is the configuration of a single policy.
type Policy struct {
	ID           string                      `yaml:"id" validate:"required"`
	Selector     whaleguardian.Selector      `yaml:"selector"`
	Condition    whaleguardian.ConditionSpec `yaml:"condition"`
	Action       string                      `yaml:"action" validate:"required,oneof=restart stop kill alert"`
	Cooldown     *time.Duration              `yaml:"cooldown" validate:"omitempty,gte=0"` // nil uses DefaultCooldown.
	MaxActions   int                         `yaml:"maxActions" validate:"gte=0"`
	ActionWindow time.Duration               `yaml:"actionWindow" validate:"gte=0"`
	StopTimeout  time.Duration               `yaml:"stopTimeout" validate:"gte=0"`
	KillSignal   string                      `yaml:"killSignal"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Interval:     DefaultInterval,
		StartupDelay: DefaultStartupDelay,
		Engine: Engine{
			CallTimeout:    DefaultCallTimeout,
			Mode:           "polling",
			ReconcileEvery: DefaultReconcileEvery,
			InboxSize:      DefaultInboxSize,
		},
		BackOff: BackOff{
			Initial:       time.Second,
			Max:           time.Minute,
			Multiplier:    2,
			Jitter:        0.2,
			DegradedAfter: DefaultDegradedAfter,
		},
		Ledger:      Ledger{Capacity: DefaultLedgerCapacity},
		Alerts:      Alerts{Log: true},
		Diagnostics: Diagnostics{Listen: DefaultDiagnostics},
	}
}

var validate = validator.New()

// Load the configuration from the specified YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read configuration file '%s'", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "configuration file '%s'", path)
	}
	return cfg, nil
}

// Parse the configuration from the specified YAML data, on top of the
// defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, whaleguardian.Classify(whaleguardian.ErrPolicyInvalid, err, "malformed configuration")
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, whaleguardian.Classify(whaleguardian.ErrPolicyInvalid, err, "invalid configuration")
	}
	return cfg, nil
}

// GuardianPolicies returns the configured policies, with defaults applied.
func (c *Config) GuardianPolicies() []whaleguardian.Policy {
	policies := make([]whaleguardian.Policy, 0, len(c.Policies))
	for _, p := range c.Policies {
		policy := whaleguardian.Policy{
			ID:           p.ID,
			Selector:     p.Selector,
			Condition:    p.Condition,
			Action:       whaleguardian.Action(p.Action),
			Cooldown:     DefaultCooldown,
			MaxActions:   p.MaxActions,
			ActionWindow: p.ActionWindow,
			StopTimeout:  p.StopTimeout,
			KillSignal:   p.KillSignal,
		}
		if p.Cooldown != nil {
			policy.Cooldown = *p.Cooldown
		}
		if policy.StopTimeout == 0 && policy.Action != whaleguardian.ActionKill &&
			policy.Action != whaleguardian.ActionAlert {
			policy.StopTimeout = c.Engine.StopTimeout
		}
		policies = append(policies, policy)
	}
	return policies
}

// Compile the configured policies using the specified condition registry.
func (c *Config) Compile(reg *rules.Registry) (*rules.Set, error) {
	return reg.Compile(c.GuardianPolicies())
}
