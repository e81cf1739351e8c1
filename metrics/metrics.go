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
/*
Package metrics defines the Prometheus collectors of the guardian, all in the
"whaleguardian" namespace.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/thediveo/whaleguardian"
)

// Namespace of all guardian metrics.
const Namespace = "whaleguardian"

// Metrics are the guardian's collectors, registered with a specific registry.
type Metrics struct {
	Cycles         prometheus.Counter
	CycleDuration  prometheus.Histogram
	SourceFailures prometheus.Counter
	Violations     *prometheus.CounterVec // policy
	Actions        *prometheus.CounterVec // policy, action, outcome
	Containers     prometheus.Gauge
	Degraded       prometheus.Gauge
	LastAction     *prometheus.GaugeVec   // policy
	RecentActions  *prometheus.GaugeVec   // policy
	MaxActions     *prometheus.GaugeVec   // policy
	ProbeChecks    *prometheus.CounterVec // container
	ProbeFailures  *prometheus.CounterVec // container
	ProbeHealthy   *prometheus.GaugeVec   // container
	InboxDrops     prometheus.Gauge
	AlertFailures  prometheus.Counter
}

// New returns a new set of guardian collectors, registered with the specified
// registerer. A nil registerer creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cycles_total",
			Help:      "Total guardian cycles run",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Guardian cycle duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SourceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "source_failures_total",
			Help:      "Total failures to collect container state",
		}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "violations_total",
			Help:      "Total policy violations detected",
		}, []string{"policy"}),
		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "actions_total",
			Help:      "Total dispatched violations by action and outcome",
		}, []string{"policy", "action", "outcome"}),
		Containers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "containers",
			Help:      "Number of containers in the most recent snapshot",
		}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "degraded",
			Help:      "1 while the guardian cannot reach the container engine",
		}),
		LastAction: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_action_timestamp_seconds",
			Help:      "Unix time of the most recent successful corrective action",
		}, []string{"policy"}),
		RecentActions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "recent_actions",
			Help:      "Successful corrective actions within the policy's action window",
		}, []string{"policy"}),
		MaxActions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "max_actions",
			Help:      "Corrective action limit per action window; 0 is unlimited",
		}, []string{"policy"}),
		ProbeChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Total active probes run",
		}, []string{"container"}),
		ProbeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "probe",
			Name:      "failures_total",
			Help:      "Total failed active probes",
		}, []string{"container"}),
		ProbeHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "probe",
			Name:      "healthy",
			Help:      "1 if the most recent active probe passed, 0 if it failed",
		}, []string{"container"}),
		InboxDrops: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "inbox",
			Name:      "drops",
			Help:      "Total event observations dropped because the inbox overflowed",
		}),
		AlertFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alert_failures_total",
			Help:      "Total alerts that could not be delivered",
		}),
	}
}

// Observe the outcome of a dispatched violation.
func (m *Metrics) Observe(rec whaleguardian.ActionRecord) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(rec.Violation.PolicyID, string(rec.Action), string(rec.Outcome)).Inc()
	if rec.Corrected() {
		m.LastAction.WithLabelValues(rec.Violation.PolicyID).Set(float64(rec.At.UnixNano()) / 1e9)
	}
}

// SetPolicies sets the per-policy gauges to the specified policies, forgetting
// about any policies set before.
func (m *Metrics) SetPolicies(policies []whaleguardian.Policy) {
	if m == nil {
		return
	}
	m.MaxActions.Reset()
	for _, policy := range policies {
		if policy.Action.Corrective() {
			m.MaxActions.WithLabelValues(policy.ID).Set(float64(policy.MaxActions))
		}
	}
}

// SetDegraded sets the degraded gauge.
func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.Degraded.Set(1)
		return
	}
	m.Degraded.Set(0)
}
