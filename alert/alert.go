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

package alert

import (
	"context"
	"time"

	"github.com/thediveo/whaleguardian"
)

// Severity of an alert.
type Severity string

// The alert severities.
const (
	SeverityInfo     Severity = "info"     // informational, such as recovery.
	SeverityWarning  Severity = "warning"  // violation handled, or skipped.
	SeverityCritical Severity = "critical" // violation could not be handled.
)

// Alert is a notification about something the guardian detected or did.
type Alert struct {
	Severity      Severity              `json:"severity"`
	Message       string                `json:"message"`
	ContainerID   string                `json:"container_id,omitempty"`
	ContainerName string                `json:"container_name,omitempty"`
	PolicyID      string                `json:"policy_id,omitempty"`
	Action        whaleguardian.Action  `json:"action,omitempty"`
	Outcome       whaleguardian.Outcome `json:"outcome,omitempty"`
	Error         string                `json:"error,omitempty"`
	At            time.Time             `json:"at"`
}

// Sink accepts alerts.
type Sink interface {
	Send(ctx context.Context, a Alert) error
	Close() error
}

// ForRecord returns the alert about the specified action record.
func ForRecord(rec whaleguardian.ActionRecord) Alert {
	a := Alert{
		Severity:      SeverityWarning,
		ContainerID:   rec.Violation.ContainerID,
		ContainerName: rec.Violation.ContainerName,
		PolicyID:      rec.Violation.PolicyID,
		Action:        rec.Action,
		Outcome:       rec.Outcome,
		Error:         rec.Error,
		At:            rec.At,
	}
	switch rec.Outcome {
	case whaleguardian.OutcomeFailure:
		a.Severity = SeverityCritical
		a.Message = "failed to " + string(rec.Action) + " " + rec.Violation.String()
	case whaleguardian.OutcomeSkippedLimit:
		a.Severity = SeverityInfo
		a.Message = "action limit reached, not acting on " + rec.Violation.String()
	default:
		if rec.Action == whaleguardian.ActionAlert {
			a.Message = rec.Violation.String()
		} else {
			a.Message = pastTense[rec.Action] + " " + rec.Violation.String()
		}
	}
	return a
}

var pastTense = map[whaleguardian.Action]string{
	whaleguardian.ActionRestart: "restarted",
	whaleguardian.ActionStop:    "stopped",
	whaleguardian.ActionKill:    "killed",
}

// Info returns an informational alert with the specified message.
func Info(message string, at time.Time) Alert {
	return Alert{Severity: SeverityInfo, Message: message, At: at}
}
