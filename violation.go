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

package whaleguardian

import (
	"fmt"
	"time"
)

// Violation is a detected breach of a policy by a specific container.
// Violations are ephemeral: produced by the rule evaluator, consumed once by
// the action dispatcher.
type Violation struct {
	ContainerID   string    `json:"container_id"`
	ContainerName string    `json:"container_name"`
	PolicyID      string    `json:"policy_id"`
	Action        Action    `json:"action"`
	DetectedAt    time.Time `json:"detected_at"`
	Observed      string    `json:"observed"` // observed value that triggered the policy.
}

// String renders a violation for log and alert messages.
func (v Violation) String() string {
	return fmt.Sprintf("container '%s'/%s violates policy '%s' (observed %s)",
		v.ContainerName, v.ContainerID, v.PolicyID, v.Observed)
}

// Outcome is the result of dispatching a violation.
type Outcome string

// The different outcomes of dispatching violations.
const (
	OutcomeSuccess         Outcome = "success"
	OutcomeFailure         Outcome = "failure"
	OutcomeSkippedCooldown Outcome = "skipped-due-to-cooldown"
	OutcomeSkippedLimit    Outcome = "skipped-due-to-limit"
)

// ActionRecord documents what the guardian did (or deliberately did not do)
// about a particular violation.
type ActionRecord struct {
	ID        string    `json:"id"`
	Violation Violation `json:"violation"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Corrected returns true if the record documents a successful corrective
// action, that is, one that starts a new cooldown period.
func (r ActionRecord) Corrected() bool {
	return r.Outcome == OutcomeSuccess && r.Action.Corrective()
}
