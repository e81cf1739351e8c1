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

package matcher

import (
	o "github.com/onsi/gomega"
	"github.com/onsi/gomega/types"
	"github.com/thediveo/whaleguardian"
)

// BeAnActionRecord succeeds when the actual value is an ActionRecord and
// additionally all passed matchers also succeed.
func BeAnActionRecord(matchers ...types.GomegaMatcher) types.GomegaMatcher {
	return o.WithTransform(func(actual whaleguardian.ActionRecord) whaleguardian.ActionRecord {
		return actual
	}, o.SatisfyAll(matchers...))
}

// HaveOutcome succeeds if the actual value has an "Outcome" field with the
// specified value.
func HaveOutcome(outcome whaleguardian.Outcome) types.GomegaMatcher {
	return o.HaveField("Outcome", outcome)
}

// HaveAction succeeds if the actual value has an "Action" field with the
// specified value.
func HaveAction(action whaleguardian.Action) types.GomegaMatcher {
	return o.HaveField("Action", action)
}

// ForContainer succeeds if the actual ActionRecord or Violation concerns the
// container with the specified ID.
func ForContainer(id string) types.GomegaMatcher {
	return o.Or(
		HaveOptionalField("Violation.ContainerID", id),
		HaveOptionalField("ContainerID", id),
	)
}

// ForPolicy succeeds if the actual ActionRecord or Violation has been caused
// by the policy with the specified ID.
func ForPolicy(id string) types.GomegaMatcher {
	return o.Or(
		HaveOptionalField("Violation.PolicyID", id),
		HaveOptionalField("PolicyID", id),
	)
}
