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
	"github.com/thediveo/whaleguardian"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("action record matchers", func() {

	violation := whaleguardian.Violation{
		ContainerID: "ID42",
		PolicyID:    "P1",
		Action:      whaleguardian.ActionRestart,
	}
	record := whaleguardian.ActionRecord{
		ID:        "R1",
		Violation: violation,
		Action:    whaleguardian.ActionRestart,
		Outcome:   whaleguardian.OutcomeSkippedCooldown,
	}

	It("matches action records", func() {
		Expect(record).To(BeAnActionRecord(
			ForContainer("ID42"),
			ForPolicy("P1"),
			HaveAction(whaleguardian.ActionRestart),
			HaveOutcome(whaleguardian.OutcomeSkippedCooldown)))
		Expect(record).NotTo(BeAnActionRecord(HaveOutcome(whaleguardian.OutcomeSuccess)))
		Expect(record).NotTo(BeAnActionRecord(ForPolicy("P2")))
	})

	It("matches violations", func() {
		Expect(violation).To(And(ForContainer("ID42"), ForPolicy("P1")))
		Expect(violation).NotTo(ForContainer("ID666"))
	})

	It("properly fails for an unexpected type of actual", func() {
		Expect(BeAnActionRecord(ForPolicy("P1")).Match(violation)).Error().To(HaveOccurred())
	})

})

var _ = Describe("container matchers", func() {

	It("matches status, health, and tombstones", func() {
		c := whaleguardian.Container{
			ID:     "ID42",
			Status: whaleguardian.StatusRunning,
			Health: whaleguardian.HealthUnhealthy,
		}
		Expect(c).To(And(
			HaveStatus(whaleguardian.StatusRunning),
			HaveHealth(whaleguardian.HealthUnhealthy)))
		Expect(c).NotTo(BeATombstone())
		c.Status = whaleguardian.StatusRemoved
		Expect(c).To(BeATombstone())
	})

})
