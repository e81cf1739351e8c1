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

// HaveID succeeds if the actual value has an "ID" field with the specified
// value.
func HaveID(id string) types.GomegaMatcher {
	return o.HaveField("ID", id)
}

// HaveName succeeds if the actual value has a "Name" field with the specified
// value.
func HaveName(name string) types.GomegaMatcher {
	return o.HaveField("Name", name)
}

// HaveStatus succeeds if the actual value is a Container with the specified
// status.
func HaveStatus(status whaleguardian.Status) types.GomegaMatcher {
	return o.HaveField("Status", status)
}

// HaveHealth succeeds if the actual value is a Container with the specified
// health.
func HaveHealth(health whaleguardian.Health) types.GomegaMatcher {
	return o.HaveField("Health", health)
}

// BeATombstone succeeds if the actual value is a Container tombstone.
func BeATombstone() types.GomegaMatcher {
	return o.WithTransform(func(actual whaleguardian.Container) bool {
		return actual.Tombstone()
	}, o.BeTrue())
}
