// Copyright 2022 Harald Albrecht.
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
	"github.com/thediveo/whaleguardian/engineclient"
)

// BeAContainerEvent succeeds when the actual value is a ContainerEvent and
// additionally all passed matchers also succeed.
func BeAContainerEvent(matchers ...types.GomegaMatcher) types.GomegaMatcher {
	return o.WithTransform(func(actual engineclient.ContainerEvent) engineclient.ContainerEvent {
		return actual
	}, o.SatisfyAll(matchers...))
}

// HaveEventType succeeds if the actual ContainerEvent is of any of the
// specified event types.
func HaveEventType(evtypes ...engineclient.ContainerEventType) types.GomegaMatcher {
	return o.HaveField("Type", o.BeElementOf(evtypes))
}

// HaveProject succeeds if the actual Container or ContainerEvent belongs to
// the specified composer project; "" means no project.
func HaveProject(project string) types.GomegaMatcher {
	return o.HaveField("Project", project)
}
