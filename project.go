// Copyright 2021 Harald Albrecht.
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
	"strings"
)

// ComposerProject represents the containers of a Portfolio belonging to a
// specific Docker Compose/Composer project.
//
// As composer projects are artefacts above the first-level elements of the
// Docker container engine we can only reconstruct them in an extremely limited
// fashion from the container information available to us, namely the
// project label. Yet that's fine in our context, as selectors and operators
// just want to understand the concrete relationships between projects and
// their containers.
type ComposerProject struct {
	Name       string      // composer project name, guaranteed to be constant.
	containers []Container // containers belonging to this project, sorted by name.
}

// newComposerProject returns a new composer project of the specified name and
// without any containers yet.
func newComposerProject(name string) *ComposerProject {
	return &ComposerProject{
		Name:       name,
		containers: []Container{},
	}
}

// Containers returns the containers in this composer project, sorted by name.
func (p *ComposerProject) Containers() []Container {
	return append([]Container(nil), p.containers...)
}

// ContainerNames returns the sorted names of the containers belonging to this
// composer project.
func (p *ComposerProject) ContainerNames() []string {
	names := make([]string, len(p.containers))
	for idx, cntr := range p.containers {
		names[idx] = cntr.Name
	}
	return names
}

// Container returns the container with the specified name or ID, if it is
// part of this project.
func (p *ComposerProject) Container(nameorid string) (Container, bool) {
	for _, cntr := range p.containers {
		if cntr.Name == nameorid || cntr.ID == nameorid {
			return cntr, true
		}
	}
	return Container{}, false
}

// String returns a textual representation of a composer project with its
// containers (rendering names, but not IDs).
func (p *ComposerProject) String() string {
	if len(p.containers) > 0 {
		return fmt.Sprintf("composer project '%s' with containers: '%s'",
			p.Name, strings.Join(p.ContainerNames(), "', '"))
	}
	return fmt.Sprintf("empty composer project '%s'", p.Name)
}
