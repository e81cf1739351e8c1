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
	"sort"
)

// Portfolio groups containers by their composer projects, including the
// "zero" (unnamed) project. The "zero" project has the zero name and contains
// all containers that are not part of any named composer project. Portfolios
// are immutable views, such as on the containers of a Snapshot.
type Portfolio struct {
	projects map[string]*ComposerProject
}

// NewPortfolio returns a new Portfolio of the specified containers.
func NewPortfolio(containers ...Container) *Portfolio {
	pf := &Portfolio{
		projects: map[string]*ComposerProject{"": newComposerProject("")},
	}
	for _, cntr := range containers {
		proj, ok := pf.projects[cntr.Project]
		if !ok {
			proj = newComposerProject(cntr.Project)
			pf.projects[cntr.Project] = proj
		}
		proj.containers = append(proj.containers, cntr)
	}
	for _, proj := range pf.projects {
		sort.Slice(proj.containers, func(i, j int) bool {
			return proj.containers[i].Name < proj.containers[j].Name
		})
	}
	return pf
}

// Names returns the sorted names of all composer projects sans the "zero"
// project.
func (pf *Portfolio) Names() []string {
	names := make([]string, 0, len(pf.projects)-1)
	for name := range pf.projects {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Project returns the project with the specified name (including the zero
// project name), or nil if no project with the specified name exists.
func (pf *Portfolio) Project(name string) *ComposerProject {
	return pf.projects[name]
}

// Container returns the [Container] with the specified name or ID, regardless
// of which project it is in.
func (pf *Portfolio) Container(nameorid string) (Container, bool) {
	for _, project := range pf.projects {
		if cntr, ok := project.Container(nameorid); ok {
			return cntr, true
		}
	}
	return Container{}, false
}

// ContainerTotal returns the total number of containers over all projects,
// including non-project "standalone" containers.
func (pf *Portfolio) ContainerTotal() (total int) {
	for _, project := range pf.projects {
		total += len(project.containers)
	}
	return
}
