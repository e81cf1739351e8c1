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

package mockingmoby

import (
	"context"

	"github.com/docker/docker/api/types/system"
)

// MockedEngineID is the fake engine ID reported by Info.
const MockedEngineID = "MOCK:MOBY:MOCK:MOBY:MOCK:MOBY:MOCK:MOBY:MOCK:MOBY:MOCK:MOBY"

// Info returns engine information, consisting only of a fake engine ID, but
// nothing else.
func (mm *MockingMoby) Info(ctx context.Context) (system.Info, error) {
	if err := mm.precheck(ctx); err != nil {
		return system.Info{}, err
	}
	return system.Info{
		ID: MockedEngineID,
	}, nil
}
