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

package mockingmoby

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
)

// ContainerStatsOneShot returns a single stats sample of the specified mocked
// container, based on its mocked usage counters.
func (mm *MockingMoby) ContainerStatsOneShot(ctx context.Context, nameorid string) (container.StatsResponseReader, error) {
	if err := mm.precheck(ctx); err != nil {
		return container.StatsResponseReader{}, err
	}
	if err := callHook(ctx, ContainerStatsPre); err != nil {
		return container.StatsResponseReader{}, err
	}
	c, ok := mm.lookup(nameorid)
	if !ok {
		return container.StatsResponseReader{}, notFound(nameorid)
	}
	var stats container.StatsResponse
	stats.ID = c.ID
	stats.Name = "/" + c.Name
	stats.Read = time.Now()
	stats.CPUStats.CPUUsage.TotalUsage = c.Usage.CPUTotal
	stats.CPUStats.SystemUsage = c.Usage.SystemTotal
	stats.CPUStats.OnlineCPUs = c.Usage.OnlineCPUs
	stats.MemoryStats.Usage = c.Usage.Memory
	stats.MemoryStats.Stats = map[string]uint64{
		"inactive_file": c.Usage.InactiveFile,
	}
	body, err := json.Marshal(stats)
	if err != nil {
		return container.StatsResponseReader{}, err
	}
	return container.StatsResponseReader{
		Body:   io.NopCloser(bytes.NewReader(body)),
		OSType: "linux",
	}, nil
}
