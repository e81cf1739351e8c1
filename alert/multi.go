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
)

// Multi fans out alerts to multiple sinks.
type Multi []Sink

var _ Sink = (Multi)(nil)

// Send the alert to all sinks, even if some fail; returns the first error.
func (m Multi) Send(ctx context.Context, a Alert) error {
	var first error
	for _, sink := range m {
		if err := sink.Send(ctx, a); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close all sinks, returning the first error.
func (m Multi) Close() error {
	var first error
	for _, sink := range m {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
