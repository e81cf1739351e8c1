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
	"github.com/pkg/errors"
)

// The error taxonomy of the guardian; check using errors.Is.
var (
	// ErrSourceUnavailable signals that the container engine could not be
	// reached or did not answer in time. Transient, retried with backoff.
	ErrSourceUnavailable = errors.New("container state source unavailable")
	// ErrActionFailed signals that a corrective action could not be carried
	// out. Transient, retried only on the next detection.
	ErrActionFailed = errors.New("corrective action failed")
	// ErrPolicyInvalid signals a malformed policy set. Fatal at load time.
	ErrPolicyInvalid = errors.New("invalid policy")
	// ErrInternalInvariant signals corrupted internal state. Fatal.
	ErrInternalInvariant = errors.New("internal invariant violated")
)

// classified wraps a cause into one of the taxonomy sentinels, keeping the
// cause's message as well as making errors.Is work on both the sentinel and
// the cause.
type classified struct {
	class error
	cause error
}

func (e *classified) Error() string {
	return e.class.Error() + ": " + e.cause.Error()
}

func (e *classified) Is(target error) bool { return target == e.class }

func (e *classified) Unwrap() error { return e.cause }

// Classify returns an error of the specified class (such as
// ErrSourceUnavailable), wrapping the specified cause with an additional
// message. Classify returns nil for a nil cause.
func Classify(class error, cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return &classified{
		class: class,
		cause: errors.Wrapf(cause, format, args...),
	}
}

// Invalid returns a new ErrPolicyInvalid error for the specified policy.
func Invalid(policyID string, format string, args ...interface{}) error {
	return &classified{
		class: ErrPolicyInvalid,
		cause: errors.Errorf("policy '%s': "+format, append([]interface{}{policyID}, args...)...),
	}
}

// Invariant returns a new ErrInternalInvariant error.
func Invariant(format string, args ...interface{}) error {
	return &classified{
		class: ErrInternalInvariant,
		cause: errors.Errorf(format, args...),
	}
}
