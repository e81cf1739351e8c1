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

	"github.com/thediveo/whaleguardian/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a Sink writing alerts to a zap logger.
type Log struct {
	log *zap.Logger
}

var _ Sink = (*Log)(nil)

// NewLog returns a new Sink logging into the specified logger.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: logging.Component(log, "alert")}
}

var levels = map[Severity]zapcore.Level{
	SeverityInfo:     zapcore.InfoLevel,
	SeverityWarning:  zapcore.WarnLevel,
	SeverityCritical: zapcore.ErrorLevel,
}

// Send logs the specified alert; it never fails.
func (l *Log) Send(_ context.Context, a Alert) error {
	level, ok := levels[a.Severity]
	if !ok {
		level = zapcore.WarnLevel
	}
	if ce := l.log.Check(level, a.Message); ce != nil {
		fields := []zap.Field{zap.String("severity", string(a.Severity)), zap.Time("at", a.At)}
		if a.ContainerID != "" {
			fields = append(fields,
				zap.String("container", a.ContainerName),
				zap.String("container_id", a.ContainerID))
		}
		if a.PolicyID != "" {
			fields = append(fields,
				zap.String("policy", a.PolicyID),
				zap.String("action", string(a.Action)),
				zap.String("outcome", string(a.Outcome)))
		}
		if a.Error != "" {
			fields = append(fields, zap.String("error", a.Error))
		}
		ce.Write(fields...)
	}
	return nil
}

// Close is a no-op.
func (l *Log) Close() error { return nil }
