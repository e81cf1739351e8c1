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

// Package logging sets up the structured zap logger of the guardian command.
package logging

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LevelEnv is the name of the environment variable overriding the log level.
const LevelEnv = "WHALEGUARDIAN_LOG_LEVEL"

// Options control how the logger gets built.
type Options struct {
	Development bool   // human-friendly console output instead of JSON.
	Level       string // debug, info, warn, error; empty means info.
}

// New returns a new logger according to the specified options; the
// WHALEGUARDIAN_LOG_LEVEL environment variable, if set, takes precedence over
// the level in the options.
func New(opts Options) (*zap.Logger, error) {
	var config zap.Config
	if opts.Development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level := opts.Level
	if env := os.Getenv(LevelEnv); env != "" {
		level = env
	}
	if level != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, errors.Wrapf(err, "invalid log level '%s'", level)
		}
		config.Level = zap.NewAtomicLevelAt(l)
	}
	return config.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// Component returns a logger for the named component, tagging all its log
// entries with a "component" field. A nil logger results in a no-op logger.
func Component(log *zap.Logger, component string) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log.With(zap.String("component", component))
}
