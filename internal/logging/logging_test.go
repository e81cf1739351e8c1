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

package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("logging", func() {

	BeforeEach(func() {
		if old, ok := os.LookupEnv(LevelEnv); ok {
			DeferCleanup(func() { _ = os.Setenv(LevelEnv, old) })
		} else {
			DeferCleanup(func() { _ = os.Unsetenv(LevelEnv) })
		}
		Expect(os.Unsetenv(LevelEnv)).To(Succeed())
	})

	It("builds production and development loggers", func() {
		log := Successful(New(Options{}))
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeTrue())
		Expect(log.Core().Enabled(zapcore.DebugLevel)).To(BeFalse())

		log = Successful(New(Options{Development: true, Level: "WARN"}))
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
		Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
	})

	It("lets the environment override the level", func() {
		Expect(os.Setenv(LevelEnv, "debug")).To(Succeed())
		log := Successful(New(Options{Level: "error"}))
		Expect(log.Core().Enabled(zapcore.DebugLevel)).To(BeTrue())
	})

	It("rejects invalid levels", func() {
		Expect(New(Options{Level: "chatty"})).Error().To(MatchError(ContainSubstring("invalid log level")))
	})

	It("tags component loggers", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		Component(zap.New(core), "guardian").Info("hello")
		Expect(logs.All()).To(HaveLen(1))
		Expect(logs.All()[0].ContextMap()).To(HaveKeyWithValue("component", "guardian"))

		Expect(Component(nil, "guardian")).NotTo(BeNil())
	})

})
