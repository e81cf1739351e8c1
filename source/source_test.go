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

package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/engineclient/moby"
	"github.com/thediveo/whaleguardian/test/mockingmoby"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var (
	furiousFuruncle = mockingmoby.MockedContainer{
		ID:     "6666666666",
		Name:   "furious_furuncle",
		Image:  "furuncle:666",
		Status: mockingmoby.MockedRunning,
		PID:    666,
		Labels: map[string]string{"foo": "bar"},
	}

	mockingMoby = mockingmoby.MockedContainer{
		ID:     "1234567890",
		Name:   "mocking_moby",
		Status: mockingmoby.MockedExited,
		Labels: map[string]string{"motto": "I'm not dead yet"},
	}
)

// fakeProber reports the configured health for containers by name.
type fakeProber struct {
	mu     sync.Mutex
	health map[string]bool
}

func (p *fakeProber) Probe(ctx context.Context, c whaleguardian.Container) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	healthy, ok := p.health[c.Name]
	return healthy, ok
}

func ids(batch whaleguardian.Batch) []string {
	ids := []string{}
	for _, obs := range batch.Observations {
		ids = append(ids, obs.Container.ID)
	}
	return ids
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(10 * time.Millisecond)
}

var _ = Describe("container state source", func() {

	var mm *mockingmoby.MockingMoby

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithPolling(50 * time.Millisecond).ShouldNot(HaveLeaked(goodgos))
		})
		mm = mockingmoby.NewMockingMoby()
		mm.AddContainer(furiousFuruncle)
		mm.AddContainer(mockingMoby)
	})

	When("polling", func() {

		It("lists all containers in every cycle", func() {
			src := New(moby.NewMobyEngine(mm))
			defer src.Close()
			Expect(src.Mode()).To(Equal(ModePolling))

			batch := Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeTrue())
			Expect(ids(batch)).To(ConsistOf(furiousFuruncle.ID, mockingMoby.ID))

			mm.RemoveContainer(mockingMoby.ID)
			batch = Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeTrue())
			Expect(ids(batch)).To(ConsistOf(furiousFuruncle.ID))
		})

		It("reports an unreachable engine as unavailable source", func() {
			src := New(moby.NewMobyEngine(mm))
			mm.SetUnreachable(errors.New("gone fishing"))
			_, err := src.Collect(context.Background())
			Expect(err).To(MatchError(whaleguardian.ErrSourceUnavailable))
			Expect(err).To(MatchError(ContainSubstring("gone fishing")))
		})

		It("doesn't listen", func() {
			src := New(moby.NewMobyEngine(mm))
			Expect(src.Listen(context.Background())).To(Succeed())
		})

	})

	When("streaming", func() {

		var src *Source
		var cancel context.CancelFunc
		var done chan error

		start := func(opts ...Option) {
			src = New(moby.NewMobyEngine(mm),
				append([]Option{WithMode(ModeStreaming), WithBackOff(fastBackOff)}, opts...)...)
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan error, 1)
			go func() { done <- src.Listen(ctx) }()
			// Only reconciliations starting after subscribing to events can
			// clean the inbox.
			Eventually(mm.Streaming).Should(BeTrue())
			Eventually(src.Inbox().Dirty).Should(BeTrue())
			DeferCleanup(func() {
				cancel()
				Eventually(done).Should(Receive(MatchError(context.Canceled)))
			})
		}

		It("reconciles first, then hands out only changes", func() {
			start()
			batch := Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeTrue())
			Expect(ids(batch)).To(ContainElements(furiousFuruncle.ID, mockingMoby.ID))

			batch = Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeFalse())
			Expect(batch.Observations).To(BeEmpty())

			mm.StopContainer(furiousFuruncle.ID)
			Eventually(src.Inbox().Len).Should(Equal(1))
			batch = Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeFalse())
			Expect(batch.Observations).To(ConsistOf(
				HaveField("Container.Status", whaleguardian.StatusExited)))

			mm.RemoveContainer(furiousFuruncle.ID)
			Eventually(src.Inbox().Len).Should(Equal(1))
			batch = Successful(src.Collect(context.Background()))
			Expect(batch.Observations).To(ConsistOf(And(
				HaveField("Container.ID", furiousFuruncle.ID),
				HaveField("Gone", BeTrue()))))
		})

		It("reconciles periodically", func() {
			start(WithReconcileEvery(3))
			completes := []bool{}
			for i := 0; i < 6; i++ {
				batch := Successful(src.Collect(context.Background()))
				completes = append(completes, batch.Complete)
			}
			Expect(completes).To(Equal([]bool{true, false, false, true, false, false}))
		})

		It("reconciles after losing the event stream", func() {
			start()
			Expect(Successful(src.Collect(context.Background())).Complete).To(BeTrue())
			Expect(Successful(src.Collect(context.Background())).Complete).To(BeFalse())

			mm.StopEvents()
			Eventually(src.Inbox().Dirty).Should(BeTrue())
			Expect(Successful(src.Collect(context.Background())).Complete).To(BeTrue())
			// The listener might have come back only after the reconciliation
			// started, so allow for another reconciliation.
			Eventually(func() bool {
				return Successful(src.Collect(context.Background())).Complete
			}).Should(BeFalse())
		})

		It("reconciles after an inbox overflow", func() {
			drops := prometheus.NewGauge(prometheus.GaugeOpts{Name: "drops"})
			start(WithInboxSize(1), WithDropsGauge(drops))
			Expect(Successful(src.Collect(context.Background())).Complete).To(BeTrue())
			Expect(testutil.ToFloat64(drops)).To(BeZero())
			mm.PauseContainer(furiousFuruncle.ID)
			mm.UnpauseContainer(furiousFuruncle.ID)
			Eventually(src.Inbox().Drops).Should(BeNumerically(">", 0))
			batch := Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeTrue())
			Expect(testutil.ToFloat64(drops)).To(BeNumerically(">", 0))
			Expect(batch.Observations).To(ContainElement(And(
				HaveField("Container.ID", furiousFuruncle.ID),
				HaveField("Container.Status", whaleguardian.StatusRunning))))
		})

		It("keeps queued observations when reconciliation fails", func() {
			start()
			Expect(Successful(src.Collect(context.Background())).Complete).To(BeTrue())
			mm.StopContainer(furiousFuruncle.ID)
			Eventually(src.Inbox().Len).Should(Equal(1))
			mm.SetUnreachable(errors.New("gone fishing"))
			Eventually(src.Inbox().Dirty).Should(BeTrue())
			Expect(src.Collect(context.Background())).Error().To(MatchError(whaleguardian.ErrSourceUnavailable))
			Expect(src.Inbox().Len()).To(Equal(1))

			mm.SetUnreachable(nil)
			batch := Successful(src.Collect(context.Background()))
			Expect(batch.Complete).To(BeTrue())
			Expect(src.Inbox().Len()).To(BeZero())
		})

	})

	It("samples usage of running containers", func() {
		src := New(moby.NewMobyEngine(mm), WithUsageSampling(true))
		mm.SetUsage(furiousFuruncle.ID, mockingmoby.MockedUsage{
			CPUTotal: 1000, SystemTotal: 10000, OnlineCPUs: 2, Memory: 2048, InactiveFile: 1024})
		batch := Successful(src.Collect(context.Background()))
		Expect(batch.Observations).To(ContainElement(And(
			HaveField("Container.ID", furiousFuruncle.ID),
			HaveField("Container.Usage.Valid", BeTrue()),
			HaveField("Container.Usage.MemoryBytes", uint64(1024)),
			HaveField("Container.Usage.CPUPercent", 0.0))))

		mm.SetUsage(furiousFuruncle.ID, mockingmoby.MockedUsage{
			CPUTotal: 2000, SystemTotal: 20000, OnlineCPUs: 2, Memory: 1024})
		batch = Successful(src.Collect(context.Background()))
		Expect(batch.Observations).To(ContainElement(And(
			HaveField("Container.ID", furiousFuruncle.ID),
			HaveField("Container.Usage.CPUPercent", BeNumerically("~", 20.0, 0.001)))))
		Expect(batch.Observations).NotTo(ContainElement(And(
			HaveField("Container.ID", mockingMoby.ID),
			HaveField("Container.Usage.Valid", BeTrue()))))
	})

	It("applies probe results", func() {
		healthy := furiousFuruncle
		healthy.ID = "4242"
		healthy.Name = "healthy_hank"
		mm.AddContainer(healthy)
		prober := &fakeProber{health: map[string]bool{
			furiousFuruncle.Name: false,
			healthy.Name:         true,
		}}
		src := New(moby.NewMobyEngine(mm), WithProber(prober))
		snap := whaleguardian.Build(nil, time.Now(), true,
			Successful(src.Collect(context.Background())).Observations)
		health := func(id string) whaleguardian.Health {
			c, ok := snap.Container(id)
			Expect(ok).To(BeTrue())
			return c.Health
		}
		Expect(health(furiousFuruncle.ID)).To(Equal(whaleguardian.HealthUnhealthy))
		Expect(health(healthy.ID)).To(Equal(whaleguardian.HealthHealthy))
		Expect(health(mockingMoby.ID)).To(Equal(whaleguardian.HealthNone))
	})

})
