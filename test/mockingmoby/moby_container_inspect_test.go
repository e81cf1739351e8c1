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
	"errors"

	"github.com/containerd/errdefs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

var _ = Describe("inspects mocked containers", func() {

	It("inspects containers by ID and name", func() {
		mm := NewMockingMoby()
		defer mm.Close()

		_, err := mm.ContainerInspect(context.Background(), "foo")
		Expect(errdefs.IsNotFound(err)).To(BeTrue())

		mm.AddContainer(furiousFuruncle)
		details, err := mm.ContainerInspect(context.Background(), furiousFuruncle.ID)
		Expect(err).NotTo(HaveOccurred())
		cmatcher := MatchFields(IgnoreExtras, Fields{
			"ContainerJSONBase": PointTo(MatchFields(IgnoreExtras, Fields{
				"ID":   Equal(furiousFuruncle.ID),
				"Name": Equal("/" + furiousFuruncle.Name),
				"State": PointTo(MatchFields(IgnoreExtras, Fields{
					"Running": BeTrue(),
					"Paused":  BeFalse(),
					"Pid":     Equal(furiousFuruncle.PID),
					"Health":  BeNil(),
				})),
			})),
			"Config": PointTo(MatchFields(IgnoreExtras, Fields{
				"Image":  Equal(furiousFuruncle.Image),
				"Labels": Equal(furiousFuruncle.Labels),
			})),
		})
		Expect(details).To(cmatcher)
		Expect(string(details.State.Status)).To(Equal(MockedStatus[furiousFuruncle.Status]))
		Expect(details.State.StartedAt).NotTo(Equal(dockerZeroTime))

		details, err = mm.ContainerInspect(context.Background(), furiousFuruncle.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(details).To(cmatcher)
	})

	It("inspects status and health correctly", func() {
		mm := NewMockingMoby()
		defer mm.Close()
		mm.AddContainer(furiousFuruncle)
		mm.StopContainer(furiousFuruncle.Name)
		details, err := mm.ContainerInspect(context.Background(), furiousFuruncle.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(details).To(MatchFields(IgnoreExtras, Fields{
			"ContainerJSONBase": PointTo(MatchFields(IgnoreExtras, Fields{
				"ID": Equal(furiousFuruncle.ID),
				"State": PointTo(MatchFields(IgnoreExtras, Fields{
					"Running": BeFalse(),
					"Paused":  BeFalse(),
					"Pid":     BeZero(),
				})),
			})),
		}))
		Expect(string(details.State.Status)).To(Equal(MockedStatus[MockedExited]))

		mm.AddContainer(pausingPm)
		mm.SetHealth(pausingPm.ID, "unhealthy")
		details, err = mm.ContainerInspect(context.Background(), pausingPm.Name)
		Expect(err).NotTo(HaveOccurred())
		Expect(details.State.Running).To(BeTrue())
		Expect(details.State.Paused).To(BeTrue())
		Expect(string(details.State.Status)).To(Equal(MockedStatus[pausingPm.Status]))
		Expect(details.State.Health).NotTo(BeNil())
		Expect(string(details.State.Health.Status)).To(Equal("unhealthy"))
	})

	It("recognizes cancelled context", func() {
		mm := NewMockingMoby()
		defer mm.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(mm.ContainerInspect(ctx, "foo")).Error().To(HaveOccurred())
	})

	It("registers and calls hooks", func() {
		mm := NewMockingMoby()
		defer mm.Close()
		doh := errors.New("doh!")

		_, err := mm.ContainerInspect(
			WithHook(
				context.Background(),
				ContainerInspectPre,
				func(HookKey) error {
					return doh
				}), "foobar")
		Expect(err).To(Equal(doh))

		_, err = mm.ContainerInspect(
			WithHook(
				context.Background(),
				ContainerInspectPost,
				func(HookKey) error {
					return doh
				}), "foobar")
		Expect(err).To(Equal(doh))
	})

})
