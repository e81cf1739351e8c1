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

package diag

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thediveo/whaleguardian"
	"github.com/thediveo/whaleguardian/guardian"
	"github.com/thediveo/whaleguardian/metrics"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

// fixedStatus is a StatusProvider with a settable status.
type fixedStatus struct {
	mu sync.Mutex
	st guardian.Status
}

func (f *fixedStatus) Status() guardian.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fixedStatus) Set(state guardian.State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.st.State = state
}

var _ = Describe("diagnostics server", func() {

	var (
		status *fixedStatus
		reg    *prometheus.Registry
		srv    *Server
	)

	BeforeEach(func() {
		t0 := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
		prev := whaleguardian.NewSnapshot(t0,
			whaleguardian.Container{ID: "1", Name: "web", Status: whaleguardian.StatusRunning},
			whaleguardian.Container{ID: "2", Name: "db", Status: whaleguardian.StatusRunning})
		snap := whaleguardian.Build(prev, t0.Add(time.Minute), true, []whaleguardian.Observation{
			{Container: whaleguardian.Container{ID: "1", Name: "web", Project: "shop", Status: whaleguardian.StatusRunning}, At: t0},
		})
		status = &fixedStatus{st: guardian.Status{
			State:      guardian.StatePolling,
			Cycles:     42,
			At:         snap.At,
			Snapshot:   snap,
			Containers: snap.Containers(),
			Tombstones: snap.Tombstones(),
		}}
		reg = prometheus.NewRegistry()
		m := metrics.New(reg)
		m.Cycles.Add(42)
		srv = New(status, reg, nil)
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	It("serves the status", func() {
		rec := get("/status")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))
		var st map[string]interface{}
		Expect(json.Unmarshal(rec.Body.Bytes(), &st)).To(Succeed())
		Expect(st).To(HaveKeyWithValue("state", "polling"))
		Expect(st).To(HaveKeyWithValue("cycles", 42.0))
		Expect(st).To(HaveKeyWithValue("containers", HaveLen(1)))
		Expect(st).To(HaveKeyWithValue("tombstones", ConsistOf(HaveKeyWithValue("status", "removed"))))
	})

	It("serves individual containers and tombstones", func() {
		rec := get("/status/containers/1")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"name":"web"`))

		rec = get("/status/containers/2")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"status":"removed"`))

		Expect(get("/status/containers/3").Code).To(Equal(http.StatusNotFound))
	})

	It("serves the composer projects", func() {
		rec := get("/status/projects")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var pf struct {
			Projects   map[string][]string `json:"projects"`
			Standalone []string            `json:"standalone"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &pf)).To(Succeed())
		Expect(pf.Projects).To(HaveKeyWithValue("shop", ConsistOf("web")))
		Expect(pf.Standalone).To(BeEmpty())
	})

	It("reports health", func() {
		Expect(get("/healthz").Code).To(Equal(http.StatusOK))
		status.Set(guardian.StateDegraded)
		rec := get("/healthz")
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(rec.Body.String()).To(ContainSubstring("degraded"))
		status.Set(guardian.StateStopped)
		Expect(get("/healthz").Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("serves metrics", func() {
		rec := get("/metrics")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("whaleguardian_cycles_total 42"))
	})

	It("rejects other methods", func() {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("serves until cancelled", func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithPolling(50 * time.Millisecond).ShouldNot(HaveLeaked(goodgos))
		})

		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- srv.Serve(ctx, l) }()

		client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
		resp := Successful(client.Get("http://" + l.Addr().String() + "/healthz"))
		body := Successful(io.ReadAll(resp.Body))
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal("ok\n"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("fails on unusable addresses", func() {
		Expect(srv.ListenAndServe(context.Background(), "256.0.0.1:-1")).To(HaveOccurred())
	})

})
