package admin

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"aisim/internal/engine"
	"aisim/internal/mailbox"
	"aisim/internal/sim"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	zero := 0.0
	em, err := engine.Compile(engine.Spec{
		Name:     "admin-test",
		Timestep: 0.01,
		Gravity:  &zero,
		Joints:   []engine.JointSpec{{Name: "hip", Inertia: 1}},
		Actuators: []engine.ActuatorSpec{
			{Name: "hip_x_right", Joint: "hip", CtrlRange: []float64{-1, 1}},
		},
		Sensors: []engine.SensorSpec{
			{Name: "clock", Type: engine.SensorClock},
			{Name: "hip_vel", Type: engine.SensorJointVel, Joint: "hip"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	loop := sim.NewLoop(sim.NewContext(em), mailbox.New(), 10*time.Millisecond, nil)
	return NewServer(loop)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleSensors(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)

	w := do(s, http.MethodGet, "/sensors", "")
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

	var out []SensorView
	g.Expect(json.NewDecoder(w.Body).Decode(&out)).To(Succeed())
	g.Expect(out).To(HaveLen(2))
	g.Expect(out[0].Name).To(Equal("clock"))
	g.Expect(out[1].Dim).To(Equal(1))
}

func TestHandleActuators(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)
	s.Loop.Context().Update(func(m *engine.Model) {
		g.Expect(m.SetControl(0, 0.5)).To(Succeed())
	})

	w := do(s, http.MethodGet, "/actuators", "")
	g.Expect(w.Code).To(Equal(http.StatusOK))

	var out []ActuatorView
	g.Expect(json.NewDecoder(w.Body).Decode(&out)).To(Succeed())
	g.Expect(out).To(HaveLen(1))
	g.Expect(out[0].Name).To(Equal("hip_x_right"))
	g.Expect(out[0].Control).To(Equal(0.5))
	g.Expect(out[0].CtrlRange).To(Equal(&[2]float64{-1, 1}))
}

func TestHandleStats(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)
	s.Loop.Mailbox().RequestReset()

	w := do(s, http.MethodGet, "/stats", "")
	g.Expect(w.Code).To(Equal(http.StatusOK))

	var st StatsView
	g.Expect(json.NewDecoder(w.Body).Decode(&st)).To(Succeed())
	g.Expect(st.Model).To(Equal("admin-test"))
	g.Expect(st.RunID).To(Equal(s.Loop.RunID()))
	g.Expect(st.Mailbox.Resets).To(Equal(uint64(1)))
}

func TestHandleResetGoesThroughMailbox(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)

	w := do(s, http.MethodPost, "/reset", "")
	g.Expect(w.Code).To(Equal(http.StatusAccepted))
	g.Expect(s.Loop.Mailbox().TakeReset()).To(BeTrue())
	g.Expect(s.Loop.Stats().Resets).To(BeZero())
}

func TestHandleCommand(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)

	w := do(s, http.MethodPost, "/command", `{"name":"hip_x_right","value":0.25}`)
	g.Expect(w.Code).To(Equal(http.StatusAccepted))
	cmd, seq, ok := s.Loop.Mailbox().TryTake()
	g.Expect(ok).To(BeTrue())
	g.Expect(seq).To(Equal(uint64(1)))
	g.Expect(cmd.Name).To(Equal("hip_x_right"))
	g.Expect(cmd.Value).To(Equal(0.25))

	for _, body := range []string{`{"name":"hip_x_right"}`, `{"value":1}`, `not json`} {
		w = do(s, http.MethodPost, "/command", body)
		g.Expect(w.Code).To(Equal(http.StatusBadRequest), body)
	}
	g.Expect(s.Loop.Mailbox().Pending()).To(BeFalse())
}

func TestMethodNotAllowed(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)
	g.Expect(do(s, http.MethodGet, "/reset", "").Code).To(Equal(http.StatusMethodNotAllowed))
	g.Expect(do(s, http.MethodGet, "/nope", "").Code).To(Equal(http.StatusNotFound))
}

func TestServeStopsOnCancel(t *testing.T) {
	g := NewWithT(t)
	s := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	g.Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	g.Eventually(func() error {
		resp, err := http.Get("http://" + ln.Addr().String() + "/stats")
		if err == nil {
			resp.Body.Close()
		}
		return err
	}).Should(Succeed())

	cancel()
	g.Eventually(done, 3*time.Second).Should(Receive(BeNil()))
}
