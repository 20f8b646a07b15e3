// Package admin serves a small HTTP status surface next to the control server.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"aisim/internal/engine"
	"aisim/internal/logging"
	"aisim/internal/mailbox"
	"aisim/internal/protocol"
	"aisim/internal/sim"
)

// Server exposes read-only views of the running simulation plus reset and
// command injection. Mutations go through the mailbox, never the engine.
type Server struct {
	Loop   *sim.Loop
	Logger *slog.Logger
	router *mux.Router
}

// SensorView is the JSON form of one sensor reading.
type SensorView struct {
	Name   string    `json:"name"`
	Dim    int       `json:"dim"`
	Values []float64 `json:"values"`
}

// ActuatorView is the JSON form of one actuator input slot.
type ActuatorView struct {
	Name      string      `json:"name"`
	Control   float64     `json:"control"`
	CtrlRange *[2]float64 `json:"ctrlrange,omitempty"`
}

// StatsView combines loop and mailbox counters.
type StatsView struct {
	RunID   string        `json:"run_id"`
	Model   string        `json:"model"`
	SimTime float64       `json:"sim_time"`
	Loop    sim.LoopStats `json:"loop"`
	Mailbox mailbox.Stats `json:"mailbox"`
}

type commandRequest struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

func NewServer(loop *sim.Loop) *Server {
	s := &Server{Loop: loop, Logger: logging.Discard()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/sensors", s.handleSensors).Methods(http.MethodGet)
	r.HandleFunc("/actuators", s.handleActuators).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/command", s.handleCommand).Methods(http.MethodPost)
	s.router = r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.Logger.Info("admin server listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeJSON marshals before writing the header; non-finite sensor values
// cannot be encoded and turn into a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(b, '\n'))
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	snap := s.Loop.Context().Snapshot()
	out := make([]SensorView, len(snap))
	for i, rd := range snap {
		out[i] = SensorView{Name: rd.Name, Dim: rd.Dim(), Values: rd.Values}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleActuators(w http.ResponseWriter, r *http.Request) {
	var out []ActuatorView
	s.Loop.Context().View(func(m *engine.Model) {
		out = make([]ActuatorView, m.NumActuators())
		for i, name := range m.Actuators() {
			av := ActuatorView{Name: name, Control: m.Control(i)}
			if lo, hi, limited := m.CtrlRange(i); limited {
				av.CtrlRange = &[2]float64{lo, hi}
			}
			out[i] = av
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := StatsView{
		RunID:   s.Loop.RunID(),
		Loop:    s.Loop.Stats(),
		Mailbox: s.Loop.Mailbox().Stats(),
	}
	s.Loop.Context().View(func(m *engine.Model) {
		st.Model = m.Name()
		st.SimTime = m.Time()
	})
	writeJSON(w, http.StatusOK, st)
}

// handleReset hands the reset to the stepping loop; the engine is only ever
// reset on the control goroutine.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.Loop.Mailbox().RequestReset()
	s.Logger.Info("reset requested via admin")
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" || req.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and value are required"})
		return
	}
	seq, overwritten := s.Loop.Mailbox().Put(protocol.Command{Name: req.Name, Value: *req.Value})
	writeJSON(w, http.StatusAccepted, map[string]any{"seq": seq, "overwritten": overwritten})
}
