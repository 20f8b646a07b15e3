package tui

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"aisim/internal/engine"
	"aisim/internal/mailbox"
	"aisim/internal/protocol"
	"aisim/internal/sim"
)

const period = 10 * time.Millisecond

func testLoop(t *testing.T) *sim.Loop {
	t.Helper()
	zero := 0.0
	em, err := engine.Compile(engine.Spec{
		Name:      "tui-test",
		Timestep:  0.01,
		Gravity:   &zero,
		Joints:    []engine.JointSpec{{Name: "hip", Inertia: 1}},
		Actuators: []engine.ActuatorSpec{{Name: "hip_x_right", Joint: "hip"}},
		Sensors: []engine.SensorSpec{
			{Name: "clock", Type: engine.SensorClock},
			{Name: "hip_vel", Type: engine.SensorJointVel, Joint: "hip"},
		},
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return sim.NewLoop(sim.NewContext(em), mailbox.New(), period, nil)
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	mi, cmd := m.Update(msg)
	return mi.(model), cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestFramesDriveTheLoop(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	t0 := time.Unix(1000, 0)
	for i := 0; i < 4; i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, frameMsg(t0.Add(time.Duration(i)*period)))
		if cmd == nil {
			t.Fatal("expected the next frame to be scheduled")
		}
	}
	if got := m.loop.Stats().Steps; got != 3 {
		t.Fatalf("steps = %d, want 3", got)
	}
	if len(m.history["clock"]) != 3 {
		t.Fatalf("expected clock history of 3, got %v", m.history["clock"])
	}
	if !strings.Contains(m.View(), "clock") {
		t.Fatal("view should list sensors")
	}
}

func TestBackspaceResets(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	t0 := time.Unix(1000, 0)
	m, _ = update(t, m, frameMsg(t0))
	m, _ = update(t, m, frameMsg(t0.Add(period)))
	m, _ = update(t, m, frameMsg(t0.Add(2*period)))
	if m.simTime == 0 {
		t.Fatal("expected time to advance")
	}
	m, _ = update(t, m, key("backspace"))
	if m.simTime != 0 {
		t.Fatalf("time = %v after reset, want 0", m.simTime)
	}
	if m.loop.Stats().Resets != 1 {
		t.Fatal("expected one reset")
	}
	if len(m.history) != 0 {
		t.Fatal("history should be cleared on reset")
	}
}

func TestConsoleFeedsMailbox(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, key(":"))
	if !m.consoleOn {
		t.Fatal("console should open")
	}
	for _, r := range "hip_x_right 0.25" {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, _ = update(t, m, key("enter"))
	if m.consoleOn {
		t.Fatal("console should close after enter")
	}
	cmd, _, ok := m.loop.Mailbox().TryTake()
	if !ok || cmd.Name != "hip_x_right" || cmd.Value != 0.25 {
		t.Fatalf("unexpected mailbox content: %+v ok=%v", cmd, ok)
	}

	m, _ = update(t, m, key(":"))
	for _, r := range "broken" {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, _ = update(t, m, key("enter"))
	if m.loop.Mailbox().Pending() {
		t.Fatal("malformed console input must not reach the mailbox")
	}
	if last := m.logs[len(m.logs)-1]; !strings.Contains(last, "malformed") {
		t.Fatalf("expected error in log pane, got %q", last)
	}
}

func TestConsoleKeysDoNotTriggerShortcuts(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, key(":"))
	m, _ = update(t, m, key("q"))
	if !m.consoleOn || m.console.Value() != "q" {
		t.Fatalf("q inside the console should be typed, got %q", m.console.Value())
	}
	m, _ = update(t, m, key("esc"))
	if m.consoleOn || m.loop.Mailbox().Pending() {
		t.Fatal("esc should close the console without sending")
	}
}

func TestTabCyclesSensors(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, key("tab"))
	if m.selected != 1 {
		t.Fatalf("selected = %d, want 1", m.selected)
	}
	m, _ = update(t, m, key("tab"))
	if m.selected != 0 {
		t.Fatalf("selected = %d, want wrap to 0", m.selected)
	}
}

func TestNonFiniteCommandDoesNotBreakGraph(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 40})
	cmd, err := protocol.Decode([]byte("hip_x_right inf"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m.loop.Mailbox().Put(cmd)

	t0 := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, frameMsg(t0.Add(time.Duration(i)*period)))
	}
	vel, ok := m.snapshot.Lookup("hip_vel")
	if !ok || !(math.IsNaN(vel.Values[0]) || math.IsInf(vel.Values[0], 0)) {
		t.Fatalf("expected a diverged hip_vel, got %+v", vel)
	}
	for _, v := range m.history["hip_vel"] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("history holds non-finite sample: %v", m.history["hip_vel"])
		}
	}
	if len(m.history["clock"]) != 4 {
		t.Fatalf("clock history = %d samples, want 4", len(m.history["clock"]))
	}

	if !strings.Contains(m.View(), "diverged") {
		t.Fatal("header should flag the diverged state")
	}
	m, _ = update(t, m, key("tab"))
	if m.snapshot[m.selected].Name != "hip_vel" {
		t.Fatalf("selected %s, want hip_vel", m.snapshot[m.selected].Name)
	}
	if !strings.Contains(m.View(), "hip_vel") {
		t.Fatal("graph caption missing")
	}
	m, _ = update(t, m, key("tab"))
	if !strings.Contains(m.View(), "clock") {
		t.Fatal("clock graph missing")
	}
}

func TestQuitKeysAndTermination(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	if _, cmd := update(t, m, key("q")); !isQuit(cmd) {
		t.Fatal("q should quit")
	}
	m.loop.Mailbox().Terminate()
	if _, cmd := update(t, m, frameMsg(time.Now())); !isQuit(cmd) {
		t.Fatal("a terminated mailbox should stop the program")
	}
}

func TestLogsDrainedIntoViewport(t *testing.T) {
	logs := NewLogBuffer(10)
	m := newModel(testLoop(t), Options{FramePeriod: period, Logs: logs})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 40, Height: 40})
	logs.Write([]byte("level=INFO msg=\"client connected\"\n"))
	m, _ = update(t, m, frameMsg(time.Unix(1000, 0)))
	if len(m.logs) != 1 || !strings.Contains(m.vp.View(), "client connected") {
		t.Fatalf("log line not shown: %v", m.logs)
	}
}

func TestWrapToggle(t *testing.T) {
	m := newModel(testLoop(t), Options{FramePeriod: period})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 60})
	m.appendLog("one two three four five six")
	if n := m.vp.TotalLineCount(); n != 1 {
		t.Fatalf("expected single line before wrap, got %d", n)
	}
	m, _ = update(t, m, key("w"))
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	if n := m.vp.TotalLineCount(); n < 2 {
		t.Fatalf("expected wrapped content, got %d lines", n)
	}
}

func TestLogBufferBounded(t *testing.T) {
	b := NewLogBuffer(2)
	b.Write([]byte("a\nb\n"))
	b.Write([]byte("c\n"))
	got := b.Drain()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("unexpected lines: %v", got)
	}
	if len(b.Drain()) != 0 {
		t.Fatal("drain should clear")
	}
}

type fakeProgram struct {
	msgs []tea.Msg
	err  error
}

func (f *fakeProgram) Send(msg tea.Msg)        { f.msgs = append(f.msgs, msg) }
func (f *fakeProgram) Run() (tea.Model, error) { return nil, f.err }

func TestUIQuitAndRun(t *testing.T) {
	p := &fakeProgram{err: tea.ErrProgramKilled}
	u := &UI{program: p}
	u.Quit()
	if _, ok := p.msgs[0].(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg, got %T", p.msgs[0])
	}
	if err := u.Run(); err != nil {
		t.Fatalf("killed program should be a clean exit, got %v", err)
	}
	boom := errors.New("tty gone")
	p.err = boom
	if err := u.Run(); !errors.Is(err, boom) {
		t.Fatalf("expected program error, got %v", err)
	}
}
