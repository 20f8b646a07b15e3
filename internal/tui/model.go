package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/muesli/reflow/wordwrap"

	"aisim/internal/engine"
	"aisim/internal/protocol"
	"aisim/internal/sim"
)

const (
	defaultFramePeriod = time.Second / 60
	historyLen         = 120
	graphHeight        = 8
	maxLogLines        = 1000
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	onStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	offStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// frameMsg is one presentation frame.
type frameMsg time.Time

type model struct {
	loop       *sim.Loop
	period     time.Duration
	listenAddr string
	logSrc     *LogBuffer
	modelName  string

	table      table.Model
	vp         viewport.Model
	console    textinput.Model
	consoleOn  bool
	decoder    protocol.Decoder
	snapshot   protocol.Snapshot
	history    map[string][]float64
	selected   int
	logs       []string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
	simTime    float64
}

func newModel(loop *sim.Loop, opts Options) model {
	period := opts.FramePeriod
	if period <= 0 {
		period = defaultFramePeriod
	}
	cols := []table.Column{
		{Title: "Sensor", Width: 20},
		{Title: "Dim", Width: 4},
		{Title: "Values", Width: 40},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(1))
	in := textinput.New()
	in.Prompt = ": "
	in.Placeholder = "actuator value"

	m := model{
		loop:       loop,
		period:     period,
		listenAddr: opts.ListenAddr,
		logSrc:     opts.Logs,
		table:      t,
		vp:         viewport.New(0, 0),
		console:    in,
		history:    make(map[string][]float64),
		autoscroll: true,
	}
	loop.Context().View(func(em *engine.Model) { m.modelName = em.Name() })
	m.refreshSensors()
	return m
}

func (m model) Init() tea.Cmd { return m.nextFrame() }

func (m model) nextFrame() tea.Cmd {
	return tea.Tick(m.period, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		if m.loop.Mailbox().Terminated() {
			return m, tea.Quit
		}
		if m.loop.Tick(time.Time(msg)) {
			m.recordHistory()
		}
		m.refreshSensors()
		m.drainLogs()
		return m, m.nextFrame()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.layout()
		m.refreshViewport()
		return m, nil
	case tea.KeyMsg:
		if m.consoleOn {
			return m.updateConsole(msg)
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "backspace":
			m.loop.Reset()
			m.history = make(map[string][]float64)
			m.refreshSensors()
			return m, nil
		case "tab":
			m.selectSensor(m.selected + 1)
			return m, nil
		case "shift+tab":
			m.selectSensor(m.selected - 1)
			return m, nil
		case ":":
			m.consoleOn = true
			m.console.SetValue("")
			m.layout()
			focus := m.console.Focus()
			return m, focus
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "?", "h":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// updateConsole handles keys while the command console is open. Submitted
// lines go through the same decoder and mailbox as network requests.
func (m model) updateConsole(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		line := m.console.Value()
		cmd, err := m.decoder.Decode([]byte(line))
		if err != nil {
			m.appendLog(offStyle.Render("console: " + err.Error()))
		} else {
			seq, _ := m.loop.Mailbox().Put(cmd)
			m.appendLog(fmt.Sprintf("console: queued #%d %s", seq, cmd))
		}
		m.closeConsole()
		return m, nil
	case tea.KeyEsc:
		m.closeConsole()
		return m, nil
	}
	var cmd tea.Cmd
	m.console, cmd = m.console.Update(msg)
	return m, cmd
}

func (m *model) closeConsole() {
	m.consoleOn = false
	m.console.Blur()
	m.layout()
}

func (m *model) selectSensor(i int) {
	n := len(m.snapshot)
	if n == 0 {
		return
	}
	m.selected = ((i % n) + n) % n
	m.table.SetCursor(m.selected)
}

func (m *model) refreshSensors() {
	m.snapshot = m.loop.Context().Snapshot()
	if c, ok := m.snapshot.Lookup("clock"); ok && c.Dim() > 0 {
		m.simTime = c.Values[0]
	} else {
		m.loop.Context().View(func(em *engine.Model) { m.simTime = em.Time() })
	}
	rows := make([]table.Row, len(m.snapshot))
	for i, r := range m.snapshot {
		vals := make([]string, len(r.Values))
		for j, v := range r.Values {
			vals[j] = strconv.FormatFloat(v, 'f', protocol.ValuePrecision, 64)
		}
		rows[i] = table.Row{r.Name, strconv.Itoa(r.Dim()), strings.Join(vals, " ")}
	}
	m.table.SetRows(rows)
	if m.selected >= len(rows) {
		m.selected = 0
	}
	m.table.SetCursor(m.selected)
}

// recordHistory appends the first component of every sensor. NaN and Inf
// samples are left out; asciigraph cannot scale them.
func (m *model) recordHistory() {
	for _, r := range m.loop.Context().Snapshot() {
		if r.Dim() == 0 {
			continue
		}
		v := r.Values[0]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		h := append(m.history[r.Name], v)
		if len(h) > historyLen {
			h = h[len(h)-historyLen:]
		}
		m.history[r.Name] = h
	}
}

func (m *model) drainLogs() {
	if m.logSrc == nil {
		return
	}
	lines := m.logSrc.Drain()
	if len(lines) == 0 {
		return
	}
	for _, l := range lines {
		m.appendLog(l)
	}
}

func (m *model) appendLog(line string) {
	m.logs = append(m.logs, line)
	if over := len(m.logs) - maxLogLines; over > 0 {
		m.logs = m.logs[over:]
	}
	m.refreshViewport()
}

func (m *model) refreshViewport() {
	lines := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		if m.wrap && m.vp.Width > 0 {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

// layout splits the screen between the sensor table, the graph and the log pane.
func (m *model) layout() {
	tableHeight := len(m.snapshot) + 1
	if limit := m.height / 3; tableHeight > limit && limit > 1 {
		tableHeight = limit
	}
	m.table.SetHeight(tableHeight)
	used := lipgloss.Height(m.renderHeader()) + tableHeight + graphHeight + 2 + lipgloss.Height(m.renderBottom()) + 4
	if m.consoleOn {
		used++
	}
	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m model) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	sections := []string{
		m.renderHeader(),
		m.table.View(),
		divider,
		m.renderGraph(),
		divider,
		m.vp.View(),
	}
	if m.consoleOn {
		sections = append(sections, m.console.View())
	}
	sections = append(sections, divider, m.renderBottom())
	return strings.Join(sections, "\n")
}

func (m model) renderHeader() string {
	st := m.loop.Stats()
	info := fmt.Sprintf(" t=%.3f steps=%d applied=%d dropped=%d listen=%s",
		m.simTime, st.Steps, st.Applied, st.Dropped, m.listenAddr)
	header := titleStyle.Render("aisim "+m.modelName) + dimStyle.Render(info)
	if st.Diverged {
		header += " " + offStyle.Render("diverged")
	}
	return header
}

func (m model) renderGraph() string {
	if len(m.snapshot) == 0 {
		return dimStyle.Render("no sensors")
	}
	name := m.snapshot[m.selected].Name
	data := m.history[name]
	caption := selectedStyle.Render(name) + dimStyle.Render(" (tab to cycle)")
	if len(data) < 2 {
		return caption + "\n" + dimStyle.Render("waiting for steps")
	}
	width := m.width - 12
	if width < 10 {
		width = 10
	}
	plot := asciigraph.Plot(data,
		asciigraph.Height(graphHeight),
		asciigraph.Width(width),
		asciigraph.Precision(3),
	)
	return caption + "\n" + plot
}

func indicator(on bool) string {
	if on {
		return onStyle.Render("●")
	}
	return offStyle.Render("●")
}

func (m model) renderBottom() string {
	pending := m.loop.Mailbox().Pending()
	return fmt.Sprintf("Pending %s | Wrap %s | Scroll %s | bksp reset  : command  tab sensor  ? help  q quit",
		indicator(pending), indicator(m.wrap), indicator(m.autoscroll))
}

func (m model) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q          quit",
		" backspace  reset the simulation",
		" :          open command console (actuator value)",
		" tab        next sensor in graph",
		" shift+tab  previous sensor in graph",
		" w          toggle wrap for log pane",
		" s          toggle auto-scroll",
		" h/?        toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}
