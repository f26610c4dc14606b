package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lkotsoni/cartesian-controllers/internal/config"
	"github.com/lkotsoni/cartesian-controllers/internal/experiment"
)

var robotInfo = map[string]string{
	"gantry": "cartesian xyz with a yaw-pitch-roll wrist",
	"arm6":   "six axis industrial arm",
}

type state int

const (
	stateRobots state = iota
	statePresets
	stateRunning
	stateResult
)

// Runner plays one scenario preset offline.
type Runner func(robot, preset string) (*experiment.Result, error)

type resultMsg struct {
	res *experiment.Result
	err error
}

// Picker browses the built-in scenario presets and runs the chosen one.
type Picker struct {
	state   state
	cursor  int
	robots  []string
	presets []string
	robot   string
	preset  string
	run     Runner

	result *experiment.Result
	err    error

	width  int
	height int
}

func NewPicker(run Runner) Picker {
	return Picker{
		state:  stateRobots,
		robots: config.Robots(),
		run:    run,
		width:  80,
		height: 24,
	}
}

func (m Picker) Init() tea.Cmd { return nil }

func (m Picker) runPreset() tea.Cmd {
	robot, preset, run := m.robot, m.preset, m.run
	return func() tea.Msg {
		res, err := run(robot, preset)
		return resultMsg{res: res, err: err}
	}
}

func (m Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case resultMsg:
		m.result, m.err = msg.res, msg.err
		m.state = stateResult
	}
	return m, nil
}

func (m Picker) handleKey(msg tea.KeyMsg) (Picker, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.state {
	case stateRobots:
		return m.robotKey(msg)
	case statePresets:
		return m.presetKey(msg)
	case stateResult:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			m.state = stateRunning
			return m, m.runPreset()
		case "esc", "enter", " ":
			m.state = statePresets
			m.result, m.err = nil, nil
		}
	}
	return m, nil
}

func (m Picker) moveCursor(key string, n int) Picker {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < n-1 {
			m.cursor++
		}
	}
	return m
}

func (m Picker) robotKey(msg tea.KeyMsg) (Picker, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "enter", " ":
		if len(m.robots) == 0 {
			return m, nil
		}
		m.robot = m.robots[m.cursor]
		m.presets = config.ListPresets(m.robot)
		m.state = statePresets
		m.cursor = 0
		return m, nil
	}
	return m.moveCursor(msg.String(), len(m.robots)), nil
}

func (m Picker) presetKey(msg tea.KeyMsg) (Picker, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.state = stateRobots
		m.cursor = indexOf(m.robots, m.robot)
		return m, nil
	case "enter", " ":
		if len(m.presets) == 0 {
			return m, nil
		}
		m.preset = m.presets[m.cursor]
		m.state = stateRunning
		return m, m.runPreset()
	}
	return m.moveCursor(msg.String(), len(m.presets)), nil
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}

func (m Picker) View() string {
	switch m.state {
	case stateRobots:
		return m.viewRobots()
	case statePresets:
		return m.viewPresets()
	case stateRunning:
		return "\n      " + yellow.Render("○ ") + dim.Render(fmt.Sprintf("running %s/%s", m.robot, m.preset)) + "\n"
	case stateResult:
		return m.viewResult()
	}
	return ""
}

func (m Picker) viewRobots() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("        " + cyan.Render("c a r t e s i a n") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("\n")

	for i, name := range m.robots {
		desc := robotInfo[name]
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-10s", name)) + dim.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-10s", name)) + dimmer.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter presets   q quit") + "\n")
	return b.String()
}

func (m Picker) viewPresets() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString("      " + cyan.Render(m.robot) + "  " + dim.Render(robotInfo[m.robot]) + "\n")
	b.WriteString(dimmer.Render("      "+strings.Repeat("─", 30)) + "\n\n")

	for i, name := range m.presets {
		cfg := config.GetPreset(m.robot, name)
		desc := ""
		if cfg != nil {
			desc = fmt.Sprintf("%s  %.1fs  %d events", cfg.Hardware.Interface, cfg.Scenario.Duration, len(cfg.Scenario.Events))
		}
		if i == m.cursor {
			b.WriteString("      " + cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-14s", name)) + magenta.Render(desc) + "\n")
		} else {
			b.WriteString("        " + dim.Render(fmt.Sprintf("%-14s", name)) + dim.Render(desc) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dim.Render("      ↑↓ select   enter run   esc back") + "\n")
	return b.String()
}

func (m Picker) viewResult() string {
	var b strings.Builder

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString("   " + red.Render("● ") + cyan.Render(m.robot+"/"+m.preset) + "  " + red.Render(m.err.Error()) + "\n")
		b.WriteString("\n" + dim.Render("   r retry  esc back  q quit") + "\n")
		return b.String()
	}

	res := m.result
	b.WriteString(fmt.Sprintf("   %s %s  %s\n\n",
		green.Render("●"), cyan.Render(m.robot+"/"+m.preset),
		dim.Render(fmt.Sprintf("%s  %d cycles  %d rejected", res.Mode, res.Cycles, res.Rejected))))

	names := make([]string, 0, len(res.Metrics))
	for name := range res.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("   " + dim.Render(fmt.Sprintf("%-26s", name)) + white.Render(fmt.Sprintf("%.6f", res.Metrics[name])) + "\n")
	}

	norms := make([]float64, len(res.Samples))
	for i, s := range res.Samples {
		norms[i] = errorNorm(s.Error)
	}
	if len(norms) > 1 {
		w := m.width - 16
		if w > 60 {
			w = 60
		}
		if w < 10 {
			w = 10
		}
		b.WriteString(fmt.Sprintf("\n   %s %s\n", dim.Render("|e|"), cyan.Render(sparkline(norms, w))))
	}

	b.WriteString("\n" + dim.Render("   r rerun  esc back  q quit") + "\n")
	return b.String()
}

func errorNorm(e [6]float64) float64 {
	sum := 0.0
	for _, v := range e {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		if idx > 7 {
			idx = 7
		}
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func RunInteractive(run Runner) error {
	p := tea.NewProgram(NewPicker(run), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
