package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r3"

	"github.com/lkotsoni/cartesian-controllers/internal/controller"
	"github.com/lkotsoni/cartesian-controllers/internal/scheduler"
)

const (
	seriesTranslation = "translation"
	seriesRotation    = "rotation"

	headerHeight = 2
	legendHeight = 2
	footerHeight = 9
	borderSize   = 2
	maxLogs      = 3

	minStep = 0.001
	maxStep = 0.1
)

// Controller is the part of the motion controller the live view drives.
type Controller interface {
	SetTargetTwist(tw controller.Twist) error
	Pause()
	Resume()
	Paused() bool
	Status() controller.Status
}

type sampleMsg controller.Sample

type feedClosedMsg struct{}

func waitForSample(feed <-chan controller.Sample) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return sampleMsg(s)
	}
}

// Live is a bubbletea model that charts the motion error of a running
// controller and turns key presses into twist increments.
type Live struct {
	ctrl   Controller
	feed   <-chan controller.Sample
	bounds controller.Bounds
	stats  func() scheduler.Stats
	chart  *streamlinechart.Model

	last    controller.Sample
	hasLast bool
	step    float64
	turn    float64
	logs    []string

	width    int
	height   int
	closed   bool
	quitting bool
}

type LiveOption func(*Live)

// WithLoopStats shows scheduler statistics in the header.
func WithLoopStats(fn func() scheduler.Stats) LiveOption {
	return func(l *Live) { l.stats = fn }
}

// WithBounds sets the error bounds the chart is normalised against.
func WithBounds(b controller.Bounds) LiveOption {
	return func(l *Live) { l.bounds = b }
}

// NewLive builds the live view. Errors are charted as fractions of the
// bounds, so both series share the [0, 1] range.
func NewLive(ctrl Controller, feed <-chan controller.Sample, opts ...LiveOption) Live {
	chart := streamlinechart.New(80, 20, streamlinechart.WithYRange(0, 1))
	for name, color := range seriesColors {
		chart.SetDataSetStyles(name, runes.ThinLineStyle, lipgloss.NewStyle().Foreground(lipgloss.Color(color)))
	}
	l := Live{
		ctrl:   ctrl,
		feed:   feed,
		bounds: controller.DefaultBounds(),
		chart:  &chart,
		step:   0.01,
		turn:   0.05,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

func (m Live) Init() tea.Cmd {
	return waitForSample(m.feed)
}

func (m *Live) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

func (m *Live) chartSize() (int, int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	w := m.width - borderSize - 2
	if w < 40 {
		w = 40
	}
	h := m.height - headerHeight - legendHeight - footerHeight - borderSize
	if h < 8 {
		h = 8
	}
	return w, h
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sampleMsg:
		s := controller.Sample(msg)
		m.last, m.hasLast = s, true
		m.chart.PushDataSet(seriesTranslation, fraction(s.Error.Translation().Norm(), m.bounds.MaxDistance))
		m.chart.PushDataSet(seriesRotation, fraction(s.Error.Rotation().Norm(), m.bounds.MaxAngle))
		m.chart.DrawAll()
		return m, waitForSample(m.feed)

	case feedClosedMsg:
		m.closed = true
		m.addLog("pose feed closed")
		return m, nil
	}
	return m, nil
}

func (m Live) handleKey(msg tea.KeyMsg) (Live, tea.Cmd) {
	var tw controller.Twist
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "p", " ":
		if m.ctrl.Paused() {
			m.ctrl.Resume()
		} else {
			m.ctrl.Pause()
		}
		return m, nil
	case "+", "=":
		m.step = math.Min(m.step*2, maxStep)
		return m, nil
	case "-", "_":
		m.step = math.Max(m.step/2, minStep)
		return m, nil
	case "right", "l":
		tw.Linear = r3.Vector{X: m.step}
	case "left", "h":
		tw.Linear = r3.Vector{X: -m.step}
	case "up", "k":
		tw.Linear = r3.Vector{Y: m.step}
	case "down", "j":
		tw.Linear = r3.Vector{Y: -m.step}
	case "pgup", "w":
		tw.Linear = r3.Vector{Z: m.step}
	case "pgdown", "s":
		tw.Linear = r3.Vector{Z: -m.step}
	case "a":
		tw.Angular = r3.Vector{Z: m.turn}
	case "d":
		tw.Angular = r3.Vector{Z: -m.turn}
	default:
		return m, nil
	}
	if err := m.ctrl.SetTargetTwist(tw); err != nil {
		m.addLog(err.Error())
	}
	return m, nil
}

func fraction(v, bound float64) float64 {
	if bound <= 0 {
		return 0
	}
	return math.Min(v/bound, 1)
}

func (m Live) View() string {
	if m.quitting {
		return "live view stopped\n"
	}

	var b strings.Builder
	st := m.ctrl.Status()

	b.WriteString(titleStyle.Render("cartesian motion"))
	b.WriteString(dim.Render(fmt.Sprintf("  %s  %s  cycles %d", st.State, st.Mode, st.Cycles)))
	if m.stats != nil {
		s := m.stats()
		b.WriteString(dim.Render(fmt.Sprintf("  %.0f Hz  overruns %d", s.Hz, s.Overruns)))
	}
	if st.Paused {
		b.WriteString("  " + yellow.Render("PAUSED"))
	}
	b.WriteString("\n\n")

	b.WriteString(chartStyle.Render(m.chart.View()))
	b.WriteString("\n")
	b.WriteString(renderLegend())
	b.WriteString("\n\n")

	if m.hasLast {
		p := m.last.Current.Point()
		e := m.last.Error
		b.WriteString(white.Render(fmt.Sprintf("  pose   x=%+.4f  y=%+.4f  z=%+.4f", p.X, p.Y, p.Z)))
		b.WriteString("\n")
		b.WriteString(cyan.Render(fmt.Sprintf("  error  |t|=%.5f  |r|=%.5f", e.Translation().Norm(), e.Rotation().Norm())))
		b.WriteString("\n")
	} else {
		b.WriteString(dimmer.Render("  waiting for samples"))
		b.WriteString("\n\n")
	}
	b.WriteString(magenta.Render(fmt.Sprintf("  step %.3f m  turn %.3f rad", m.step, m.turn)))
	b.WriteString("\n")
	b.WriteString(dim.Render("  arrows x/y  w/s z  a/d yaw  +/- step  p pause  q quit"))
	b.WriteString("\n")

	for _, l := range m.logs {
		b.WriteString(red.Render("  " + l))
		b.WriteString("\n")
	}
	return b.String()
}

func renderLegend() string {
	items := make([]string, 0, 2)
	for _, name := range []string{seriesTranslation, seriesRotation} {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[name])).Bold(true)
		items = append(items, style.Render("━━")+" "+name)
	}
	return "  " + strings.Join(items, "  ") + dim.Render("  (fraction of bound)")
}

// RunLive blocks until the user quits the live view.
func RunLive(ctrl Controller, feed <-chan controller.Sample, opts ...LiveOption) error {
	p := tea.NewProgram(NewLive(ctrl, feed, opts...), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
