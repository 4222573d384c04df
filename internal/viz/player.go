package viz

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ising/internal/dynamo"
	"github.com/san-kum/ising/internal/export"
	"github.com/san-kum/ising/internal/lattice"
)

const (
	historyCapacity = 500
	minTemperature  = 0.05
	frameRate       = time.Second / 30
)

type TickMsg time.Time

// Player runs a simulation frame by frame inside a Bubble Tea program.
type Player struct {
	cfg           dynamo.Config
	src           dynamo.Source
	initial       *lattice.Lattice
	sim           *dynamo.Simulator
	stepsPerFrame int
	baseSteps     int
	baseAccepted  int
	running       bool
	history       []lattice.Snapshot
	magHistory    []float64
	playHead      int
	recording     bool
	frames        []lattice.Snapshot
	gifPath       string
	gifScale      int
	theme         Theme
	width, height int
	status        string
	err           error
}

// NewPlayer builds the lattice described by cfg and prepares a live run
// advancing stepsPerFrame Metropolis steps per frame. cfg.Steps is ignored.
func NewPlayer(cfg dynamo.Config, stepsPerFrame int) (Player, error) {
	if stepsPerFrame < 1 {
		stepsPerFrame = 1
	}
	src := dynamo.NewSource(cfg.Seed)
	lat, err := cfg.NewLattice(src)
	if err != nil {
		return Player{}, err
	}
	sim, err := dynamo.New(cfg, lat.Clone(), src)
	if err != nil {
		return Player{}, err
	}
	return Player{
		cfg:           cfg,
		src:           src,
		initial:       lat,
		sim:           sim,
		stepsPerFrame: stepsPerFrame,
		running:       true,
		history:       make([]lattice.Snapshot, 0, historyCapacity),
		magHistory:    make([]float64, 0, historyCapacity),
		playHead:      -1,
		gifPath:       "ising.gif",
		gifScale:      4,
		theme:         ThemeMono,
		width:         80,
		height:        24,
	}, nil
}

// WithGIFPath sets where recordings are written.
func (m Player) WithGIFPath(path string) Player {
	m.gifPath = path
	return m
}

func (m Player) WithTheme(t Theme) Player {
	m.theme = t
	return m
}

func (m Player) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update handles input events and advances the simulation.
func (m Player) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "up", "k":
			m.setTemperature(m.cfg.Temperature + 0.05)
		case "down", "j":
			m.setTemperature(m.cfg.Temperature - 0.05)
		case "+", "=":
			m.stepsPerFrame *= 2
		case "-", "_":
			m.stepsPerFrame = max(1, m.stepsPerFrame/2)
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "t":
			m.theme = NextTheme(m.theme)
		case "g":
			m.toggleRecording()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case TickMsg:
		if m.running && m.err == nil {
			if m.playHead == -1 {
				m.advance()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Player) advance() {
	for k := 0; k < m.stepsPerFrame; k++ {
		if err := m.sim.Step(); err != nil {
			m.err = err
			return
		}
	}
	snap := m.sim.Lattice().Snapshot()
	if len(m.history) == historyCapacity {
		m.history = append(m.history[:0], m.history[1:]...)
		m.magHistory = append(m.magHistory[:0], m.magHistory[1:]...)
	}
	m.history = append(m.history, snap)
	m.magHistory = append(m.magHistory, SnapshotMagnetization(snap))
	if m.recording {
		m.frames = append(m.frames, snap)
	}
}

func (m *Player) setTemperature(t float64) {
	t = math.Max(minTemperature, math.Round(t*1000)/1000)
	cfg := m.cfg
	cfg.Temperature = t
	m.rebuild(cfg, m.sim.Lattice())
}

func (m *Player) reset() {
	m.baseSteps, m.baseAccepted = 0, 0
	m.history = m.history[:0]
	m.magHistory = m.magHistory[:0]
	m.playHead = -1
	sim, err := dynamo.New(m.cfg, m.initial.Clone(), m.src)
	if err != nil {
		m.err = err
		return
	}
	m.sim = sim
}

// rebuild swaps in a simulator for cfg over lat, carrying the step counters.
func (m *Player) rebuild(cfg dynamo.Config, lat *lattice.Lattice) {
	sim, err := dynamo.New(cfg, lat, m.src)
	if err != nil {
		m.status = err.Error()
		return
	}
	res := m.sim.Result()
	m.baseSteps += res.Steps
	m.baseAccepted += res.Accepted
	m.cfg, m.sim = cfg, sim
}

func (m *Player) scrub(dir int) {
	if len(m.history) == 0 {
		return
	}
	if m.playHead == -1 {
		m.playHead = len(m.history) - 1
	}
	m.playHead = max(0, min(m.playHead+dir, len(m.history)-1))
	m.running = false
}

func (m *Player) toggleRecording() {
	if !m.recording {
		m.recording = true
		m.frames = m.frames[:0]
		m.status = "recording"
		return
	}
	m.recording = false
	if err := m.saveGIF(); err != nil {
		m.status = "gif: " + err.Error()
	} else {
		m.status = fmt.Sprintf("saved %d frames to %s", len(m.frames), m.gifPath)
	}
	m.frames = nil
}

func (m *Player) saveGIF() error {
	f, err := os.Create(m.gifPath)
	if err != nil {
		return err
	}
	if err := export.SnapshotsToGIF(f, m.frames, m.gifScale, 2); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Steps is the number of Metropolis steps taken since the last reset.
func (m Player) Steps() int {
	return m.baseSteps + m.sim.Result().Steps
}

func (m Player) Temperature() float64 { return m.cfg.Temperature }

func (m Player) current() lattice.Snapshot {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	return m.sim.Lattice().Snapshot()
}

func (m Player) View() string {
	if m.err != nil {
		return StatusRecording.Render("error: "+m.err.Error()) + "\n"
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("ising %dx%d", m.cfg.Rows, m.cfg.Cols)))
	sb.WriteString("  ")
	switch {
	case m.recording:
		sb.WriteString(StatusRecording.Render("● REC"))
	case m.running:
		sb.WriteString(StatusRunning.Render("▶ running"))
	default:
		sb.WriteString(StatusPaused.Render("❚❚ paused"))
	}
	if m.playHead >= 0 {
		sb.WriteString(Subtle.Render(fmt.Sprintf("  history %d/%d", m.playHead+1, len(m.history))))
	}
	sb.WriteString("\n\n")

	maxRows := max(2, (m.height-8)*2)
	sb.WriteString(RenderLattice(m.current(), m.theme, maxRows, m.width))
	sb.WriteString("\n\n")

	res := m.sim.Result()
	energy, _ := res.PerSite()
	steps := m.baseSteps + res.Steps
	accepted := m.baseAccepted + res.Accepted
	ratio := 0.0
	if steps > 0 {
		ratio = float64(accepted) / float64(steps)
	}
	mag := SnapshotMagnetization(m.current())

	metric := func(label, value string) string {
		return MetricLabel.Render(label+" ") + MetricValue.Render(value) + "  "
	}
	sb.WriteString(metric("T", fmt.Sprintf("%.3f", m.cfg.Temperature)))
	sb.WriteString(metric("|M|", fmt.Sprintf("%.3f", mag)))
	sb.WriteString(metric("E", fmt.Sprintf("%.3f", energy)))
	sb.WriteString(metric("steps", fmt.Sprintf("%d", steps)))
	sb.WriteString(metric("accepted", fmt.Sprintf("%.1f%%", 100*ratio)))
	sb.WriteString(metric("steps/frame", fmt.Sprintf("%d", m.stepsPerFrame)))
	sb.WriteString("\n")

	width := max(10, min(m.width-8, 60))
	sb.WriteString(MetricLabel.Render("|M| ") + Sparkline(m.magHistory, 0, 1, width) + "\n")
	sb.WriteString(MetricLabel.Render("buf ") + ProgressBar(float64(len(m.history))/historyCapacity, width) + "\n")

	if m.status != "" {
		sb.WriteString(Subtle.Render(m.status) + "\n")
	}
	sb.WriteString(KeyHint.Render("space pause  ↑/↓ temperature  +/- speed  [ ] scrub  t theme  g record  r reset  q quit"))
	return sb.String()
}
