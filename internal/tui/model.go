// Package tui implements the terminal step sequencer.
package tui

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	stepseq "github.com/cbegin/stepseq-go"
	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/project"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

const (
	stepsPerPage = 16
	toastTTL     = 3 * time.Second
	bpmStep      = 5
	volumeStep   = 0.1
	panStep      = 0.25
)

type Options struct {
	// WAVPath and MIDIPath are where exports are written.
	WAVPath  string
	MIDIPath string
	// Store, when set, enables saving with w.
	Store *project.Store
}

// Model is the bubbletea model for the sequencer.
type Model struct {
	engine *stepseq.Engine
	opts   Options

	Width  int
	Height int

	tracks    []track.Track
	CursorRow int
	CursorCol int
	frame     transport.Frame
	ShowHelp  bool

	toast   string
	toastID int
	loading string
	spinner spinner.Model
}

func NewModel(e *stepseq.Engine, opts Options) Model {
	if opts.WAVPath == "" {
		opts.WAVPath = "stepseq.wav"
	}
	if opts.MIDIPath == "" {
		opts.MIDIPath = "stepseq.mid"
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		engine:  e,
		opts:    opts,
		tracks:  e.Tracks(),
		Width:   120,
		Height:  30,
		spinner: s,
	}
}

func (m Model) Init() tea.Cmd { return nil }

type clearToastMsg int

type exportedMsg struct {
	path string
	err  error
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case frameMsg:
		m.frame = transport.Frame(msg)
		return m, nil

	case toastMsg:
		return m.showToast(string(msg))

	case clearToastMsg:
		if int(msg) == m.toastID {
			m.toast = ""
		}
		return m, nil

	case loadingMsg:
		m.loading = ""
		if msg.active {
			m.loading = msg.label
			return m, m.spinner.Tick
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case exportedMsg:
		if msg.err != nil {
			return m.showToast(stepseq.Issue(msg.err))
		}
		return m.showToast("Wrote " + msg.path)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) showToast(s string) (tea.Model, tea.Cmd) {
	m.toast = s
	m.toastID++
	id := m.toastID
	return m, tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg(id) })
}

func (m Model) current() (track.Track, bool) {
	if m.CursorRow < 0 || m.CursorRow >= len(m.tracks) {
		return track.Track{}, false
	}
	return m.tracks[m.CursorRow], true
}

func (m *Model) refresh() {
	m.tracks = m.engine.Tracks()
	if m.CursorRow >= len(m.tracks) {
		m.CursorRow = len(m.tracks) - 1
	}
	if m.CursorRow < 0 {
		m.CursorRow = 0
	}
}

// apply dispatches a command and surfaces any error as a toast.
func (m Model) apply(cmd stepseq.Command) (tea.Model, tea.Cmd) {
	err := m.engine.Dispatch(cmd)
	m.refresh()
	if err != nil {
		return m.showToast(stepseq.Issue(err))
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	grid := m.engine.Grid()
	t, ok := m.current()

	switch msg.String() {
	case "ctrl+c", "q":
		m.engine.Stop()
		return m, tea.Quit

	case "?":
		m.ShowHelp = !m.ShowHelp

	case " ":
		if !m.engine.Ready() {
			if err := m.engine.Init(); err != nil {
				return m.showToast(stepseq.Issue(err))
			}
		}
		return m.apply(stepseq.PlayCommand{})
	case "enter":
		return m.apply(stepseq.RewindCommand{})
	case "L":
		return m.apply(stepseq.LoopCommand{})
	case "+", "=":
		return m.apply(stepseq.NudgeTempoCommand{Delta: bpmStep})
	case "-", "_":
		return m.apply(stepseq.NudgeTempoCommand{Delta: -bpmStep})

	case "up", "k":
		if m.CursorRow > 0 {
			m.CursorRow--
		}
	case "down", "j":
		if m.CursorRow < len(m.tracks)-1 {
			m.CursorRow++
		}
	case "left", "h":
		if m.CursorCol > 0 {
			m.CursorCol--
		}
	case "right", "l":
		if m.CursorCol < grid-1 {
			m.CursorCol++
		}
	case "pgdown":
		m.CursorCol = min(m.CursorCol+stepsPerPage, grid-1)
	case "pgup":
		m.CursorCol = max(m.CursorCol-stepsPerPage, 0)

	case "x":
		if ok {
			return m.apply(stepseq.ToggleStepCommand{ID: t.ID, Step: m.CursorCol})
		}
	case "m":
		if ok {
			return m.apply(stepseq.MuteCommand{ID: t.ID, Muted: !t.Muted})
		}
	case "s":
		if ok {
			return m.apply(stepseq.SoloCommand{ID: t.ID, Solo: !t.Solo})
		}
	case "]":
		if ok {
			return m.apply(stepseq.VolumeCommand{ID: t.ID, Volume: t.Volume + volumeStep})
		}
	case "[":
		if ok {
			return m.apply(stepseq.VolumeCommand{ID: t.ID, Volume: t.Volume - volumeStep})
		}
	case ">":
		if ok {
			return m.apply(stepseq.PanCommand{ID: t.ID, Pan: t.Pan + panStep})
		}
	case "<":
		if ok {
			return m.apply(stepseq.PanCommand{ID: t.ID, Pan: t.Pan - panStep})
		}
	case "tab":
		if ok && !t.IsMaster() {
			return m.apply(stepseq.SoundCommand{ID: t.ID, Sound: nextSound(t)})
		}

	case "a":
		m2, cmd := m.apply(stepseq.AddTrackCommand{})
		mm := m2.(Model)
		mm.CursorRow = len(mm.tracks) - 1
		return mm, cmd
	case "d":
		if ok {
			return m.apply(stepseq.RemoveTrackCommand{ID: t.ID})
		}

	case "1":
		return m.toggleEffect(effects.KindReverb)
	case "2":
		return m.toggleEffect(effects.KindDelay)
	case "3":
		return m.toggleEffect(effects.KindDistortion)
	case "c":
		return m.toggleEffect(effects.KindCompressor)

	case "e":
		return m, m.exportWAV()
	case "M":
		return m, m.exportMIDI()
	case "w":
		return m.save()
	}
	return m, nil
}

func (m Model) toggleEffect(k effects.Kind) (tea.Model, tea.Cmd) {
	on, err := m.engine.ToggleEffect(k)
	if err != nil {
		return m.showToast(stepseq.Issue(err))
	}
	state := "off"
	if on {
		state = "on"
	}
	return m.showToast(string(k) + " " + state)
}

// nextSound cycles through the presets of a track's category.
func nextSound(t track.Track) string {
	sounds := voice.Sounds(t.Category)
	for i, s := range sounds {
		if s == t.Sound {
			return sounds[(i+1)%len(sounds)]
		}
	}
	return voice.DefaultSound(t.Category)
}

func (m Model) exportWAV() tea.Cmd {
	e, path := m.engine, m.opts.WAVPath
	return func() tea.Msg {
		data, err := e.Export(context.Background())
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		return exportedMsg{path: path, err: err}
	}
}

func (m Model) exportMIDI() tea.Cmd {
	e, path := m.engine, m.opts.MIDIPath
	return func() tea.Msg {
		data, err := e.ExportMIDI()
		if err == nil {
			err = os.WriteFile(path, data, 0o644)
		}
		return exportedMsg{path: path, err: err}
	}
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.opts.Store == nil {
		return m.showToast("No project directory configured")
	}
	name, err := m.opts.Store.Save(m.engine.Document())
	if err != nil {
		return m.showToast(stepseq.Issue(err))
	}
	return m.showToast("Saved " + name)
}

// Run starts the program and blocks until the user quits.
func Run(e *stepseq.Engine, b *Bridge, opts Options) error {
	p := tea.NewProgram(NewModel(e, opts), tea.WithAltScreen())
	b.Attach(p)
	_, err := p.Run()
	return err
}
