package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/track"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	playingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	onStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	headStyle    = lipgloss.NewStyle().Background(lipgloss.Color("4"))
	selStyle     = lipgloss.NewStyle().Background(lipgloss.Color("6"))
	toastStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
)

func (m Model) View() string {
	if m.ShowHelp {
		return helpView()
	}
	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n\n")
	b.WriteString(m.gridView())
	b.WriteString("\n")
	b.WriteString(m.footerView())
	return b.String()
}

func (m Model) headerView() string {
	state := "STOPPED"
	if m.engine.Playing() {
		state = playingStyle.Render("PLAYING")
	}
	loop := "off"
	if m.engine.Looping() {
		loop = "on"
	}
	info := fmt.Sprintf(" │ %s │ BPM:%d │ %s │ Step:%02d/%02d │ Loop:%s │ %s",
		state, m.engine.BPM(), m.engine.Position(), m.frame.Step+1, m.engine.Grid(), loop, effectsLine(m.engine.Effects()))
	return titleStyle.Render("STEPSEQ") + info
}

func effectsLine(s effects.Settings) string {
	flag := func(name string, on bool) string {
		if on {
			return onStyle.Render(name)
		}
		return dimStyle.Render(name)
	}
	return strings.Join([]string{
		flag("REV", s.ReverbWet > 0),
		flag("DLY", s.DelayWet > 0),
		flag("DST", s.DistortionWet > 0),
		flag("CMP", s.Compressor),
	}, " ")
}

func (m Model) gridView() string {
	grid := m.engine.Grid()
	first := (m.CursorCol / stepsPerPage) * stepsPerPage
	last := min(first+stepsPerPage, grid)
	active := map[string]bool{}
	for _, id := range m.frame.Active {
		active[id] = true
	}

	lines := make([]string, 0, len(m.tracks))
	for row, t := range m.tracks {
		cursor := " "
		if row == m.CursorRow {
			cursor = cursorStyle.Render(">")
		}
		label := fmt.Sprintf("%-12.12s %-10.10s", t.Name, t.Sound)
		if active[t.ID] {
			label = playingStyle.Render(label)
		} else {
			label = nameStyle.Render(label)
		}
		if t.IsMaster() {
			lines = append(lines, fmt.Sprintf("%s%s %s vol:%3.0f%%", cursor, label, flags(t), t.Volume*100))
			continue
		}
		var cells strings.Builder
		for step := first; step < last; step++ {
			if step > first && step%4 == 0 {
				cells.WriteString(dimStyle.Render("│"))
			}
			cells.WriteString(m.cell(t, row, step))
		}
		lines = append(lines, fmt.Sprintf("%s%s %s %s vol:%3.0f%% pan:%+.2f",
			cursor, label, flags(t), cells.String(), t.Volume*100, t.Pan))
	}
	return strings.Join(lines, "\n")
}

func (m Model) cell(t track.Track, row, step int) string {
	ch := "·"
	style := dimStyle
	if step < len(t.Steps) && t.Steps[step] {
		ch, style = "■", onStyle
	} else if len(t.Notes[step]) > 0 {
		ch, style = "♪", onStyle
	}
	switch {
	case row == m.CursorRow && step == m.CursorCol:
		style = style.Inherit(selStyle)
	case m.engine.Playing() && step == m.frame.Step:
		style = style.Inherit(headStyle)
	}
	return style.Render(ch)
}

func flags(t track.Track) string {
	m, s := dimStyle.Render("M"), dimStyle.Render("S")
	if t.Muted {
		m = cursorStyle.Render("M")
	}
	if t.Solo {
		s = cursorStyle.Render("S")
	}
	return m + s
}

func (m Model) footerView() string {
	keys := dimStyle.Render(" [Space]Play [Enter]Rewind [x]Step [m]Mute [s]Solo [a]Add [d]Del [e]WAV [M]MIDI [w]Save [?]Help [q]Quit")
	status := ""
	if m.loading != "" {
		status = m.spinner.View() + " " + toastStyle.Render(m.loading)
	} else if m.toast != "" {
		status = toastStyle.Render(m.toast)
	}
	return keys + "\n" + status
}

func helpView() string {
	help := `
 STEPSEQ HELP

 PLAYBACK
   Space      Play / stop
   Enter      Rewind to step 1
   + / -      Tempo up / down
   L          Toggle loop

 EDITING
   ↑↓←→ hjkl  Move cursor
   PgUp/PgDn  Previous / next page of steps
   x          Toggle step
   m / s      Mute / solo track
   [ / ]      Volume down / up
   < / >      Pan left / right
   Tab        Next sound
   a / d      Add / delete track

 EFFECTS
   1 2 3      Reverb, delay, distortion
   c          Compressor

 FILES
   e          Export WAV
   M          Export MIDI
   w          Save project

   ?          Close help
`
	return titleStyle.Render(help)
}
