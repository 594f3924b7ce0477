package midiexport

import (
	"bytes"
	"errors"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

type noteOn struct {
	tick    int64
	channel uint8
	key     uint8
}

func readNotes(t *testing.T, data []byte) (*smf.SMF, []noteOn) {
	t.Helper()
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read smf: %v", err)
	}
	var out []noteOn
	for _, tr := range s.Tracks {
		var tick int64
		for _, ev := range tr {
			tick += int64(ev.Delta)
			msg := ev.Message
			if len(msg) >= 3 && msg[0]&0xF0 == 0x90 && msg[2] > 0 {
				out = append(out, noteOn{tick: tick, channel: msg[0] & 0x0F, key: msg[1]})
			}
		}
	}
	return s, out
}

func TestExportNoteCount(t *testing.T) {
	m := track.NewModel(16)
	kick, _ := m.Add("Kick", voice.Percussion, "kick")
	hat, _ := m.Add("Hat", voice.Percussion, "hihat")
	lead, _ := m.Add("Lead", voice.Melodic, "synth")
	m.ToggleStep(kick.ID, 0)
	m.ToggleStep(kick.ID, 8)
	m.ToggleStep(hat.ID, 4)
	m.ToggleNote(lead.ID, 2, "C4")
	m.ToggleNote(lead.ID, 2, "E4")

	data, err := Export(m.Tracks(), 120, 16)
	if err != nil {
		t.Fatal(err)
	}
	s, notes := readNotes(t, data)
	if len(s.Tracks) != 4 {
		t.Fatalf("tracks=%d want 4", len(s.Tracks))
	}
	if len(notes) != 5 {
		t.Fatalf("notes=%d want 5", len(notes))
	}
	want := map[noteOn]bool{
		{0, 9, 36}:       true,
		{8 * 120, 9, 36}: true,
		{4 * 120, 9, 42}: true,
		{2 * 120, 0, 60}: true,
		{2 * 120, 0, 64}: true,
	}
	for _, n := range notes {
		if !want[n] {
			t.Errorf("unexpected note %+v", n)
		}
	}
}

func TestExportSkipsMuted(t *testing.T) {
	m := track.NewModel(16)
	kick, _ := m.Add("Kick", voice.Percussion, "kick")
	m.ToggleStep(kick.ID, 0)
	m.SetMute(kick.ID, true)
	if _, err := Export(m.Tracks(), 120, 16); !errors.Is(err, ErrEmpty) {
		t.Fatalf("err=%v", err)
	}
}

func TestExportStepsUseReferencePitch(t *testing.T) {
	m := track.NewModel(8)
	bass, _ := m.Add("Bass", voice.Melodic, "808")
	m.ToggleStep(bass.ID, 1)
	data, err := Export(m.Tracks(), 90, 8)
	if err != nil {
		t.Fatal(err)
	}
	_, notes := readNotes(t, data)
	if len(notes) != 1 || notes[0].key != 48 || notes[0].tick != 120 {
		t.Fatalf("notes=%+v", notes)
	}
}
