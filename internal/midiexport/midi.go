package midiexport

import (
	"bytes"
	"errors"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

const (
	TicksPerQuarter = 480
	ticksPerStep    = TicksPerQuarter / 4
	drumChannel     = 9
	velocity        = 100

	KindNothingToExport ftag.Kind = "nothing-to-export"
)

var ErrEmpty = errors.New("no notes to export")

// gmDrums maps percussion sounds onto General MIDI drum keys.
var gmDrums = map[string]uint8{
	"kick":   36,
	"snare":  38,
	"hihat":  42,
	"clap":   39,
	"tom":    45,
	"cymbal": 49,
	"rim":    37,
	"perc":   56,
}

// gmPrograms picks a General MIDI program for melodic and effect sounds.
var gmPrograms = map[string]uint8{
	"piano":      0,
	"synth":      81,
	"pad":        89,
	"organ":      16,
	"pluck":      45,
	"sub":        38,
	"808":        38,
	"synthbass":  38,
	"ebass":      33,
	"riser":      95,
	"downlifter": 95,
	"noise":      122,
	"impact":     118,
}

type event struct {
	tick uint32
	msg  []byte
	off  bool
}

// Export writes the audible tracks as a format 1 standard MIDI file: one
// tempo track followed by one track per instrument. Percussion goes to
// channel 10.
func Export(tracks []track.Track, bpm, grid int) ([]byte, error) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaTempo(float64(transport.ClampBPM(bpm))))
	meta.Add(0, smf.MetaMeter(4, 4))
	meta.Close(uint32(grid * ticksPerStep))
	if err := s.Add(meta); err != nil {
		return nil, fault.Wrap(err, fmsg.With("add tempo track"))
	}

	notes := 0
	melodic := uint8(0)
	for _, t := range track.Audible(tracks) {
		if t.Category == voice.AudioClip {
			continue
		}
		ch := drumChannel
		if t.Category != voice.Percussion {
			ch = int(melodic)
			melodic++
			if melodic == drumChannel {
				melodic++
			}
			if melodic > 15 {
				melodic = 0
			}
		}
		events := trackEvents(t, uint8(ch), grid)
		if len(events) == 0 {
			continue
		}
		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(t.Name))
		if ch != drumChannel {
			tr.Add(0, midi.ProgramChange(uint8(ch), gmPrograms[t.Sound]))
		}
		var last uint32
		for _, e := range events {
			tr.Add(e.tick-last, e.msg)
			last = e.tick
			if !e.off {
				notes++
			}
		}
		tr.Close(0)
		if err := s.Add(tr); err != nil {
			return nil, fault.Wrap(err, fmsg.With("add instrument track"))
		}
	}
	if notes == 0 {
		return nil, fault.Wrap(ErrEmpty, ftag.With(KindNothingToExport),
			fmsg.WithDesc("no notes", "Nothing to export. Add some steps or notes first."))
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fault.Wrap(err, fmsg.With("write smf"))
	}
	return buf.Bytes(), nil
}

func trackEvents(t track.Track, ch uint8, grid int) []event {
	length := uint32(ticksPerStep * 2)
	if ch == drumChannel {
		length = ticksPerStep / 2
	}
	var events []event
	add := func(step int, key uint8) {
		on := uint32(step * ticksPerStep)
		events = append(events,
			event{tick: on, msg: midi.NoteOn(ch, key, velocity)},
			event{tick: on + length, msg: midi.NoteOff(ch, key), off: true})
	}
	for step := 0; step < grid; step++ {
		if step < len(t.Steps) && t.Steps[step] {
			add(step, stepKey(t))
		}
		for _, p := range t.Notes[step] {
			n, err := voice.ParsePitch(p)
			if err != nil {
				continue
			}
			add(step, uint8(n))
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
	return events
}

func stepKey(t track.Track) uint8 {
	if t.Category == voice.Percussion {
		if k, ok := gmDrums[t.Sound]; ok {
			return k
		}
		return gmDrums["kick"]
	}
	n, _ := voice.ParsePitch(voice.ReferencePitch)
	return uint8(n)
}
