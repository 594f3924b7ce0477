package track

import (
	"sort"

	"github.com/cbegin/stepseq-go/internal/voice"
)

const (
	DefaultBars        = 16
	DefaultBeatsPerBar = 4
	DefaultVolume      = 0.8
	MasterID           = "master"
)

// GridLength is the number of steps in a pattern.
func GridLength(bars, beatsPerBar int) int {
	if bars <= 0 {
		bars = DefaultBars
	}
	if beatsPerBar <= 0 {
		beatsPerBar = DefaultBeatsPerBar
	}
	return bars * beatsPerBar
}

// Track is one row of the pattern.
type Track struct {
	ID       string
	Name     string
	Category voice.Category
	Sound    string
	Volume   float64
	Pan      float64
	Muted    bool
	Solo     bool
	Steps    []bool
	Notes    map[int][]string
	Clip     string
}

func (t Track) IsMaster() bool { return t.Category == voice.Master }

// Clone returns a deep copy.
func (t Track) Clone() Track {
	c := t
	c.Steps = append([]bool(nil), t.Steps...)
	c.Notes = make(map[int][]string, len(t.Notes))
	for beat, pitches := range t.Notes {
		c.Notes[beat] = append([]string(nil), pitches...)
	}
	return c
}

// HasHits reports whether any step or note is set.
func (t Track) HasHits() bool {
	for _, on := range t.Steps {
		if on {
			return true
		}
	}
	return len(t.Notes) > 0
}

// Beats returns the note map keys in ascending order.
func (t Track) Beats() []int {
	out := make([]int, 0, len(t.Notes))
	for beat := range t.Notes {
		out = append(out, beat)
	}
	sort.Ints(out)
	return out
}

// Hit is one trigger at a beat. Pitch is empty for step hits.
type Hit struct {
	TrackID string
	Pitch   string
}

// Audible filters tracks down to those that should sound: never the master,
// never muted tracks, and only soloed tracks when any track is soloed.
func Audible(tracks []Track) []Track {
	solo := false
	for _, t := range tracks {
		if t.Solo && !t.IsMaster() && !t.Muted {
			solo = true
			break
		}
	}
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.IsMaster() || t.Muted || (solo && !t.Solo) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// HitsAt lists the hits of the given tracks at beat, in track order.
func HitsAt(tracks []Track, beat int) []Hit {
	var hits []Hit
	for _, t := range tracks {
		if beat >= 0 && beat < len(t.Steps) && t.Steps[beat] {
			hits = append(hits, Hit{TrackID: t.ID})
		}
		for _, p := range t.Notes[beat] {
			hits = append(hits, Hit{TrackID: t.ID, Pitch: p})
		}
	}
	return hits
}
