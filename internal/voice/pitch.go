package voice

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ReferencePitch is used for step hits that carry no pitch.
const ReferencePitch = "C3"

var semitones = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var names = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParsePitch converts a scientific pitch name such as "C3", "F#4" or "Bb2"
// to a MIDI note number, with C4 = 60. Octaves may be negative: "C-1" is 0.
func ParsePitch(s string) (int, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid pitch %q", s)
	}
	base, ok := semitones[upper(s[0])]
	if !ok {
		return 0, fmt.Errorf("invalid pitch letter in %q", s)
	}
	rest := s[1:]
	switch {
	case strings.HasPrefix(rest, "#"):
		base++
		rest = rest[1:]
	case strings.HasPrefix(rest, "b"):
		base--
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil || strings.HasPrefix(rest, "+") {
		return 0, fmt.Errorf("invalid octave in %q", s)
	}
	note := (octave+1)*12 + base
	if note < 0 || note > 127 {
		return 0, fmt.Errorf("pitch %q out of range", s)
	}
	return note, nil
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// PitchName is the inverse of ParsePitch, using sharps.
func PitchName(note int) string {
	if note < 0 {
		note = 0
	}
	return names[note%12] + strconv.Itoa(note/12-1)
}

// CanonicalPitch normalises a pitch name, e.g. "db3" becomes "C#3".
func CanonicalPitch(s string) (string, error) {
	n, err := ParsePitch(s)
	if err != nil {
		return "", err
	}
	return PitchName(n), nil
}

func MIDIToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}
