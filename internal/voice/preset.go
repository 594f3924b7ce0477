package voice

import (
	"fmt"
	"sort"
	"strings"
)

// Category groups tracks by what kind of sound they make.
type Category string

const (
	Percussion Category = "percussion"
	Melodic    Category = "melodic"
	Effect     Category = "effect"
	AudioClip  Category = "audio-clip"
	Master     Category = "master"
)

func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Percussion, Melodic, Effect, AudioClip, Master:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Categories lists the categories a user can add a track for.
func Categories() []Category {
	return []Category{Percussion, Melodic, Effect, AudioClip}
}

// Kind selects the synthesis model behind a preset.
type Kind int

const (
	KindTonal Kind = iota
	KindMembrane
	KindNoise
	KindMetal
	KindPluck
	KindClip
)

type Waveform int

const (
	Sine Waveform = iota
	Square
	Saw
	Triangle
)

type NoiseColor int

const (
	White NoiseColor = iota
	Pink
)

// Envelope is an ADSR shape. Times are seconds, Sustain is a level.
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Preset describes one instrument.
type Preset struct {
	Name  string
	Kind  Kind
	Wave  Waveform
	Noise NoiseColor
	Env   Envelope

	// membrane
	PitchDecay float64
	Octaves    float64

	// metal; Frequency is fixed and pitch is ignored
	Frequency   float64
	Harmonicity float64
	ModIndex    float64
	Resonance   float64

	// pluck
	Dampening float64

	// tonal
	Cutoff    float64 // one-pole lowpass in Hz, 0 = off
	Glide     float64 // semitones swept across attack+decay
	Vibrato   float64 // depth in semitones
	VibratoHz float64

	Level float64
	Mono  bool
}

// Pitched reports whether the preset follows the trigger pitch.
func (p Preset) Pitched() bool {
	switch p.Kind {
	case KindNoise, KindMetal, KindClip:
		return false
	}
	return true
}

var catalog = map[Category]map[string]Preset{
	Percussion: {
		"kick": {Kind: KindMembrane, PitchDecay: 0.05, Octaves: 6,
			Env: Envelope{0.001, 0.4, 0.01, 1.4}, Level: 0.9},
		"snare": {Kind: KindNoise, Noise: White,
			Env: Envelope{0.001, 0.2, 0, 0.2}, Level: 0.5},
		"hihat": {Kind: KindMetal, Frequency: 200, Harmonicity: 5.1, ModIndex: 32, Resonance: 4000,
			Env: Envelope{0.001, 0.1, 0, 0.01}, Level: 0.25},
		"clap": {Kind: KindNoise, Noise: Pink,
			Env: Envelope{0.005, 0.1, 0, 0.1}, Level: 0.5},
		"tom": {Kind: KindMembrane, PitchDecay: 0.1, Octaves: 4,
			Env: Envelope{0.001, 0.3, 0.01, 0.5}, Level: 0.8},
		"cymbal": {Kind: KindMetal, Frequency: 300, Harmonicity: 5.1, ModIndex: 40, Resonance: 4000,
			Env: Envelope{0.001, 1, 0, 0.5}, Level: 0.2},
		"rim": {Kind: KindMembrane, PitchDecay: 0.008, Octaves: 2,
			Env: Envelope{0.001, 0.05, 0, 0.1}, Level: 0.7},
		"perc": {Kind: KindPluck, Dampening: 4000,
			Env: Envelope{0.001, 1, 0, 0.5}, Level: 0.6},
	},
	Melodic: {
		"piano": {Kind: KindTonal, Wave: Triangle, Cutoff: 5000,
			Env: Envelope{0.005, 0.8, 0.2, 1}, Level: 0.5},
		"synth": {Kind: KindTonal, Wave: Saw,
			Env: Envelope{0.01, 0.2, 0.5, 0.8}, Level: 0.3},
		"pad": {Kind: KindTonal, Wave: Sine, Vibrato: 0.1, VibratoHz: 5,
			Env: Envelope{0.5, 0.5, 0.8, 2}, Level: 0.4},
		"organ": {Kind: KindTonal, Wave: Square,
			Env: Envelope{0.01, 0.1, 0.9, 0.1}, Level: 0.25},
		"pluck": {Kind: KindPluck, Dampening: 4000,
			Env: Envelope{0.001, 1, 0, 0.5}, Level: 0.6},
		"sub": {Kind: KindTonal, Wave: Sine, Mono: true,
			Env: Envelope{0.01, 0.3, 0.7, 0.5}, Level: 0.6},
		"808": {Kind: KindTonal, Wave: Sine, Mono: true,
			Env: Envelope{0.001, 0.5, 0.4, 1}, Level: 0.7},
		"synthbass": {Kind: KindTonal, Wave: Saw, Cutoff: 800, Mono: true,
			Env: Envelope{0.01, 0.2, 0.6, 0.3}, Level: 0.4},
		"ebass": {Kind: KindTonal, Wave: Triangle, Mono: true,
			Env: Envelope{0.01, 0.3, 0.5, 0.4}, Level: 0.5},
	},
	Effect: {
		"riser": {Kind: KindTonal, Wave: Saw, Glide: 12,
			Env: Envelope{4, 0, 1, 0.5}, Level: 0.25},
		"downlifter": {Kind: KindTonal, Wave: Saw, Glide: -24,
			Env: Envelope{0.01, 4, 0, 0.5}, Level: 0.25},
		"noise": {Kind: KindNoise, Noise: White,
			Env: Envelope{0.5, 0.5, 0.5, 1}, Level: 0.3},
		"impact": {Kind: KindMembrane, PitchDecay: 0.2, Octaves: 8,
			Env: Envelope{0.001, 0.5, 0, 0.5}, Level: 0.9},
	},
	AudioClip: {
		"recording": {Kind: KindClip, Env: Envelope{0, 0, 1, 0.01}, Level: 1},
		"upload":    {Kind: KindClip, Env: Envelope{0, 0, 1, 0.01}, Level: 1},
		"aivocal":   {Kind: KindClip, Env: Envelope{0, 0, 1, 0.01}, Level: 1},
	},
}

var defaults = map[Category]string{
	Percussion: "kick",
	Melodic:    "synth",
	Effect:     "noise",
	AudioClip:  "upload",
}

// DefaultSound returns the fallback sound for a category.
func DefaultSound(c Category) string { return defaults[c] }

// Lookup returns the preset for sound, falling back to the category
// default. ok is false when the fallback was used or the category has no
// presets.
func Lookup(c Category, sound string) (p Preset, ok bool) {
	sounds, found := catalog[c]
	if !found {
		return Preset{}, false
	}
	name := strings.ToLower(strings.TrimSpace(sound))
	if p, ok = sounds[name]; ok {
		p.Name = name
		return p, true
	}
	name = defaults[c]
	p = sounds[name]
	p.Name = name
	return p, false
}

// Sounds lists the preset names in a category, sorted.
func Sounds(c Category) []string {
	out := make([]string, 0, len(catalog[c]))
	for name := range catalog[c] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
