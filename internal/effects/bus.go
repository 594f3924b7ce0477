package effects

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Kind names one stage of the shared bus.
type Kind string

const (
	KindDistortion Kind = "distortion"
	KindDelay      Kind = "delay"
	KindReverb     Kind = "reverb"
	KindCompressor Kind = "compressor"
)

// Wet levels used when a stage is switched on.
const (
	ReverbOnWet     = 0.3
	DelayOnWet      = 0.25
	DistortionOnWet = 0.5
)

const (
	reverbDecay      = 2.5
	reverbRoom       = 0.6
	delayFeedback    = 0.3
	distortionAmount = 0.4
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindDistortion, KindDelay, KindReverb, KindCompressor:
		return k, nil
	}
	return "", fmt.Errorf("unknown effect %q", s)
}

// Settings is a snapshot of the bus parameters.
type Settings struct {
	ReverbWet     float32 `json:"reverb" yaml:"reverb"`
	DelayWet      float32 `json:"delay" yaml:"delay"`
	DistortionWet float32 `json:"distortion" yaml:"distortion"`
	Compressor    bool    `json:"compressor" yaml:"compressor"`
	BPM           int     `json:"bpm" yaml:"bpm"`
}

func DefaultSettings() Settings {
	return Settings{
		ReverbWet:  ReverbOnWet,
		DelayWet:   DelayOnWet,
		Compressor: true,
		BPM:        120,
	}
}

// Bus is the serial effects chain every voice feeds:
// distortion, delay, reverb, compressor. Parameter setters are safe to call
// while another goroutine runs Process.
type Bus struct {
	sampleRate int
	distortion *Distortion
	delay      *Delay
	reverb     *Reverb
	compressor *Compressor
	chain      Chain
	bpm        atomic.Int32
}

func NewBus(sampleRate int) *Bus {
	return NewBusFrom(sampleRate, DefaultSettings())
}

// NewBusFrom builds an independent bus with the given settings.
func NewBusFrom(sampleRate int, s Settings) *Bus {
	if s.BPM <= 0 {
		s.BPM = 120
	}
	b := &Bus{
		sampleRate: sampleRate,
		distortion: NewDistortion(distortionAmount, s.DistortionWet),
		delay:      NewDelay(sampleRate, eighthNoteMs(s.BPM), delayFeedback, s.DelayWet),
		reverb:     NewReverb(sampleRate, reverbRoom, reverbDecay, s.ReverbWet),
		compressor: NewCompressor(sampleRate, -24, 4, 3, 250, 0),
	}
	b.bpm.Store(int32(s.BPM))
	b.compressor.SetBypass(!s.Compressor)
	b.chain = Chain{b.distortion, b.delay, b.reverb, b.compressor}
	return b
}

func eighthNoteMs(bpm int) float64 { return 60000.0 / float64(bpm) / 2 }

func (b *Bus) Process(l, r float32) (float32, float32) { return b.chain.Process(l, r) }

func (b *Bus) Reset() { b.chain.Reset() }

func (b *Bus) SetWet(k Kind, v float32) error {
	switch k {
	case KindDistortion:
		b.distortion.SetWet(v)
	case KindDelay:
		b.delay.SetWet(v)
	case KindReverb:
		b.reverb.SetWet(v)
	case KindCompressor:
		b.compressor.SetBypass(v <= 0)
	default:
		return fmt.Errorf("unknown effect %q", k)
	}
	return nil
}

func (b *Bus) Wet(k Kind) float32 {
	switch k {
	case KindDistortion:
		return b.distortion.Wet()
	case KindDelay:
		return b.delay.Wet()
	case KindReverb:
		return b.reverb.Wet()
	case KindCompressor:
		if b.compressor.Bypassed() {
			return 0
		}
		return 1
	}
	return 0
}

// SetEnabled switches a stage on at its stock wet level or off completely.
func (b *Bus) SetEnabled(k Kind, on bool) error {
	if k == KindCompressor {
		b.compressor.SetBypass(!on)
		return nil
	}
	var v float32
	if on {
		switch k {
		case KindReverb:
			v = ReverbOnWet
		case KindDelay:
			v = DelayOnWet
		case KindDistortion:
			v = DistortionOnWet
		}
	}
	return b.SetWet(k, v)
}

func (b *Bus) Enabled(k Kind) bool { return b.Wet(k) > 0 }

// SetTempo retimes the delay to an eighth note at bpm.
func (b *Bus) SetTempo(bpm int) {
	if bpm <= 0 {
		return
	}
	b.delay.SetTime(eighthNoteMs(bpm))
	b.bpm.Store(int32(bpm))
}

// DelaySamples reports the current delay length.
func (b *Bus) DelaySamples() int { return b.delay.Time() }

func (b *Bus) Settings() Settings {
	return Settings{
		ReverbWet:     b.reverb.Wet(),
		DelayWet:      b.delay.Wet(),
		DistortionWet: b.distortion.Wet(),
		Compressor:    !b.compressor.Bypassed(),
		BPM:           int(b.bpm.Load()),
	}
}
