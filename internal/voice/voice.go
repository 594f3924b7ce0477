package voice

import (
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/lfo"
	"github.com/cbegin/stepseq-go/internal/pcm"
)

const (
	twoPi        = math.Pi * 2
	maxPolyphony = 8
	ksFeedback   = 0.996
)

// metalRatios are the inharmonic partial ratios of the metal model.
var metalRatios = [6]float64{1.0, 1.483, 1.932, 2.546, 2.630, 3.897}

type note struct {
	active bool
	age    int
	t      int // frames since trigger
	hold   int // frames before release
	freq   float64
	phase  float64
	env    envelope
	vib    lfo.LFO

	carrier [6]float64
	mod     [6]float64

	lp   float64
	pink [3]float64

	ks    []float64
	ksPos int
	ksLP  float64

	clipPos int
}

// Voice is a polyphonic instrument owned by a single track. It is safe for
// concurrent use: the transport triggers it while the audio callback renders.
type Voice struct {
	mu         sync.Mutex
	preset     Preset
	category   Category
	sampleRate float64
	bus        *effects.Bus
	logger     *slog.Logger

	notes [maxPolyphony]note

	gainL, gainR float64
	muted        bool
	closed       bool

	lfsr  uint32
	hpA   float64
	lpA   float64
	dampA float64
	clip  *pcm.Buffer
}

func newVoice(p Preset, c Category, sampleRate int, bus *effects.Bus, logger *slog.Logger) *Voice {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Voice{
		preset:     p,
		category:   c,
		sampleRate: float64(sampleRate),
		bus:        bus,
		logger:     logger,
		lfsr:       seed(string(c) + "/" + p.Name),
	}
	if p.Resonance > 0 {
		v.hpA = onePoleAlpha(p.Resonance, v.sampleRate)
	}
	if p.Cutoff > 0 {
		v.lpA = onePoleAlpha(p.Cutoff, v.sampleRate)
	}
	if p.Dampening > 0 {
		v.dampA = onePoleAlpha(p.Dampening, v.sampleRate)
	}
	v.setGainLocked(1, 0, false)
	return v
}

func seed(name string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	s := h.Sum32()
	if s == 0 {
		s = 0xACE1
	}
	return s
}

func onePoleAlpha(cutoff, sampleRate float64) float64 {
	if cutoff >= sampleRate/2 {
		return 1
	}
	rc := 1.0 / (twoPi * cutoff)
	dt := 1.0 / sampleRate
	return dt / (rc + dt)
}

func (v *Voice) Preset() Preset     { return v.preset }
func (v *Voice) Category() Category { return v.category }
func (v *Voice) Bus() *effects.Bus  { return v.bus }
func (v *Voice) SampleRate() int    { return int(v.sampleRate) }
func (v *Voice) Sound() string      { return v.preset.Name }
func (v *Voice) Pitched() bool      { return v.preset.Pitched() }

// SetGain applies track volume, pan and mute. Pan uses an equal power law.
func (v *Voice) SetGain(volume, pan float64, muted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.setGainLocked(volume, pan, muted)
}

func (v *Voice) setGainLocked(volume, pan float64, muted bool) {
	if math.IsNaN(volume) {
		volume = 0
	}
	if math.IsNaN(pan) {
		pan = 0
	}
	volume = math.Max(0, math.Min(1, volume))
	pan = math.Max(-1, math.Min(1, pan))
	v.muted = muted
	if muted {
		v.gainL, v.gainR = 0, 0
		return
	}
	angle := (pan + 1) * math.Pi / 4
	v.gainL = volume * math.Cos(angle)
	v.gainR = volume * math.Sin(angle)
}

// SetClip installs the audio played by clip presets, converted to the
// voice sample rate.
func (v *Voice) SetClip(buf *pcm.Buffer) {
	if buf != nil {
		buf = buf.Resample(int(v.sampleRate))
	}
	v.mu.Lock()
	v.clip = buf
	v.mu.Unlock()
}

func (v *Voice) HasClip() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clip != nil
}

// Trigger starts a note at pitch lasting length before release. It never
// fails: malformed pitches are logged and ignored.
func (v *Voice) Trigger(pitch string, length time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.Warn("voice trigger recovered", "sound", v.preset.Name, "panic", r)
		}
	}()
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.muted {
		return
	}
	var freq float64
	if v.preset.Pitched() {
		if pitch == "" {
			pitch = ReferencePitch
		}
		n, err := ParsePitch(pitch)
		if err != nil {
			v.logger.Debug("ignoring trigger", "sound", v.preset.Name, "pitch", pitch, "err", err)
			return
		}
		freq = MIDIToFreq(n)
	}
	if v.preset.Kind == KindClip && v.clip == nil {
		return
	}
	slot := 0
	if !v.preset.Mono {
		slot = v.stealSlot()
	}
	n := &v.notes[slot]
	ks := n.ks
	*n = note{active: true, freq: freq}
	n.hold = int(length.Seconds() * v.sampleRate)
	if v.preset.Kind == KindClip {
		n.hold = v.clip.Frames()
	}
	n.env.start(v.preset.Env, v.sampleRate)
	if v.preset.Vibrato != 0 {
		n.vib = lfo.New(v.preset.Vibrato, v.preset.VibratoHz, lfo.Sine)
	}
	if v.preset.Kind == KindPluck {
		n.ks = v.pluckString(ks, freq)
	}
}

func (v *Voice) stealSlot() int {
	for i := range v.notes {
		if !v.notes[i].active {
			return i
		}
	}
	oldestRelease, oldestReleaseAge := -1, -1
	oldest, oldestAge := 0, -1
	for i := range v.notes {
		n := &v.notes[i]
		if n.env.state == envRelease && n.age > oldestReleaseAge {
			oldestRelease, oldestReleaseAge = i, n.age
		}
		if n.age > oldestAge {
			oldest, oldestAge = i, n.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldest
}

func (v *Voice) pluckString(buf []float64, freq float64) []float64 {
	size := int(v.sampleRate / freq)
	if size < 2 {
		size = 2
	}
	if cap(buf) < size {
		buf = make([]float64, size)
	}
	buf = buf[:size]
	for i := range buf {
		buf[i] = v.white()
	}
	return buf
}

// Active reports how many notes are sounding.
func (v *Voice) Active() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for i := range v.notes {
		if v.notes[i].active {
			count++
		}
	}
	return count
}

// Close silences the voice; later triggers are ignored.
func (v *Voice) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for i := range v.notes {
		v.notes[i].active = false
	}
	v.clip = nil
}

func (v *Voice) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// RenderFrame produces the next stereo frame, before the effects bus.
func (v *Voice) RenderFrame() (float32, float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, 0
	}
	var mono, l, r float64
	for i := range v.notes {
		n := &v.notes[i]
		if !n.active {
			continue
		}
		n.age++
		if n.t == n.hold {
			n.env.release()
		}
		amp := n.env.next()
		if v.preset.Kind == KindClip {
			cl, cr := v.clip.Frame(n.clipPos)
			n.clipPos++
			l += float64(cl) * amp
			r += float64(cr) * amp
			if n.clipPos >= v.clip.Frames() {
				n.active = false
			}
		} else {
			mono += v.oscillate(n) * amp
		}
		n.t++
		if n.env.done() {
			n.active = false
		}
	}
	mono *= v.preset.Level
	l = (l + mono) * v.gainL
	r = (r + mono) * v.gainR
	return float32(l), float32(r)
}

func (v *Voice) oscillate(n *note) float64 {
	p := &v.preset
	switch p.Kind {
	case KindMembrane:
		pd := p.PitchDecay * v.sampleRate
		progress := 1.0
		if pd > 0 {
			progress = math.Min(float64(n.t)/pd, 1)
		}
		f := n.freq * math.Pow(math.Max(p.Octaves, 1), 1-progress)
		n.phase += f / v.sampleRate
		n.phase -= math.Floor(n.phase)
		return math.Sin(twoPi * n.phase)
	case KindNoise:
		w := v.white()
		if p.Noise == Pink {
			n.pink[0] = 0.99765*n.pink[0] + w*0.0990460
			n.pink[1] = 0.96300*n.pink[1] + w*0.2965164
			n.pink[2] = 0.57000*n.pink[2] + w*1.0526913
			return (n.pink[0] + n.pink[1] + n.pink[2] + w*0.1848) * 0.25
		}
		return w
	case KindMetal:
		var sum float64
		for i, ratio := range metalRatios {
			fc := p.Frequency * ratio
			fm := fc * p.Harmonicity
			n.mod[i] += fm / v.sampleRate
			n.mod[i] -= math.Floor(n.mod[i])
			inst := fc + p.ModIndex*fm*math.Sin(twoPi*n.mod[i])
			n.carrier[i] += inst / v.sampleRate
			n.carrier[i] -= math.Floor(n.carrier[i])
			if n.carrier[i] < 0.5 {
				sum++
			} else {
				sum--
			}
		}
		sum /= float64(len(metalRatios))
		if v.hpA > 0 {
			n.lp += v.hpA * (sum - n.lp)
			sum -= n.lp
		}
		return sum
	case KindPluck:
		size := len(n.ks)
		if size == 0 {
			return 0
		}
		out := n.ks[n.ksPos]
		next := n.ks[(n.ksPos+1)%size]
		avg := 0.5 * (out + next)
		if v.dampA > 0 {
			n.ksLP += v.dampA * (avg - n.ksLP)
			avg = n.ksLP
		}
		n.ks[n.ksPos] = avg * ksFeedback
		n.ksPos = (n.ksPos + 1) % size
		return out
	}
	return v.tonal(n)
}

func (v *Voice) tonal(n *note) float64 {
	p := &v.preset
	f := n.freq
	if p.Glide != 0 {
		span := (p.Env.Attack + p.Env.Decay) * v.sampleRate
		progress := 1.0
		if span > 0 {
			progress = math.Min(float64(n.t)/span, 1)
		}
		f *= math.Pow(2, p.Glide*progress/12)
	}
	if n.vib.Active() {
		f *= math.Pow(2, n.vib.Sample(v.sampleRate)/12)
	}
	dt := f / v.sampleRate
	n.phase += dt
	n.phase -= math.Floor(n.phase)
	var out float64
	switch p.Wave {
	case Sine:
		out = math.Sin(twoPi * n.phase)
	case Square:
		out = -1
		if n.phase < 0.5 {
			out = 1
		}
		out += polyBLEP(n.phase, dt)
		out -= polyBLEP(math.Mod(n.phase+0.5, 1), dt)
	case Saw:
		out = 2*n.phase - 1
		out -= polyBLEP(n.phase, dt)
	case Triangle:
		out = 2*math.Abs(2*n.phase-1) - 1
	}
	if v.lpA > 0 {
		n.lp += v.lpA * (out - n.lp)
		out = n.lp
	}
	return out
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// white returns the next sample of the voice's noise generator in [-1, 1).
func (v *Voice) white() float64 {
	x := v.lfsr
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	v.lfsr = x
	return float64(x)/float64(1<<31) - 1
}
