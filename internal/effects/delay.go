package effects

import "sync/atomic"

const maxDelayMs = 2000

// Delay is a stereo feedback delay whose time can be changed while running.
type Delay struct {
	bufL, bufR []float32
	pos        int
	length     atomic.Int32
	sampleRate int
	feedback   float32
	wet        level
}

// NewDelay creates a feedback delay. delayMs is capped at two seconds.
func NewDelay(sampleRate int, delayMs float64, feedback, wet float32) *Delay {
	size := maxDelayMs * sampleRate / 1000
	if size < 1 {
		size = 1
	}
	d := &Delay{
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		sampleRate: sampleRate,
		feedback:   clamp(feedback, 0, 0.95),
	}
	d.SetTime(delayMs)
	d.wet.Store(wet)
	return d
}

// SetTime changes the delay length in milliseconds.
func (d *Delay) SetTime(delayMs float64) {
	n := int(delayMs * float64(d.sampleRate) / 1000.0)
	if n < 1 {
		n = 1
	}
	if n > len(d.bufL) {
		n = len(d.bufL)
	}
	d.length.Store(int32(n))
}

// Time returns the delay length in samples.
func (d *Delay) Time() int { return int(d.length.Load()) }

func (d *Delay) SetWet(v float32) { d.wet.Store(v) }
func (d *Delay) Wet() float32     { return d.wet.Load() }

func (d *Delay) Process(l, r float32) (float32, float32) {
	n := int(d.length.Load())
	if d.pos >= n {
		d.pos = 0
	}
	delL := d.bufL[d.pos]
	delR := d.bufR[d.pos]
	d.bufL[d.pos] = l + delL*d.feedback
	d.bufR[d.pos] = r + delR*d.feedback
	d.pos++
	if d.pos >= n {
		d.pos = 0
	}
	w := d.wet.Load()
	return mix(l, delL, w), mix(r, delR, w)
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}
