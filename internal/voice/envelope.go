package voice

import "math"

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// envFloor is the level below which a segment is considered finished.
const envFloor = 1e-4

// envelope runs an ADSR with a linear attack and exponential decay and
// release. Each exponential segment reaches about 1% of its span at the
// configured time.
type envelope struct {
	state       envState
	level       float64
	attackStep  float64
	decayCoef   float64
	releaseCoef float64
	sustain     float64
}

func (e *envelope) start(p Envelope, sampleRate float64) {
	e.sustain = math.Max(0, math.Min(1, p.Sustain))
	e.decayCoef = segmentCoef(p.Decay, sampleRate)
	e.releaseCoef = segmentCoef(p.Release, sampleRate)
	if p.Attack <= 0 {
		e.level = 1
		e.state = envDecay
		return
	}
	e.attackStep = 1 / (p.Attack * sampleRate)
	e.level = 0
	e.state = envAttack
}

func segmentCoef(sec, sampleRate float64) float64 {
	if sec <= 0 {
		return 0
	}
	return math.Exp(-5 / (sec * sampleRate))
}

func (e *envelope) release() {
	if e.state != envOff {
		e.state = envRelease
	}
}

func (e *envelope) next() float64 {
	switch e.state {
	case envAttack:
		e.level += e.attackStep
		if e.level >= 1 {
			e.level = 1
			e.state = envDecay
		}
	case envDecay:
		e.level = e.sustain + (e.level-e.sustain)*e.decayCoef
		if e.level-e.sustain < envFloor {
			e.level = e.sustain
			e.state = envSustain
		}
	case envRelease:
		e.level *= e.releaseCoef
		if e.level < envFloor {
			e.level = 0
			e.state = envOff
		}
	case envOff:
		e.level = 0
	}
	return e.level
}

// done reports whether the envelope can no longer produce sound.
func (e *envelope) done() bool {
	return e.state == envOff || (e.state == envSustain && e.sustain < envFloor)
}
