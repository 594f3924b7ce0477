package effects

import (
	"math"
	"sync/atomic"
)

// Bands is the number of master EQ bands.
const Bands = 5

const maxBandGain = 4

// EQ5Band is the master equalizer. Bands split at 200Hz, 800Hz, 2.5kHz
// and 8kHz; gains are float32 bits so the audio thread never locks.
type EQ5Band struct {
	gains  [Bands]atomic.Uint32 // 1.0 = unity
	alphas [4]float32           // crossover filter coefficients
	lpL    [4]float32           // lowpass state per crossover, left
	lpR    [4]float32           // lowpass state per crossover, right
}

var defaultCrossovers = [4]float64{200, 800, 2500, 8000}

func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range defaultCrossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1.0))
	}
	return eq
}

// SetGain sets a band gain, clamped to [0,4]. It reports false for a band
// outside 0..4.
func (eq *EQ5Band) SetGain(band int, gain float32) bool {
	if band < 0 || band >= Bands {
		return false
	}
	eq.gains[band].Store(math.Float32bits(clamp(gain, 0, maxBandGain)))
	return true
}

func (eq *EQ5Band) Gains() [Bands]float32 {
	var out [Bands]float32
	for i := range out {
		out[i] = eq.Gain(i)
	}
	return out
}

// Gain returns the current gain for band (0-4).
func (eq *EQ5Band) Gain(band int) float32 {
	if band >= 0 && band < Bands {
		return math.Float32frombits(eq.gains[band].Load())
	}
	return 1.0
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	var bandL, bandR [Bands]float32
	remL, remR := l, r
	for i := 0; i < 4; i++ {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		bandL[i] = eq.lpL[i]
		bandR[i] = eq.lpR[i]
		remL -= bandL[i]
		remR -= bandR[i]
	}
	bandL[4] = remL
	bandR[4] = remR

	var outL, outR float32
	for i := 0; i < Bands; i++ {
		g := math.Float32frombits(eq.gains[i].Load())
		outL += bandL[i] * g
		outR += bandR[i] * g
	}
	return outL, outR
}

func (eq *EQ5Band) Reset() {
	for i := range eq.lpL {
		eq.lpL[i] = 0
		eq.lpR[i] = 0
	}
}
