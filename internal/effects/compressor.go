package effects

import (
	"math"
	"sync/atomic"
)

// Compressor is a feed-forward peak compressor with a bypass switch.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	envL      float32
	envR      float32
	bypass    atomic.Bool
}

// NewCompressor creates a compressor. Times are in milliseconds.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	sr := float64(sampleRate)
	return &Compressor{
		threshold: float32(math.Pow(10, float64(thresholdDB)/20)),
		ratio:     ratio,
		attack:    float32(1.0 - math.Exp(-1.0/(float64(attackMs)*sr/1000.0))),
		release:   float32(1.0 - math.Exp(-1.0/(float64(releaseMs)*sr/1000.0))),
		makeup:    float32(math.Pow(10, float64(makeupDB)/20)),
	}
}

func (c *Compressor) SetBypass(on bool) { c.bypass.Store(on) }
func (c *Compressor) Bypassed() bool    { return c.bypass.Load() }

func (c *Compressor) Process(l, r float32) (float32, float32) {
	if c.bypass.Load() {
		return l, r
	}
	c.envL = c.follow(c.envL, l)
	c.envR = c.follow(c.envR, r)
	return l * c.gain(c.envL) * c.makeup, r * c.gain(c.envR) * c.makeup
}

func (c *Compressor) follow(env, x float32) float32 {
	a := float32(math.Abs(float64(x)))
	if a > env {
		return env + c.attack*(a-env)
	}
	return env + c.release*(a-env)
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.envL = 0
	c.envR = 0
}
