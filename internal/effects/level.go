package effects

import (
	"math"
	"sync/atomic"
)

// level is a float32 in [0,1] stored as bits for lock-free reads from the
// audio thread.
type level struct{ bits atomic.Uint32 }

func (l *level) Store(v float32) { l.bits.Store(math.Float32bits(clamp(v, 0, 1))) }

func (l *level) Load() float32 { return math.Float32frombits(l.bits.Load()) }

// clamp limits v to [lo,hi]. NaN becomes lo.
func clamp(v, lo, hi float32) float32 {
	if v < lo || math.IsNaN(float64(v)) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mix(dry, wet, w float32) float32 { return dry*(1-w) + wet*w }
