package effects

import "math"

// Distortion is a tanh waveshaper blended with the dry signal.
type Distortion struct {
	drive float64
	norm  float64
	wet   level
}

// NewDistortion creates a distortion. amount in [0,1] sets the drive.
func NewDistortion(amount, wet float32) *Distortion {
	drive := 1 + 20*float64(clamp(amount, 0, 1))
	d := &Distortion{drive: drive, norm: 1 / math.Tanh(drive)}
	d.wet.Store(wet)
	return d
}

func (d *Distortion) SetWet(v float32) { d.wet.Store(v) }
func (d *Distortion) Wet() float32     { return d.wet.Load() }

func (d *Distortion) Process(l, r float32) (float32, float32) {
	w := d.wet.Load()
	if w == 0 {
		return l, r
	}
	return mix(l, d.shape(l), w), mix(r, d.shape(r), w)
}

func (d *Distortion) shape(x float32) float32 {
	return float32(math.Tanh(float64(x)*d.drive) * d.norm)
}

func (d *Distortion) Reset() {}
