package pcm

import (
	"math"
	"time"
)

// Buffer is a block of interleaved float samples in [-1, 1].
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func NewBuffer(sampleRate, channels, frames int) *Buffer {
	return &Buffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Samples:    make([]float32, frames*channels),
	}
}

func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Peak returns the largest absolute sample in frames [from, to).
func (b *Buffer) Peak(from, to int) float32 {
	if from < 0 {
		from = 0
	}
	if n := b.Frames(); to > n {
		to = n
	}
	var peak float32
	for i := from * b.Channels; i < to*b.Channels; i++ {
		s := b.Samples[i]
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// Frame returns the left and right sample at frame i. Mono buffers
// return the same value twice; out of range frames are silent.
func (b *Buffer) Frame(i int) (float32, float32) {
	if i < 0 || i >= b.Frames() {
		return 0, 0
	}
	base := i * b.Channels
	if b.Channels == 1 {
		return b.Samples[base], b.Samples[base]
	}
	return b.Samples[base], b.Samples[base+1]
}

// Resample converts the buffer to sampleRate stereo using linear
// interpolation. The receiver is returned unchanged when nothing differs.
func (b *Buffer) Resample(sampleRate int) *Buffer {
	if b.SampleRate == sampleRate && b.Channels == 2 {
		return b
	}
	srcFrames := b.Frames()
	if srcFrames == 0 || b.SampleRate <= 0 {
		return NewBuffer(sampleRate, 2, 0)
	}
	ratio := float64(b.SampleRate) / float64(sampleRate)
	frames := int(math.Floor(float64(srcFrames) / ratio))
	out := NewBuffer(sampleRate, 2, frames)
	for i := 0; i < frames; i++ {
		pos := float64(i) * ratio
		j := int(pos)
		frac := float32(pos - float64(j))
		l0, r0 := b.Frame(j)
		l1, r1 := l0, r0
		if j+1 < srcFrames {
			l1, r1 = b.Frame(j + 1)
		}
		out.Samples[i*2] = l0 + (l1-l0)*frac
		out.Samples[i*2+1] = r0 + (r1-r0)*frac
	}
	return out
}
