// Package effects implements the shared stereo effects bus and the master
// equaliser.
package effects

// Stage is one stereo processor. Process runs once per frame on the audio
// goroutine; Reset clears any tail.
type Stage interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain runs stages in series.
type Chain []Stage

func (c Chain) Process(l, r float32) (float32, float32) {
	for _, s := range c {
		l, r = s.Process(l, r)
	}
	return l, r
}

func (c Chain) Reset() {
	for _, s := range c {
		s.Reset()
	}
}

var (
	_ Stage = (*Bus)(nil)
	_ Stage = (*EQ5Band)(nil)
	_ Stage = Chain(nil)
)
