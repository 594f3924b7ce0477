package stepseq

import (
	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/transport"
)

// Play toggles playback and returns whether the transport is now running.
func (e *Engine) Play() (bool, error) {
	if !e.Ready() {
		return false, ErrNotReady
	}
	return e.transport.Play(), nil
}

// Start begins playback if stopped.
func (e *Engine) Start() error {
	if !e.Ready() {
		return ErrNotReady
	}
	e.transport.Start()
	return nil
}

func (e *Engine) Stop() { e.transport.Stop() }

// Rewind returns the playhead to step 0 without changing play state.
func (e *Engine) Rewind() { e.transport.Rewind() }

// Tick advances the transport by exactly one step.
func (e *Engine) Tick() { e.transport.Tick() }

// SetBPM clamps bpm to the supported range, retimes the transport and the
// tempo-synced delay, and returns the applied value.
func (e *Engine) SetBPM(bpm int) int {
	got := e.transport.SetBPM(bpm)
	e.bpm.Store(int32(got))
	e.bus.SetTempo(got)
	return got
}

func (e *Engine) BPM() int { return int(e.bpm.Load()) }

func (e *Engine) ToggleLoop() bool { return e.transport.ToggleLoop() }

func (e *Engine) Looping() bool { return e.transport.Looping() }

func (e *Engine) Playing() bool { return e.transport.Playing() }

func (e *Engine) Step() int { return e.transport.Step() }

// Position formats the playhead as mm:ss:cc.
func (e *Engine) Position() string {
	return transport.FormatPosition(e.transport.Step(), e.BPM())
}

// Watch returns the transport event stream.
func (e *Engine) Watch() <-chan transport.Event { return e.transport.Watch() }

// SetEffect switches an effect on at its stock level, or off.
func (e *Engine) SetEffect(k effects.Kind, on bool) error {
	if err := e.bus.SetEnabled(k, on); err != nil {
		return invalid(err, "Unknown effect")
	}
	return nil
}

// ToggleEffect flips an effect and returns its new state.
func (e *Engine) ToggleEffect(k effects.Kind) (bool, error) {
	on := !e.bus.Enabled(k)
	if err := e.SetEffect(k, on); err != nil {
		return false, err
	}
	return on, nil
}

func (e *Engine) SetEffectWet(k effects.Kind, wet float32) error {
	if err := e.bus.SetWet(k, wet); err != nil {
		return invalid(err, "Unknown effect")
	}
	return nil
}

func (e *Engine) Effects() effects.Settings { return e.bus.Settings() }

// SetEQBand sets the master equaliser gain for one band.
func (e *Engine) SetEQBand(band int, gain float32) error {
	if !e.eq.SetGain(band, gain) {
		return invalid(errBand, "Unknown EQ band")
	}
	return nil
}

func (e *Engine) EQ() [effects.Bands]float32 { return e.eq.Gains() }
