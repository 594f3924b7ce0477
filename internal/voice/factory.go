package voice

import (
	"log/slog"

	"github.com/cbegin/stepseq-go/internal/effects"
)

// Factory builds voices that all feed the same effects bus. A nil bus is
// allowed for offline use where the caller mixes and processes itself.
type Factory struct {
	sampleRate int
	bus        *effects.Bus
	logger     *slog.Logger
}

func NewFactory(sampleRate int, bus *effects.Bus, logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{sampleRate: sampleRate, bus: bus, logger: logger}
}

func (f *Factory) Bus() *effects.Bus { return f.bus }

func (f *Factory) SampleRate() int { return f.sampleRate }

// New returns a voice for sound in category c, substituting the category
// default for unknown sounds. The master category has no voice and yields
// nil.
func (f *Factory) New(c Category, sound string) *Voice {
	if c == Master {
		return nil
	}
	p, ok := Lookup(c, sound)
	if p.Name == "" {
		f.logger.Warn("no presets for category", "category", c)
		return nil
	}
	if !ok && sound != "" {
		f.logger.Debug("unknown sound, using default", "category", c, "sound", sound, "default", p.Name)
	}
	return newVoice(p, c, f.sampleRate, f.bus, f.logger.With("category", string(c), "sound", p.Name))
}
