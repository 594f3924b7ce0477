package stepseq

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/pcm"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// Engine owns the pattern, the live voices, the shared effects bus and the
// transport. Every method is safe for concurrent use. Process is the audio
// callback.
type Engine struct {
	mu         sync.Mutex
	cfg        engineConfig
	sampleRate int
	name       string
	model      *track.Model
	voices     map[string]*voice.Voice
	clips      map[string]*pcm.Buffer
	mix        []*voice.Voice
	factory    *voice.Factory
	bus        *effects.Bus
	eq         *effects.EQ5Band
	post       effects.Chain
	transport  *transport.Transport
	notifier   Notifier
	logger     *slog.Logger

	ready      atomic.Bool
	closed     atomic.Bool
	bpm        atomic.Int32
	masterGain atomic.Uint32 // float32 bits
}

type patternFunc func(step int) []track.Hit

func (f patternFunc) Hits(step int) []track.Hit { return f(step) }

// New builds an independent engine with an empty project.
func New(sampleRate int, opts ...Option) (*Engine, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.notifier == nil {
		cfg.notifier = LogNotifier{Logger: cfg.logger}
	}
	bpm := transport.ClampBPM(cfg.bpm)
	settings := effects.DefaultSettings()
	settings.BPM = bpm
	bus := effects.NewBusFrom(sampleRate, settings)
	e := &Engine{
		cfg:        cfg,
		sampleRate: sampleRate,
		model:      track.NewModel(track.GridLength(cfg.bars, cfg.beatsPerBar)),
		voices:     map[string]*voice.Voice{},
		clips:      map[string]*pcm.Buffer{},
		factory:    voice.NewFactory(sampleRate, bus, cfg.logger),
		bus:        bus,
		eq:         effects.NewEQ5Band(sampleRate),
		notifier:   cfg.notifier,
		logger:     cfg.logger,
	}
	e.post = effects.Chain{e.bus, e.eq}
	e.bpm.Store(int32(bpm))
	e.transport = transport.New(patternFunc(e.hits), e.trigger, transport.Options{
		Grid:    e.model.Grid(),
		BPM:     bpm,
		Looping: cfg.looping,
		Clock:   cfg.clock,
		OnDraw:  cfg.onDraw,
		Logger:  cfg.logger,
	})
	e.mu.Lock()
	e.updateMasterLocked()
	e.mu.Unlock()
	return e, nil
}

// Init marks the engine ready for playback and previews.
func (e *Engine) Init() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.ready.Swap(true) {
		return nil
	}
	e.logger.Info("engine ready", "sample_rate", e.sampleRate, "grid", e.model.Grid(), "bpm", e.BPM())
	return nil
}

func (e *Engine) Ready() bool { return e.ready.Load() && !e.closed.Load() }

// Close stops playback and releases every voice.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.ready.Store(false)
	e.transport.Close()
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, v := range e.voices {
		v.Close()
		delete(e.voices, id)
	}
	e.mix = nil
}

func (e *Engine) SampleRate() int { return e.sampleRate }

func (e *Engine) Grid() int { return e.model.Grid() }

func (e *Engine) Bus() *effects.Bus { return e.bus }

func (e *Engine) hits(step int) []track.Hit {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model.Hits(step)
}

// trigger runs on the transport goroutine.
func (e *Engine) trigger(h track.Hit) {
	e.mu.Lock()
	v := e.voices[h.TrackID]
	e.mu.Unlock()
	if v == nil {
		return
	}
	v.Trigger(h.Pitch, voice.ParseDuration(e.cfg.noteLength, int(e.bpm.Load())))
}

func (e *Engine) updateMasterLocked() {
	m := e.model.Master()
	gain := float32(m.Volume)
	if m.Muted {
		gain = 0
	}
	e.masterGain.Store(math.Float32bits(gain))
}

// rebuildMixLocked refreshes the audio callback's voice list in track order
// and resyncs voice gains.
func (e *Engine) rebuildMixLocked() {
	mix := make([]*voice.Voice, 0, len(e.voices))
	for _, t := range e.model.Tracks() {
		if v := e.voices[t.ID]; v != nil {
			mix = append(mix, v)
		}
	}
	e.mix = mix
	e.syncGainsLocked()
}

func (e *Engine) newVoiceLocked(t track.Track) {
	if old := e.voices[t.ID]; old != nil {
		old.Close()
		delete(e.voices, t.ID)
	}
	v := e.factory.New(t.Category, t.Sound)
	if v == nil {
		return
	}
	v.SetGain(t.Volume, t.Pan, t.Muted)
	if clip := e.clips[t.ID]; clip != nil {
		v.SetClip(clip)
	}
	e.voices[t.ID] = v
}

// Process renders interleaved stereo float32 frames for the live output.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	mix := e.mix
	e.mu.Unlock()
	gain := math.Float32frombits(e.masterGain.Load())
	for i := 0; i+1 < len(dst); i += 2 {
		var l, r float32
		for _, v := range mix {
			vl, vr := v.RenderFrame()
			l += vl
			r += vr
		}
		l, r = e.post.Process(l, r)
		dst[i] = clampSample(l * gain)
		dst[i+1] = clampSample(r * gain)
	}
}

func clampSample(s float32) float32 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
