package audio

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// KindDevice tags audio output failures.
const KindDevice ftag.Kind = "resource"

const bytesPerFrame = 8 // stereo float32

// Source fills dst with interleaved stereo float32 samples.
type Source interface {
	Process(dst []float32)
}

// StreamReader adapts a Source to the float32 little-endian byte stream
// ebiten expects.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
	closed bool
}

func NewStreamReader(source Source) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	clear(r.buf)
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * bytesPerFrame, nil
}

func (r *StreamReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Output is a live stereo stream on the shared ebiten audio context.
type Output struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	contextOnce       sync.Once
	sharedContext     *ebitaudio.Context
	contextSampleRate int
)

func audioContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		sharedContext = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, fault.Newf("audio context already running at %d Hz (requested %d Hz)", contextSampleRate, sampleRate)
	}
	return sharedContext, nil
}

// Open creates an output that pulls from source. Call Play to start it.
func Open(sampleRate int, source Source) (*Output, error) {
	ctx, err := audioContext(sampleRate)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(KindDevice), fmsg.WithDesc("open audio", "Audio output is unavailable."))
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fault.Wrap(err, ftag.With(KindDevice), fmsg.WithDesc("create player", "Audio output is unavailable."))
	}
	pl.SetBufferSize(50 * time.Millisecond)
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Play()  { o.player.Play() }
func (o *Output) Pause() { o.player.Pause() }

func (o *Output) IsPlaying() bool { return o.player.IsPlaying() }

// Position returns how much audio the device has played.
func (o *Output) Position() time.Duration { return o.player.Position() }

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return fault.Wrap(err, ftag.With(KindDevice))
	}
	return o.reader.Close()
}
