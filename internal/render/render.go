package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/pcm"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

const (
	SampleRate = 44100
	Channels   = 2

	KindNothingToExport ftag.Kind = "nothing-to-export"
	KindFailed          ftag.Kind = "render-failed"

	cancelCheckFrames = 4096
)

var ErrNothingToExport = errors.New("nothing to export")

type Options struct {
	SampleRate int
	// Effects, when set, runs the mix through a fresh bus built from
	// these settings.
	Effects *effects.Settings
	// Clips holds decoded audio for clip tracks, keyed by track id.
	Clips map[string]*pcm.Buffer
	// NoteLength is the duration token for every hit. Defaults to 8n.
	NoteLength string
	Logger     *slog.Logger
}

type event struct {
	frame int
	voice int
	pitch string
}

// Duration is the length of one pass through a grid at bpm.
func Duration(bpm, grid int) float64 {
	return float64(grid) * transport.SecondsPerStep(bpm)
}

// Frames is the rendered length in frames.
func Frames(bpm, grid, sampleRate int) int {
	return int(math.Round(Duration(bpm, grid) * float64(sampleRate)))
}

// Render synthesises one pass of the pattern into a stereo buffer. It uses
// its own voices and never touches live playback state.
func Render(ctx context.Context, tracks []track.Track, bpm, grid int, opts Options) (buf *pcm.Buffer, err error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = SampleRate
	}
	if opts.NoteLength == "" {
		opts.NoteLength = voice.DefaultDuration
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	bpm = transport.ClampBPM(bpm)
	master := masterGain(tracks)
	audible := track.Audible(tracks)

	factory := voice.NewFactory(opts.SampleRate, nil, opts.Logger)
	var voices []*voice.Voice
	var events []event
	for _, t := range audible {
		v := factory.New(t.Category, t.Sound)
		if v == nil {
			continue
		}
		if t.Category == voice.AudioClip {
			clip := opts.Clips[t.ID]
			if clip == nil {
				opts.Logger.Debug("clip track has no audio", "track", t.ID)
				continue
			}
			v.SetClip(clip)
		}
		v.SetGain(t.Volume, t.Pan, false)
		idx := len(voices)
		voices = append(voices, v)
		for step := 0; step < grid; step++ {
			at := transport.StepFrame(step, bpm, opts.SampleRate)
			if step < len(t.Steps) && t.Steps[step] {
				events = append(events, event{frame: at, voice: idx})
			}
			for _, p := range t.Notes[step] {
				events = append(events, event{frame: at, voice: idx, pitch: p})
			}
		}
	}
	if len(events) == 0 || master == 0 {
		return nil, fault.Wrap(ErrNothingToExport,
			ftag.With(KindNothingToExport),
			fmsg.WithDesc("no audible hits", "Nothing to export. Add some steps or notes first."))
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].frame < events[j].frame })

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fault.Wrap(fmt.Errorf("panic: %v", r),
				ftag.With(KindFailed),
				fmsg.WithDesc("synthesis panicked", "Rendering failed."))
		}
	}()

	var bus *effects.Bus
	if opts.Effects != nil {
		s := *opts.Effects
		s.BPM = bpm
		bus = effects.NewBusFrom(opts.SampleRate, s)
	}
	length := voice.ParseDuration(opts.NoteLength, bpm)
	frames := Frames(bpm, grid, opts.SampleRate)
	out := pcm.NewBuffer(opts.SampleRate, Channels, frames)
	next := 0
	for i := 0; i < frames; i++ {
		if i%cancelCheckFrames == 0 {
			if cerr := ctx.Err(); cerr != nil {
				return nil, fault.Wrap(cerr, ftag.With(KindFailed), fmsg.WithDesc("render cancelled", "Rendering was cancelled."))
			}
		}
		for next < len(events) && events[next].frame <= i {
			e := events[next]
			voices[e.voice].Trigger(e.pitch, length)
			next++
		}
		var l, r float32
		for _, v := range voices {
			vl, vr := v.RenderFrame()
			l += vl
			r += vr
		}
		if bus != nil {
			l, r = bus.Process(l, r)
		}
		out.Samples[i*2] = l * master
		out.Samples[i*2+1] = r * master
	}
	opts.Logger.Debug("rendered pattern", "frames", frames, "voices", len(voices), "hits", len(events))
	return out, nil
}

func masterGain(tracks []track.Track) float32 {
	for _, t := range tracks {
		if t.IsMaster() {
			if t.Muted {
				return 0
			}
			return float32(t.Volume)
		}
	}
	return 1
}
