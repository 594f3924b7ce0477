package stepseq

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/generation"
	"github.com/cbegin/stepseq-go/internal/pcm"
	"github.com/cbegin/stepseq-go/internal/render"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/transport"
	"github.com/cbegin/stepseq-go/internal/voice"
)

// frozenClock never fires timers; tests drive the transport with Tick.
type frozenClock struct{}

type frozenTimer struct{}

func (frozenTimer) Stop() bool { return true }

func (frozenClock) Now() time.Time { return time.Unix(0, 0) }

func (frozenClock) AfterFunc(time.Duration, func()) transport.Timer { return frozenTimer{} }

type recorder struct {
	mu       sync.Mutex
	messages []string
	loading  []bool
}

func (r *recorder) Notify(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) Loading(active bool, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loading = append(r.loading, active)
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{WithClock(frozenClock{}), WithNotifier(rec)}, opts...)
	e, err := New(render.SampleRate, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e, rec
}

func peak(buf []float32) float32 {
	var p float32
	for _, s := range buf {
		if s < 0 {
			s = -s
		}
		if s > p {
			p = s
		}
	}
	return p
}

func TestNewRejectsBadSampleRate(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error")
	}
}

func TestPlayRequiresInit(t *testing.T) {
	e, _ := newEngine(t)
	if _, err := e.Play(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err=%v want ErrNotReady", err)
	}
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	playing, err := e.Play()
	if err != nil || !playing {
		t.Fatalf("playing=%v err=%v", playing, err)
	}
	if playing, _ = e.Play(); playing {
		t.Fatal("second Play should stop")
	}
}

func TestInitAfterCloseFails(t *testing.T) {
	e, _ := newEngine(t)
	e.Close()
	if err := e.Init(); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v", err)
	}
}

func TestTickTriggersVoicesIntoMix(t *testing.T) {
	e, _ := newEngine(t)
	kick, err := e.AddTrack("Kick", voice.Percussion, "kick")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ToggleStep(kick.ID, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 2048)
	e.Process(buf)
	if p := peak(buf); p != 0 {
		t.Fatalf("silence expected before tick, peak=%f", p)
	}
	e.Tick()
	if e.Step() != 1 {
		t.Fatalf("step=%d", e.Step())
	}
	e.Process(buf)
	if p := peak(buf); p < 0.01 {
		t.Fatalf("kick not audible, peak=%f", p)
	}
}

func TestMutedMasterSilencesMix(t *testing.T) {
	e, _ := newEngine(t)
	kick, _ := e.AddTrack("Kick", voice.Percussion, "kick")
	e.ToggleStep(kick.ID, 0)
	if err := e.SetMute(track.MasterID, true); err != nil {
		t.Fatal(err)
	}
	e.Tick()
	buf := make([]float32, 2048)
	e.Process(buf)
	if p := peak(buf); p != 0 {
		t.Fatalf("peak=%f with master muted", p)
	}
}

func TestMasterRejectsPan(t *testing.T) {
	e, _ := newEngine(t)
	if _, err := e.SetPan(track.MasterID, 0.5); err == nil {
		t.Fatal("expected error")
	} else if ftag.Get(err) != KindInvalidInput {
		t.Fatalf("kind=%q", ftag.Get(err))
	}
	got, err := e.SetVolume(track.MasterID, 2)
	if err != nil || got != 1 {
		t.Fatalf("volume=%f err=%v", got, err)
	}
}

func TestSetBPMClampsAndRetimesDelay(t *testing.T) {
	e, _ := newEngine(t)
	if got := e.SetBPM(1000); got != transport.MaxBPM {
		t.Fatalf("bpm=%d", got)
	}
	if got := e.SetBPM(60); got != 60 || e.BPM() != 60 {
		t.Fatalf("bpm=%d", got)
	}
	if got := e.Bus().DelaySamples(); got != render.SampleRate/2 {
		t.Fatalf("delay=%d", got)
	}
	if e.Position() != "00:00:00" {
		t.Fatalf("position=%s", e.Position())
	}
}

func TestRemoveTrack(t *testing.T) {
	e, _ := newEngine(t)
	tr, _ := e.AddDefaultTrack()
	if tr.Sound != "synth" || tr.Category != voice.Melodic {
		t.Fatalf("default track=%+v", tr)
	}
	if err := e.RemoveTrack(tr.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := e.Track(tr.ID); ok {
		t.Fatal("track still present")
	}
	if err := e.RemoveTrack(track.MasterID); err == nil {
		t.Fatal("master removed")
	}
}

func TestExportEmptyProjectNotifies(t *testing.T) {
	e, rec := newEngine(t)
	_, err := e.Export(context.Background())
	if !errors.Is(err, render.ErrNothingToExport) {
		t.Fatalf("err=%v", err)
	}
	if ftag.Get(err) != render.KindNothingToExport {
		t.Fatalf("kind=%q", ftag.Get(err))
	}
	if rec.last() == "" {
		t.Fatal("no notification")
	}
	if len(rec.loading) != 2 || !rec.loading[0] || rec.loading[1] {
		t.Fatalf("loading=%v", rec.loading)
	}
}

func TestExportWAV(t *testing.T) {
	e, _ := newEngine(t)
	kick, _ := e.AddTrack("Kick", voice.Percussion, "kick")
	e.ToggleStep(kick.ID, 0)
	for _, k := range []effects.Kind{effects.KindReverb, effects.KindDelay, effects.KindCompressor} {
		if err := e.SetEffect(k, false); err != nil {
			t.Fatal(err)
		}
	}
	data, err := e.Export(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	frames := render.Frames(120, 64, render.SampleRate)
	if len(data) != 44+frames*4 {
		t.Fatalf("len=%d want %d", len(data), 44+frames*4)
	}
	if !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatal("missing RIFF header")
	}
	buf, err := pcm.DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if p := buf.Peak(0, 4410); p < 0.1 {
		t.Fatalf("early peak=%f", p)
	}
	if p := buf.Peak(22050, buf.Frames()); p > 0.05 {
		t.Fatalf("late peak=%f", p)
	}
}

func TestExportMIDI(t *testing.T) {
	e, _ := newEngine(t)
	if _, err := e.ExportMIDI(); err == nil {
		t.Fatal("expected error for empty project")
	}
	lead, _ := e.AddTrack("Lead", voice.Melodic, "synth")
	e.ToggleNote(lead.ID, 4, "E4")
	data, err := e.ExportMIDI()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Fatal("missing MThd")
	}
}

func TestProjectRoundTrip(t *testing.T) {
	e, _ := newEngine(t)
	e.SetName("demo")
	kick, _ := e.AddTrack("Kick", voice.Percussion, "kick")
	e.ToggleStep(kick.ID, 3)
	lead, _ := e.AddTrack("Lead", voice.Melodic, "piano")
	e.ToggleNote(lead.ID, 2, "Db4")
	e.SetPan(lead.ID, -0.5)
	e.SetBPM(95)
	data, err := e.SaveProject()
	if err != nil {
		t.Fatal(err)
	}

	other, _ := newEngine(t)
	if err := other.LoadProject(data); err != nil {
		t.Fatal(err)
	}
	if other.BPM() != 95 || other.Name() != "demo" {
		t.Fatalf("bpm=%d name=%q", other.BPM(), other.Name())
	}
	got := other.Tracks()
	want := e.Tracks()
	if len(got) != len(want) {
		t.Fatalf("tracks=%d want %d", len(got), len(want))
	}
	l, _ := other.Track(lead.ID)
	if l.Pan != -0.5 || len(l.Notes[2]) != 1 || l.Notes[2][0] != "C#4" {
		t.Fatalf("lead=%+v", l)
	}
	k, _ := other.Track(kick.ID)
	if !k.Steps[3] {
		t.Fatal("kick step lost")
	}
}

func TestLoadProjectErrorKeepsModel(t *testing.T) {
	e, rec := newEngine(t)
	tr, _ := e.AddDefaultTrack()
	if err := e.LoadProject([]byte("{not json")); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := e.Track(tr.ID); !ok {
		t.Fatal("model replaced on failed load")
	}
	if rec.last() == "" {
		t.Fatal("no notification")
	}
}

func TestAddClipTrack(t *testing.T) {
	e, rec := newEngine(t)
	clip := pcm.NewBuffer(22050, 1, 2205)
	for i := range clip.Samples {
		clip.Samples[i] = 0.5
	}
	tr, err := e.AddClipTrack("Vox", "upload", "vox.wav", bytes.NewReader(pcm.Encode(clip)))
	if err != nil {
		t.Fatal(err)
	}
	if tr.Category != voice.AudioClip || tr.Clip != "vox.wav" || !e.HasClipAudio(tr.ID) {
		t.Fatalf("track=%+v", tr)
	}
	e.ToggleStep(tr.ID, 0)
	e.Tick()
	buf := make([]float32, 512)
	e.Process(buf)
	if peak(buf) < 0.05 {
		t.Fatalf("clip silent, peak=%f", peak(buf))
	}

	before := len(e.Tracks())
	if _, err := e.AddClipTrack("Bad", "upload", "bad.wav", bytes.NewReader([]byte("nope"))); err == nil {
		t.Fatal("expected decode error")
	}
	if len(e.Tracks()) != before {
		t.Fatal("track created for undecodable clip")
	}
	if rec.last() == "" {
		t.Fatal("no notification")
	}
}

func TestAddGeneratedTrack(t *testing.T) {
	e, _ := newEngine(t)
	if _, err := e.AddGeneratedTrack(generation.Result{Status: generation.StatusFailed}); err == nil {
		t.Fatal("failed result accepted")
	}
	tr, err := e.AddGeneratedTrack(generation.Result{
		TaskID:   "t1",
		Status:   generation.StatusCompleted,
		AudioURL: "http://example.test/a.mp3",
	})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Name != "AI Vocal" || tr.Sound != GeneratedSound || tr.Clip != "http://example.test/a.mp3" {
		t.Fatalf("track=%+v", tr)
	}
}

func TestDispatch(t *testing.T) {
	e, _ := newEngine(t)
	if err := e.Dispatch(PlayCommand{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err=%v", err)
	}
	e.Init()
	cmds := []Command{
		AddTrackCommand{},
		TempoCommand{BPM: 100},
		NudgeTempoCommand{Delta: 5},
		LoopCommand{},
		EffectCommand{Kind: effects.KindDistortion, On: true},
		EQCommand{Band: 2, Gain: 2},
		PlayCommand{},
		StopCommand{},
	}
	for _, c := range cmds {
		if err := e.Dispatch(c); err != nil {
			t.Fatalf("%T: %v", c, err)
		}
	}
	if e.BPM() != 105 || e.Looping() || e.Playing() {
		t.Fatalf("bpm=%d looping=%v playing=%v", e.BPM(), e.Looping(), e.Playing())
	}
	if e.Effects().DistortionWet <= 0 || e.EQ()[2] != 2 {
		t.Fatal("effect commands not applied")
	}
	if len(e.Tracks()) != 2 {
		t.Fatalf("tracks=%d", len(e.Tracks()))
	}
	if err := e.Dispatch(EQCommand{Band: 9}); err == nil {
		t.Fatal("bad band accepted")
	}
}

func TestMuteSuppressesNextTickKeepsSteps(t *testing.T) {
	e, _ := newEngine(t)
	kick, _ := e.AddTrack("Kick", voice.Percussion, "kick")
	e.ToggleStep(kick.ID, 0)
	if err := e.SetMute(kick.ID, true); err != nil {
		t.Fatal(err)
	}
	e.Tick()
	buf := make([]float32, 1024)
	e.Process(buf)
	if p := peak(buf); p != 0 {
		t.Fatalf("muted kick audible, peak=%f", p)
	}
	if k, _ := e.Track(kick.ID); !k.Steps[0] {
		t.Fatal("mute cleared step data")
	}
}

func TestSoloSilencesRingingVoices(t *testing.T) {
	e, _ := newEngine(t, WithNoteLength("4m"))
	for _, k := range []effects.Kind{effects.KindReverb, effects.KindDelay, effects.KindDistortion, effects.KindCompressor} {
		if err := e.SetEffect(k, false); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	a, _ := e.AddTrack("A", voice.Melodic, "synth")
	b, _ := e.AddTrack("B", voice.Melodic, "synth")
	if _, err := e.ToggleStep(b.ID, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 4096)
	e.Process(buf)
	if p := peak(buf); p < 0.01 {
		t.Fatalf("preview of b not audible, peak=%f", p)
	}

	if err := e.SetSolo(a.ID, true); err != nil {
		t.Fatal(err)
	}
	e.Process(buf)
	if p := peak(buf); p > 1e-4 {
		t.Fatalf("b audible after soloing a, peak=%f", p)
	}

	if err := e.SetSolo(a.ID, false); err != nil {
		t.Fatal(err)
	}
	e.Process(buf)
	if p := peak(buf); p < 0.01 {
		t.Fatalf("b still silent after unsolo, peak=%f", p)
	}
}

func TestAddedTrackRespectsActiveSolo(t *testing.T) {
	e, _ := newEngine(t)
	a, _ := e.AddTrack("A", voice.Melodic, "synth")
	if err := e.SetSolo(a.ID, true); err != nil {
		t.Fatal(err)
	}
	b, _ := e.AddTrack("B", voice.Percussion, "kick")
	e.ToggleStep(b.ID, 0)
	e.Tick()
	buf := make([]float32, 2048)
	e.Process(buf)
	if p := peak(buf); p != 0 {
		t.Fatalf("unsoloed track audible, peak=%f", p)
	}
}

func TestPlaybackLoopsByDefault(t *testing.T) {
	cases := []struct {
		name    string
		opts    []Option
		playing bool
	}{
		{"default", nil, true},
		{"stop at end", []Option{WithLooping(false)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newEngine(t, append([]Option{WithGrid(1, 4)}, tc.opts...)...)
			e.Init()
			if err := e.Start(); err != nil {
				t.Fatal(err)
			}
			for i := 0; i < e.Grid(); i++ {
				e.Tick()
			}
			if e.Step() != 0 || e.Playing() != tc.playing {
				t.Fatalf("step=%d playing=%v", e.Step(), e.Playing())
			}
		})
	}
}

func TestNaNWetKeepsExportFinite(t *testing.T) {
	e, _ := newEngine(t)
	kick, _ := e.AddTrack("Kick", voice.Percussion, "kick")
	e.ToggleStep(kick.ID, 0)
	nan := float32(math.NaN())
	cmds := []Command{
		EffectWetCommand{Kind: effects.KindReverb, Wet: nan},
		EffectWetCommand{Kind: effects.KindDelay, Wet: nan},
		EQCommand{Band: 1, Gain: nan},
	}
	for _, c := range cmds {
		if err := e.Dispatch(c); err != nil {
			t.Fatalf("%T: %v", c, err)
		}
	}
	if w := e.Effects().ReverbWet; w != 0 {
		t.Fatalf("reverb wet=%f", w)
	}
	buf, err := e.Render(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range buf.Samples {
		if math.IsNaN(float64(s)) {
			t.Fatalf("sample %d is NaN", i)
		}
	}
}
