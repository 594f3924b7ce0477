package voice

import (
	"math"
	"testing"
	"time"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/pcm"
)

const sr = 44100

func peak(v *Voice, frames int) float64 {
	var p float64
	for i := 0; i < frames; i++ {
		l, r := v.RenderFrame()
		p = math.Max(p, math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	}
	return p
}

func TestFactoryFallsBackToCategoryDefault(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	tests := []struct {
		cat   Category
		sound string
		want  string
	}{
		{Percussion, "cowbell", "kick"},
		{Melodic, "theremin", "synth"},
		{Effect, "", "noise"},
		{AudioClip, "tape", "upload"},
		{Percussion, "Snare", "snare"},
	}
	for _, tt := range tests {
		v := f.New(tt.cat, tt.sound)
		if v == nil {
			t.Fatalf("%s/%s: nil voice", tt.cat, tt.sound)
		}
		if v.Sound() != tt.want {
			t.Errorf("%s/%s: got %q want %q", tt.cat, tt.sound, v.Sound(), tt.want)
		}
	}
	if f.New(Master, "") != nil {
		t.Error("master category should have no voice")
	}
}

func TestFactoryAttachesSharedBus(t *testing.T) {
	bus := effects.NewBus(sr)
	f := NewFactory(sr, bus, nil)
	a := f.New(Percussion, "kick")
	b := f.New(Melodic, "pad")
	if a.Bus() != bus || b.Bus() != bus {
		t.Fatal("voices should share the factory bus")
	}
}

func TestEveryPresetSounds(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	for _, c := range []Category{Percussion, Melodic, Effect} {
		for _, s := range Sounds(c) {
			v := f.New(c, s)
			v.Trigger("A3", 500*time.Millisecond)
			if p := peak(v, sr/2); p < 0.005 {
				t.Errorf("%s/%s: peak %f, expected audible output", c, s, p)
			}
		}
	}
}

func TestKickDecays(t *testing.T) {
	v := NewFactory(sr, nil, nil).New(Percussion, "kick")
	v.SetGain(0.8, 0, false)
	v.Trigger("", ParseDuration("8n", 120))
	early := peak(v, sr/20)
	peak(v, sr/2-sr/20)
	late := peak(v, sr/2)
	if early < 0.1 {
		t.Fatalf("early peak %f, want > 0.1", early)
	}
	if late > 0.05 {
		t.Fatalf("late peak %f, want < 0.05", late)
	}
}

func TestNoiseIsDeterministic(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	a := f.New(Percussion, "snare")
	b := f.New(Percussion, "snare")
	a.Trigger("", 100*time.Millisecond)
	b.Trigger("", 100*time.Millisecond)
	for i := 0; i < 1000; i++ {
		al, _ := a.RenderFrame()
		bl, _ := b.RenderFrame()
		if al != bl {
			t.Fatalf("frame %d differs: %f vs %f", i, al, bl)
		}
	}
}

func TestNoisePresetIgnoresPitch(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	a := f.New(Percussion, "clap")
	b := f.New(Percussion, "clap")
	a.Trigger("C5", 100*time.Millisecond)
	b.Trigger("not-a-pitch", 100*time.Millisecond)
	if b.Active() != 1 {
		t.Fatal("unpitched preset should ignore malformed pitch")
	}
	for i := 0; i < 500; i++ {
		al, _ := a.RenderFrame()
		bl, _ := b.RenderFrame()
		if al != bl {
			t.Fatalf("frame %d differs", i)
		}
	}
}

func TestMalformedPitchIsNoOp(t *testing.T) {
	v := NewFactory(sr, nil, nil).New(Melodic, "synth")
	v.Trigger("H9", time.Second)
	v.Trigger("", time.Second)
	if v.Active() != 1 {
		t.Fatalf("active=%d want 1", v.Active())
	}
}

func TestMutedAndClosedVoicesIgnoreTriggers(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	v := f.New(Melodic, "organ")
	v.SetGain(1, 0, true)
	v.Trigger("C4", time.Second)
	if v.Active() != 0 {
		t.Fatal("muted voice triggered")
	}
	v.SetGain(1, 0, false)
	v.Close()
	v.Trigger("C4", time.Second)
	if v.Active() != 0 {
		t.Fatal("closed voice triggered")
	}
	if l, r := v.RenderFrame(); l != 0 || r != 0 {
		t.Fatal("closed voice produced output")
	}
}

func TestPanLaw(t *testing.T) {
	v := NewFactory(sr, nil, nil).New(Melodic, "organ")
	v.SetGain(1, -1, false)
	v.Trigger("C4", time.Second)
	var r float64
	for i := 0; i < 2000; i++ {
		_, fr := v.RenderFrame()
		r = math.Max(r, math.Abs(float64(fr)))
	}
	if r > 1e-9 {
		t.Fatalf("hard left pan leaked %f into the right channel", r)
	}
}

func TestPolyphonyAndMono(t *testing.T) {
	f := NewFactory(sr, nil, nil)
	poly := f.New(Melodic, "pad")
	for _, p := range []string{"C4", "E4", "G4"} {
		poly.Trigger(p, time.Second)
	}
	if poly.Active() != 3 {
		t.Fatalf("poly active=%d want 3", poly.Active())
	}
	for i := 0; i < maxPolyphony+4; i++ {
		poly.Trigger("C2", time.Second)
	}
	if poly.Active() != maxPolyphony {
		t.Fatalf("poly active=%d want %d", poly.Active(), maxPolyphony)
	}
	mono := f.New(Melodic, "808")
	mono.Trigger("C2", time.Second)
	mono.Trigger("D2", time.Second)
	if mono.Active() != 1 {
		t.Fatalf("mono active=%d want 1", mono.Active())
	}
}

func TestNotesFinish(t *testing.T) {
	v := NewFactory(sr, nil, nil).New(Percussion, "hihat")
	v.Trigger("", 50*time.Millisecond)
	peak(v, sr)
	if v.Active() != 0 {
		t.Fatalf("hihat still active after 1s")
	}
}

func TestClipPlaysBuffer(t *testing.T) {
	v := NewFactory(sr, nil, nil).New(AudioClip, "upload")
	v.Trigger("", time.Second)
	if v.Active() != 0 {
		t.Fatal("clip voice without audio should not trigger")
	}
	clip := &pcm.Buffer{SampleRate: sr, Channels: 1, Samples: []float32{0.5, 0.5, 0.5, 0.5}}
	v.SetClip(clip)
	v.SetGain(1, 0, false)
	v.Trigger("", time.Second)
	l, r := v.RenderFrame()
	want := 0.5 * math.Cos(math.Pi/4)
	if math.Abs(float64(l)-want) > 1e-3 || math.Abs(float64(r)-want) > 1e-3 {
		t.Fatalf("clip frame=(%f,%f) want %f", l, r, want)
	}
	for i := 0; i < 3; i++ {
		v.RenderFrame()
	}
	if v.Active() != 0 {
		t.Fatal("clip note should end with its buffer")
	}
}

func TestParsePitch(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"C4", 60, true},
		{"C3", 48, true},
		{"A4", 69, true},
		{"F#4", 66, true},
		{"Bb2", 46, true},
		{"C-1", 0, true},
		{"B-1", 11, true},
		{"Cb0", 11, true},
		{"c-3", 0, false},
		{"C+4", 0, false},
		{"G9", 127, true},
		{"X4", 0, false},
		{"C", 0, false},
		{"Cx4", 0, false},
		{"G#9", 0, false},
	}
	for _, tt := range tests {
		got, err := ParsePitch(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("%q: err=%v ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("%q: got %d want %d", tt.in, got, tt.want)
		}
	}
	if name, _ := CanonicalPitch("db3"); name != "C#3" {
		t.Errorf("canonical=%q", name)
	}
	if PitchName(60) != "C4" {
		t.Errorf("PitchName(60)=%q", PitchName(60))
	}
}

func TestPitchNameRoundTrip(t *testing.T) {
	for note := 0; note <= 127; note++ {
		name := PitchName(note)
		got, err := ParsePitch(name)
		if err != nil {
			t.Fatalf("%d -> %q: %v", note, name, err)
		}
		if got != note {
			t.Errorf("%d -> %q -> %d", note, name, got)
		}
	}
	canon, err := CanonicalPitch("Cb0")
	if err != nil || canon != "B-1" {
		t.Fatalf("canonical Cb0=%q err=%v", canon, err)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		tok  string
		bpm  int
		want time.Duration
	}{
		{"4n", 120, 500 * time.Millisecond},
		{"8n", 120, 250 * time.Millisecond},
		{"16n", 120, 125 * time.Millisecond},
		{"1m", 120, 2 * time.Second},
		{"2n", 60, 2 * time.Second},
		{"8n.", 120, 375 * time.Millisecond},
		{"4t", 120, time.Second / 3},
		{"bogus", 120, 250 * time.Millisecond},
		{"", 120, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		got := ParseDuration(tt.tok, tt.bpm)
		if d := got - tt.want; d > time.Microsecond || d < -time.Microsecond {
			t.Errorf("%q@%d: got %v want %v", tt.tok, tt.bpm, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory("Audio-Clip"); err != nil || c != AudioClip {
		t.Fatalf("got %q %v", c, err)
	}
	if _, err := ParseCategory("drums"); err == nil {
		t.Fatal("expected error")
	}
}
