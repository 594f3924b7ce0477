package render

import (
	"context"
	"errors"
	"testing"

	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/stepseq-go/internal/effects"
	"github.com/cbegin/stepseq-go/internal/pcm"
	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

func kickProject(t *testing.T, grid int, hits ...int) []track.Track {
	t.Helper()
	m := track.NewModel(grid)
	kick, err := m.Add("Kick", voice.Percussion, "kick")
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		m.ToggleStep(kick.ID, h)
	}
	return m.Tracks()
}

func TestRenderSingleKick(t *testing.T) {
	buf, err := Render(context.Background(), kickProject(t, 16, 0), 120, 16, Options{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.Frames() != 88200 || buf.Channels != 2 || buf.SampleRate != 44100 {
		t.Fatalf("frames=%d ch=%d rate=%d", buf.Frames(), buf.Channels, buf.SampleRate)
	}
	if p := buf.Peak(0, 2205); p < 0.1 {
		t.Fatalf("early peak %f, want > 0.1", p)
	}
	if p := buf.Peak(22050, 88200); p > 0.05 {
		t.Fatalf("tail peak %f, want < 0.05", p)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	m := track.NewModel(16)
	snare, _ := m.Add("Snare", voice.Percussion, "snare")
	lead, _ := m.Add("Lead", voice.Melodic, "pluck")
	m.ToggleStep(snare.ID, 4)
	m.ToggleNote(lead.ID, 0, "C4")
	m.ToggleNote(lead.ID, 8, "G4")
	tracks := m.Tracks()
	settings := effects.DefaultSettings()
	a, err := Render(context.Background(), tracks, 128, 16, Options{Effects: &settings})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Render(context.Background(), tracks, 128, 16, Options{Effects: &settings})
	if err != nil {
		t.Fatal(err)
	}
	if !bytesEqual(pcm.Encode(a), pcm.Encode(b)) {
		t.Fatal("renders of the same snapshot differ")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRenderEmptyProjectFails(t *testing.T) {
	_, err := Render(context.Background(), kickProject(t, 16), 120, 16, Options{})
	if !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("err=%v", err)
	}
	if ftag.Get(err) != KindNothingToExport {
		t.Fatalf("tag=%q", ftag.Get(err))
	}
}

func TestRenderSkipsMutedAndHonoursSolo(t *testing.T) {
	m := track.NewModel(16)
	kick, _ := m.Add("Kick", voice.Percussion, "kick")
	hat, _ := m.Add("Hat", voice.Percussion, "hihat")
	m.ToggleStep(kick.ID, 0)
	m.ToggleStep(hat.ID, 8)
	m.SetMute(kick.ID, true)
	m.SetMute(hat.ID, true)
	if _, err := Render(context.Background(), m.Tracks(), 120, 16, Options{}); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("all muted err=%v", err)
	}
	m.SetMute(kick.ID, false)
	m.SetMute(hat.ID, false)
	m.SetSolo(hat.ID, true)
	buf, err := Render(context.Background(), m.Tracks(), 120, 16, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p := buf.Peak(0, 44100/2); p != 0 {
		t.Fatalf("non-soloed kick sounded, peak=%f", p)
	}
	if p := buf.Peak(44100, 44100+2205); p == 0 {
		t.Fatal("soloed hihat is silent")
	}
}

func TestRenderMasterMutedFails(t *testing.T) {
	tracks := kickProject(t, 16, 0)
	tracks[0].Muted = true
	if _, err := Render(context.Background(), tracks, 120, 16, Options{}); !errors.Is(err, ErrNothingToExport) {
		t.Fatalf("err=%v", err)
	}
}

func TestRenderAppliesMasterVolume(t *testing.T) {
	full := kickProject(t, 16, 0)
	full[0].Volume = 1
	half := kickProject(t, 16, 0)
	half[0].Volume = 0.5
	a, _ := Render(context.Background(), full, 120, 16, Options{})
	b, _ := Render(context.Background(), half, 120, 16, Options{})
	pa, pb := a.Peak(0, 4410), b.Peak(0, 4410)
	if d := pa/2 - pb; d > 1e-4 || d < -1e-4 {
		t.Fatalf("peaks %f and %f, want a 2:1 ratio", pa, pb)
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	buf, err := Render(ctx, kickProject(t, 16, 0), 120, 16, Options{})
	if err == nil || buf != nil {
		t.Fatalf("buf=%v err=%v", buf != nil, err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestRenderClipTrack(t *testing.T) {
	m := track.NewModel(16)
	clip, _ := m.Add("Vox", voice.AudioClip, "upload")
	m.ToggleStep(clip.ID, 0)
	tone := pcm.NewBuffer(44100, 1, 4410)
	for i := range tone.Samples {
		tone.Samples[i] = 0.5
	}
	buf, err := Render(context.Background(), m.Tracks(), 120, 16, Options{Clips: map[string]*pcm.Buffer{clip.ID: tone}})
	if err != nil {
		t.Fatal(err)
	}
	if p := buf.Peak(0, 4410); p < 0.1 {
		t.Fatalf("clip peak=%f", p)
	}
	if p := buf.Peak(4411, 88200); p != 0 {
		t.Fatalf("clip rang on past its end, peak=%f", p)
	}
}

func TestFrames(t *testing.T) {
	if Frames(120, 64, 44100) != 352800 {
		t.Fatal("64 steps at 120 bpm should be 8 s")
	}
}
