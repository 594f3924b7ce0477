package project

import (
	"errors"
	"io/fs"
	"reflect"
	"testing"
	"time"

	"github.com/Southclaws/fault/ftag"

	"github.com/cbegin/stepseq-go/internal/track"
	"github.com/cbegin/stepseq-go/internal/voice"
)

func sampleTracks(t *testing.T) []track.Track {
	t.Helper()
	m := track.NewModel(16)
	kick, _ := m.Add("Kick", voice.Percussion, "kick")
	lead, _ := m.Add("Lead", voice.Melodic, "pad")
	m.ToggleStep(kick.ID, 0)
	m.ToggleStep(kick.ID, 8)
	m.ToggleNote(lead.ID, 3, "C4")
	m.ToggleNote(lead.ID, 3, "G4")
	m.SetVolume(lead.ID, 0)
	m.SetPan(lead.ID, -0.5)
	m.SetMute(kick.ID, true)
	m.SetSolo(lead.ID, true)
	return m.Tracks()
}

func TestRoundTripIsExact(t *testing.T) {
	tracks := sampleTracks(t)
	data, err := Marshal(Serialize("demo", tracks, 133))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := Unmarshal(data)
	if err != nil {
		t.Fatal(err)
	}
	got, bpm, err := Deserialize(doc, 16)
	if err != nil {
		t.Fatal(err)
	}
	if bpm != 133 || doc.Name != "demo" {
		t.Fatalf("bpm=%d name=%q", bpm, doc.Name)
	}
	if !reflect.DeepEqual(got, tracks) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, tracks)
	}
}

func TestYAMLMatchesJSON(t *testing.T) {
	doc := Serialize("demo", sampleTracks(t), 90)
	j, _ := Marshal(doc)
	y, err := MarshalYAML(doc)
	if err != nil {
		t.Fatal(err)
	}
	fromJSON, err := Unmarshal(j)
	if err != nil {
		t.Fatal(err)
	}
	fromYAML, err := Unmarshal(y)
	if err != nil {
		t.Fatal(err)
	}
	a, _, _ := Deserialize(fromJSON, 16)
	b, _, _ := Deserialize(fromYAML, 16)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("yaml and json documents decode differently")
	}
}

func TestDeserializeDefaults(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"tracks":[{"id":"track-1","name":"X","category":"percussion","steps":[true],"notes":{"2":["C3"],"abc":["D3"],"99":["E3"],"4":[]},"extra":1}]}`))
	if err != nil {
		t.Fatal(err)
	}
	tracks, bpm, err := Deserialize(doc, 8)
	if err != nil {
		t.Fatal(err)
	}
	if bpm != 120 {
		t.Errorf("bpm=%d want 120", bpm)
	}
	tr := tracks[0]
	if tr.Volume != 0.8 || tr.Sound != "kick" || len(tr.Steps) != 8 || !tr.Steps[0] {
		t.Errorf("track=%+v", tr)
	}
	if !reflect.DeepEqual(tr.Notes, map[int][]string{2: {"C3"}}) {
		t.Errorf("notes=%v", tr.Notes)
	}
}

func TestDeserializeClampsBPM(t *testing.T) {
	for _, tt := range []struct{ in, want int }{{10, 40}, {500, 300}, {0, 120}, {174, 174}} {
		_, bpm, _ := Deserialize(Document{BPM: tt.in}, 16)
		if bpm != tt.want {
			t.Errorf("bpm %d -> %d want %d", tt.in, bpm, tt.want)
		}
	}
}

func TestLegacyTypeMapping(t *testing.T) {
	tests := []struct {
		typ  string
		want voice.Category
	}{
		{"drum", voice.Percussion},
		{"synth", voice.Melodic},
		{"bass", voice.Melodic},
		{"keys", voice.Melodic},
		{"fx", voice.Effect},
		{"vocal", voice.AudioClip},
		{"master", voice.Master},
		{"kazoo", voice.Melodic},
	}
	for _, tt := range tests {
		tracks, _, _ := Deserialize(Document{Tracks: []TrackDoc{{ID: "t", Type: tt.typ}}}, 4)
		if tracks[0].Category != tt.want {
			t.Errorf("type %q -> %q want %q", tt.typ, tracks[0].Category, tt.want)
		}
	}
}

func TestUnmarshalYAML(t *testing.T) {
	doc, err := Unmarshal([]byte("bpm: 140\ntracks:\n  - id: track-3\n    category: effect\n    sound: riser\n    steps: [false, true]\n    notes:\n      1: [C5]\n"))
	if err != nil {
		t.Fatal(err)
	}
	tracks, bpm, _ := Deserialize(doc, 4)
	if bpm != 140 || tracks[0].Sound != "riser" || !tracks[0].Steps[1] || tracks[0].Notes[1][0] != "C5" {
		t.Fatalf("bpm=%d tracks=%+v", bpm, tracks)
	}
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "{not json", "just words"} {
		_, err := Unmarshal([]byte(in))
		if err == nil {
			t.Errorf("%q: expected error", in)
			continue
		}
		if ftag.Get(err) != KindPersistence {
			t.Errorf("%q: tag=%q", in, ftag.Get(err))
		}
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir() + "/projects")
	if names, err := s.List(); err != nil || len(names) != 0 {
		t.Fatalf("names=%v err=%v", names, err)
	}
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	doc := Serialize("demo", sampleTracks(t), 100)
	a, err := s.Save(doc)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Save(doc)
	if err != nil {
		t.Fatal(err)
	}
	if a != "project_1700000000000.json" || b != "project_1700000000000_1.json" {
		t.Fatalf("names %q %q", a, b)
	}
	names, _ := s.List()
	if !reflect.DeepEqual(names, []string{a, b}) {
		t.Fatalf("list=%v", names)
	}
	loaded, err := s.Load(a)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, doc) {
		t.Fatal("loaded document differs")
	}
	if _, err := s.Load("../etc/passwd"); err == nil {
		t.Fatal("path traversal accepted")
	}
	if _, err := s.Load("missing.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}
