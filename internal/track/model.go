package track

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/cbegin/stepseq-go/internal/voice"
)

var (
	ErrNotFound     = errors.New("track not found")
	ErrMasterTrack  = errors.New("operation not allowed on the master track")
	ErrOutOfRange   = errors.New("beat out of range")
	ErrInvalidPitch = errors.New("invalid pitch")
)

// Model holds the ordered tracks of a project. It is not safe for
// concurrent use; the engine serialises access.
type Model struct {
	grid   int
	tracks []*Track
	seq    int
}

// NewModel returns a model with only the master track.
func NewModel(grid int) *Model {
	if grid <= 0 {
		grid = GridLength(DefaultBars, DefaultBeatsPerBar)
	}
	m := &Model{grid: grid}
	m.tracks = []*Track{m.newMaster()}
	return m
}

func (m *Model) newMaster() *Track {
	return &Track{
		ID:       MasterID,
		Name:     "Master",
		Category: voice.Master,
		Volume:   DefaultVolume,
		Steps:    make([]bool, m.grid),
		Notes:    map[int][]string{},
	}
}

func (m *Model) Grid() int { return m.grid }

func (m *Model) Len() int { return len(m.tracks) }

func (m *Model) nextID() string {
	m.seq++
	return "track-" + strconv.Itoa(m.seq)
}

// Add appends a new track and returns a copy of it.
func (m *Model) Add(name string, c voice.Category, sound string) (Track, error) {
	if c == voice.Master {
		return Track{}, ErrMasterTrack
	}
	if sound == "" {
		sound = voice.DefaultSound(c)
	}
	t := &Track{
		ID:       m.nextID(),
		Name:     name,
		Category: c,
		Sound:    sound,
		Volume:   DefaultVolume,
		Steps:    make([]bool, m.grid),
		Notes:    map[int][]string{},
	}
	if t.Name == "" {
		t.Name = fmt.Sprintf("Track %d", len(m.tracks))
	}
	m.tracks = append(m.tracks, t)
	return t.Clone(), nil
}

func (m *Model) Remove(id string) error {
	i := m.index(id)
	if i < 0 {
		return ErrNotFound
	}
	if m.tracks[i].IsMaster() {
		return ErrMasterTrack
	}
	m.tracks = slices.Delete(m.tracks, i, i+1)
	return nil
}

func (m *Model) index(id string) int {
	return slices.IndexFunc(m.tracks, func(t *Track) bool { return t.ID == id })
}

func (m *Model) find(id string) (*Track, error) {
	i := m.index(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	return m.tracks[i], nil
}

func (m *Model) editable(id string) (*Track, error) {
	t, err := m.find(id)
	if err != nil {
		return nil, err
	}
	if t.IsMaster() {
		return nil, ErrMasterTrack
	}
	return t, nil
}

func (m *Model) Track(id string) (Track, bool) {
	t, err := m.find(id)
	if err != nil {
		return Track{}, false
	}
	return t.Clone(), true
}

// Tracks returns a deep copy of every track in order.
func (m *Model) Tracks() []Track {
	out := make([]Track, len(m.tracks))
	for i, t := range m.tracks {
		out[i] = t.Clone()
	}
	return out
}

func (m *Model) Master() Track {
	for _, t := range m.tracks {
		if t.IsMaster() {
			return t.Clone()
		}
	}
	return m.newMaster().Clone()
}

// ToggleStep flips a step and returns its new state.
func (m *Model) ToggleStep(id string, step int) (bool, error) {
	t, err := m.editable(id)
	if err != nil {
		return false, err
	}
	if step < 0 || step >= len(t.Steps) {
		return false, ErrOutOfRange
	}
	t.Steps[step] = !t.Steps[step]
	return t.Steps[step], nil
}

// ToggleNote adds or removes pitch at beat and reports whether it is now
// present. Pitches are stored in canonical sharp spelling.
func (m *Model) ToggleNote(id string, beat int, pitch string) (bool, error) {
	t, err := m.editable(id)
	if err != nil {
		return false, err
	}
	if beat < 0 || beat >= m.grid {
		return false, ErrOutOfRange
	}
	name, err := voice.CanonicalPitch(pitch)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidPitch, pitch)
	}
	pitches := t.Notes[beat]
	if i := slices.Index(pitches, name); i >= 0 {
		pitches = slices.Delete(pitches, i, i+1)
		if len(pitches) == 0 {
			delete(t.Notes, beat)
		} else {
			t.Notes[beat] = pitches
		}
		return false, nil
	}
	pitches = append(pitches, name)
	sortPitches(pitches)
	t.Notes[beat] = pitches
	return true, nil
}

// sortPitches orders by MIDI note, falling back to the name.
func sortPitches(p []string) {
	slices.SortFunc(p, func(a, b string) int {
		na, ea := voice.ParsePitch(a)
		nb, eb := voice.ParsePitch(b)
		if ea == nil && eb == nil && na != nb {
			return na - nb
		}
		return strings.Compare(a, b)
	})
}

func clampUnit(v, lo float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(1, v))
}

// SetVolume clamps v to [0,1] and returns the stored value. The master track
// is allowed; its volume is the master gain.
func (m *Model) SetVolume(id string, v float64) (float64, error) {
	t, err := m.find(id)
	if err != nil {
		return 0, err
	}
	t.Volume = clampUnit(v, 0)
	return t.Volume, nil
}

// SetPan clamps p to [-1,1] and returns the stored value.
func (m *Model) SetPan(id string, p float64) (float64, error) {
	t, err := m.editable(id)
	if err != nil {
		return 0, err
	}
	t.Pan = clampUnit(p, -1)
	return t.Pan, nil
}

func (m *Model) SetMute(id string, muted bool) error {
	t, err := m.find(id)
	if err != nil {
		return err
	}
	t.Muted = muted
	return nil
}

func (m *Model) SetSolo(id string, solo bool) error {
	t, err := m.editable(id)
	if err != nil {
		return err
	}
	t.Solo = solo
	return nil
}

func (m *Model) SetSound(id, sound string) error {
	t, err := m.editable(id)
	if err != nil {
		return err
	}
	t.Sound = sound
	return nil
}

func (m *Model) Rename(id, name string) error {
	t, err := m.editable(id)
	if err != nil {
		return err
	}
	t.Name = name
	return nil
}

// AttachClip records the external audio reference of a clip track.
func (m *Model) AttachClip(id, ref string) error {
	t, err := m.editable(id)
	if err != nil {
		return err
	}
	t.Clip = ref
	return nil
}

// Hits returns what should trigger at beat given mute and solo state.
func (m *Model) Hits(beat int) []Hit {
	if beat < 0 || beat >= m.grid {
		return nil
	}
	tracks := make([]Track, len(m.tracks))
	for i, t := range m.tracks {
		tracks[i] = *t
	}
	return HitsAt(Audible(tracks), beat)
}

// Replace swaps in a new track list, enforcing the model invariants: every
// grid has the model length, note keys are in range and never empty, ids
// are unique and there is exactly one master, which comes first.
func (m *Model) Replace(tracks []Track) {
	m.seq = 0
	for _, t := range tracks {
		if n, ok := strings.CutPrefix(t.ID, "track-"); ok {
			if v, err := strconv.Atoi(n); err == nil && v > m.seq {
				m.seq = v
			}
		}
	}
	var master *Track
	seen := map[string]bool{MasterID: true}
	out := make([]*Track, 0, len(tracks)+1)
	for _, src := range tracks {
		t := src.Clone()
		m.normalise(&t)
		if t.IsMaster() {
			if master == nil {
				t.ID = MasterID
				t.Steps = make([]bool, m.grid)
				t.Notes = map[int][]string{}
				t.Solo = false
				master = &t
				continue
			}
			t.Category = voice.Melodic
			t.Sound = voice.DefaultSound(voice.Melodic)
		}
		if t.ID == "" || seen[t.ID] {
			t.ID = m.nextID()
		}
		seen[t.ID] = true
		out = append(out, &t)
	}
	if master == nil {
		master = m.newMaster()
	}
	m.tracks = append([]*Track{master}, out...)
}

func (m *Model) normalise(t *Track) {
	steps := make([]bool, m.grid)
	copy(steps, t.Steps)
	t.Steps = steps
	notes := make(map[int][]string, len(t.Notes))
	for beat, pitches := range t.Notes {
		if beat < 0 || beat >= m.grid {
			continue
		}
		uniq := make([]string, 0, len(pitches))
		for _, p := range pitches {
			if p != "" && !slices.Contains(uniq, p) {
				uniq = append(uniq, p)
			}
		}
		if len(uniq) == 0 {
			continue
		}
		sortPitches(uniq)
		notes[beat] = uniq
	}
	t.Notes = notes
	t.Volume = clampUnit(t.Volume, 0)
	t.Pan = clampUnit(t.Pan, -1)
}
